// Package scheduler manages the time-based background jobs (daily report,
// plant analysis, external sync). Jobs do no work inline; each cron firing
// only enqueues a task for the worker pool, keeping the control loop and the
// cron goroutine free of slow I/O.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/taskqueue"
)

// Scheduler manages time-based triggers
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// Jobs selects which cron entries get registered.
type Jobs struct {
	DailyReportSpec string
	AnalysisSpec    string
	AnalysisEnabled bool
	ExtSyncSpec     string
	ExtSyncEnabled  bool
}

// NewScheduler creates a scheduler with the configured jobs registered.
func NewScheduler(jobs Jobs, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		log:  log,
	}

	if _, err := s.cron.AddFunc(jobs.DailyReportSpec, func() {
		s.enqueue(taskqueue.TypeDailyReport)
	}); err != nil {
		return nil, err
	}

	if jobs.AnalysisEnabled {
		if _, err := s.cron.AddFunc(jobs.AnalysisSpec, func() {
			s.enqueue(taskqueue.TypePlantAnalysis)
		}); err != nil {
			return nil, err
		}
	}

	if jobs.ExtSyncEnabled {
		if _, err := s.cron.AddFunc(jobs.ExtSyncSpec, func() {
			s.enqueue(taskqueue.TypeExternalSync)
		}); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) enqueue(taskType string) {
	s.log.Debug().Str("task", taskType).Msg("cron trigger")
	if err := taskqueue.Enqueue(taskType); err != nil {
		s.log.Error().Err(err).Str("task", taskType).Msg("enqueue failed")
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("cron scheduler stopped")
}

// EntryCount reports the number of registered cron entries.
func (s *Scheduler) EntryCount() int {
	return len(s.cron.Entries())
}
