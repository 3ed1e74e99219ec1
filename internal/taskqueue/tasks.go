// Package taskqueue runs the slow background jobs on Asynq workers so the
// control loop and HTTP handlers stay responsive.
package taskqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/analysis"
	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/engine"
	"github.com/Is0cre/growtent/internal/extsync"
	"github.com/Is0cre/growtent/internal/notify"
)

// Task type names.
const (
	TypeDailyReport   = "daily_report"
	TypePlantAnalysis = "plant_analysis"
	TypeExternalSync  = "external_sync"
)

// Global instances, initialized by main before workers start.
var (
	store    *db.DB
	eng      *engine.Engine
	notifier notify.Notifier
	analyzer *analysis.Analyzer
	syncer   *extsync.Syncer
	log      zerolog.Logger
)

// SetGlobalInstances wires the collaborators the task handlers need.
func SetGlobalInstances(database *db.DB, e *engine.Engine, n notify.Notifier,
	a *analysis.Analyzer, s *extsync.Syncer, l zerolog.Logger) {
	store = database
	eng = e
	notifier = n
	analyzer = a
	syncer = s
	log = l
}

// Enqueue schedules one task for execution.
func Enqueue(taskType string) error {
	if asynqClient == nil {
		return fmt.Errorf("task queue not started")
	}
	task := asynq.NewTask(taskType, nil)
	_, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
	return err
}

// handleDailyReport composes the last day's environment summary and sends it
// through the notification sink.
func handleDailyReport(ctx context.Context, _ *asynq.Task) error {
	now := time.Now()
	stats, err := store.GetSensorStats(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return fmt.Errorf("loading sensor stats: %w", err)
	}

	report := fmt.Sprintf(
		"📊 Daily report\nSamples: %d\n🌡️ Temp: %.1f / %.1f / %.1f °C (min/avg/max)\n💧 Humidity: %.1f / %.1f / %.1f %%",
		stats.Samples,
		stats.TempMin, stats.TempAvg, stats.TempMax,
		stats.HumMin, stats.HumAvg, stats.HumMax,
	)

	if project, err := store.GetActiveProject(ctx); err == nil {
		report += fmt.Sprintf("\n🌱 Project: %s (day %d)", project.Name,
			int(now.Sub(project.StartDate).Hours()/24)+1)
	}

	if err := notifier.Send(ctx, report); err != nil {
		return fmt.Errorf("sending daily report: %w", err)
	}
	log.Info().Msg("daily report sent")
	return nil
}

// handlePlantAnalysis captures a fresh snapshot, submits it for analysis,
// and forwards the assessment.
func handlePlantAnalysis(ctx context.Context, _ *asynq.Task) error {
	path, err := eng.CaptureSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("capturing analysis photo: %w", err)
	}

	summary, err := analyzer.AnalyzePhoto(ctx, path)
	if err != nil {
		return fmt.Errorf("analyzing photo: %w", err)
	}

	if err := store.SetSystemSetting(ctx, "last_analysis", summary); err != nil {
		log.Error().Err(err).Msg("storing analysis result")
	}
	if err := notifier.Send(ctx, "🔬 Plant health: "+summary); err != nil {
		return fmt.Errorf("sending analysis result: %w", err)
	}
	log.Info().Msg("plant analysis completed")
	return nil
}

// handleExternalSync pushes unsynced readings to the external server.
func handleExternalSync(ctx context.Context, _ *asynq.Task) error {
	pushed, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	if pushed > 0 {
		log.Debug().Int("pushed", pushed).Msg("external sync batch done")
	}
	return nil
}
