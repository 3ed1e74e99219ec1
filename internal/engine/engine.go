package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/hardware"
	"github.com/Is0cre/growtent/internal/models"
	"github.com/Is0cre/growtent/internal/notify"
)

// Store is the slice of the database the engine needs.
type Store interface {
	GetAllDeviceSettings(ctx context.Context) (map[string]models.DeviceConfig, error)
	UpdateDeviceState(ctx context.Context, name string, state int) error
	GetActiveProject(ctx context.Context) (*models.Project, error)
	LogSensorData(ctx context.Context, projectID *int64, r models.SensorReading) error
	GetAlertSettings(ctx context.Context) (*models.AlertSettings, error)
	GetProjectsNeedingTimelapse(ctx context.Context) ([]models.Project, error)
	SaveTimelapseImage(ctx context.Context, projectID *int64, at time.Time, filepath string) error
	UpdateTimelapseCapture(ctx context.Context, projectID int64, at time.Time) error
}

// StateCache mirrors the last known device states and reading for API and
// bot handlers.
type StateCache interface {
	SetDeviceState(ctx context.Context, device string, on bool) error
	SetLatestReading(ctx context.Context, r *models.SensorReading) error
}

// Options tune the control loop.
type Options struct {
	PollInterval       time.Duration
	DataLogInterval    time.Duration
	AlertCheckInterval time.Duration
	MaxTickFailures    int
	BackoffSleep       time.Duration
	DataDir            string
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.DataLogInterval <= 0 {
		o.DataLogInterval = time.Minute
	}
	if o.AlertCheckInterval <= 0 {
		o.AlertCheckInterval = time.Minute
	}
	if o.MaxTickFailures <= 0 {
		o.MaxTickFailures = 10
	}
	if o.BackoffSleep <= 0 {
		o.BackoffSleep = time.Minute
	}
	if o.DataDir == "" {
		o.DataDir = "./data"
	}
}

// Engine is the device-control decision loop. One background goroutine runs
// ticks sequentially; request handlers only call the manual-control accessors,
// which go through the same actuator and keep the state cache consistent.
type Engine struct {
	store    Store
	cache    StateCache
	relay    hardware.Actuator
	sensor   hardware.SensorSource
	camera   hardware.Capturer
	notifier notify.Notifier
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	evaluator *Evaluator
	alerts    *alertThrottler
	timelapse *captureTracker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	lastDataLog    time.Time
	lastAlertCheck time.Time
	tickFailures   int

	hwMu     sync.RWMutex
	hwStatus models.HardwareStatus
}

// NewEngine wires the control loop. Hardware health starts from whether each
// collaborator initialized at all; the loop keeps it current afterwards.
func NewEngine(store Store, cache StateCache, relay hardware.Actuator, sensor hardware.SensorSource,
	camera hardware.Capturer, notifier notify.Notifier, opts Options, log zerolog.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{
		store:     store,
		cache:     cache,
		relay:     relay,
		sensor:    sensor,
		camera:    camera,
		notifier:  notifier,
		opts:      opts,
		log:       log,
		now:       time.Now,
		evaluator: NewEvaluator(log),
		alerts:    newAlertThrottler(),
		timelapse: newCaptureTracker(),
		hwStatus: models.HardwareStatus{
			Relay:  relay != nil,
			Sensor: sensor != nil,
			Camera: camera != nil,
		},
	}
}

// Start launches the background loop. Starting a running engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.log.Warn().Msg("engine already running")
		return nil
	}
	if e.relay == nil {
		return errors.New("cannot start: no actuator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.run(ctx)
	e.log.Info().Dur("poll_interval", e.opts.PollInterval).Msg("engine started")
	return nil
}

// Stop cancels the loop, waits (bounded) for the in-flight tick, and
// releases the relays. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.log.Warn().Msg("engine not running")
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.log.Error().Msg("timed out waiting for tick to finish")
	}

	if err := e.relay.AllOff(context.Background()); err != nil {
		e.log.Error().Err(err).Msg("releasing relays")
	}
	e.log.Info().Msg("engine stopped")
}

// Running reports the lifecycle state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	for {
		if ctx.Err() != nil {
			return
		}

		sleep := e.opts.PollInterval
		if err := e.tick(ctx); err != nil {
			e.tickFailures++
			e.log.Error().Err(err).Int("consecutive", e.tickFailures).Msg("tick failed")
			if e.tickFailures >= e.opts.MaxTickFailures {
				e.log.Warn().Dur("backoff", e.opts.BackoffSleep).Msg("too many consecutive failures, backing off")
				sleep = e.opts.BackoffSleep
				e.tickFailures = 0
			}
		} else {
			e.tickFailures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// tick performs one full pass. Per-device and per-project faults are logged
// and contained; only structural failures (settings or project list
// unavailable) count as a failed tick.
func (e *Engine) tick(ctx context.Context) error {
	now := e.now()

	reading := e.readSensor(ctx)

	var tickErr error
	if reading != nil {
		if now.Sub(e.lastDataLog) >= e.opts.DataLogInterval {
			if err := e.logReading(ctx, *reading); err != nil {
				e.log.Error().Err(err).Msg("logging sensor data")
			} else {
				e.lastDataLog = now
			}
		}

		if err := e.reconcileDevices(ctx, now, *reading); err != nil {
			tickErr = fmt.Errorf("reconciling devices: %w", err)
		}

		if now.Sub(e.lastAlertCheck) >= e.opts.AlertCheckInterval {
			e.checkAlerts(ctx, now, *reading)
			e.lastAlertCheck = now
		}
	}

	// Timelapse does not depend on sensor data; run it even on a failed read.
	if err := e.runTimelapse(ctx, now); err != nil {
		if tickErr == nil {
			tickErr = fmt.Errorf("timelapse pass: %w", err)
		}
	}

	return tickErr
}

func (e *Engine) readSensor(ctx context.Context) *models.SensorReading {
	if e.sensor == nil {
		return nil
	}
	reading, err := e.sensor.Read(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("sensor read failed")
		e.setHardware(func(s *models.HardwareStatus) { s.Sensor = false })
		return nil
	}
	e.setHardware(func(s *models.HardwareStatus) { s.Sensor = true })

	if err := e.cache.SetLatestReading(ctx, reading); err != nil {
		e.log.Error().Err(err).Msg("caching latest reading")
	}
	return reading
}

func (e *Engine) logReading(ctx context.Context, r models.SensorReading) error {
	var projectID *int64
	project, err := e.store.GetActiveProject(ctx)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}
	if project != nil {
		projectID = &project.ID
	}
	return e.store.LogSensorData(ctx, projectID, r)
}

// reconcileDevices drives every device whose evaluation differs from the
// actuator's reported state. NoOpinion never touches the actuator.
func (e *Engine) reconcileDevices(ctx context.Context, now time.Time, reading models.SensorReading) error {
	settings, err := e.store.GetAllDeviceSettings(ctx)
	if err != nil {
		return err
	}

	temp, humidity := reading.Temperature, reading.Humidity
	for _, name := range hardware.DeviceNames {
		cfg, ok := settings[name]
		if !ok {
			continue
		}

		decision := e.evaluator.Evaluate(cfg, now, &temp, &humidity)
		if decision == NoOpinion {
			continue
		}

		current, err := e.relay.GetState(name)
		if err != nil {
			e.log.Error().Err(err).Str("device", name).Msg("reading actuator state")
			continue
		}

		want := decision == On
		if want == current {
			continue
		}

		if err := e.driveDevice(ctx, name, want); err != nil {
			e.log.Error().Err(err).Str("device", name).Bool("on", want).Msg("driving device")
			e.setHardware(func(s *models.HardwareStatus) { s.Relay = false })
			continue
		}
		e.setHardware(func(s *models.HardwareStatus) { s.Relay = true })
		e.log.Info().Str("device", name).Bool("on", want).Msg("auto control")
	}
	return nil
}

// driveDevice commands the actuator and mirrors the new state to the store
// and cache. A persistence failure does not undo the hardware change; the
// record catches up on the next successful write.
func (e *Engine) driveDevice(ctx context.Context, name string, on bool) error {
	if err := e.relay.SetState(ctx, name, on); err != nil {
		return err
	}

	state := 0
	if on {
		state = 1
	}
	if err := e.store.UpdateDeviceState(ctx, name, state); err != nil {
		e.log.Error().Err(err).Str("device", name).Msg("persisting device state")
	}
	if err := e.cache.SetDeviceState(ctx, name, on); err != nil {
		e.log.Error().Err(err).Str("device", name).Msg("caching device state")
	}
	return nil
}

func (e *Engine) checkAlerts(ctx context.Context, now time.Time, reading models.SensorReading) {
	settings, err := e.store.GetAlertSettings(ctx)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			e.log.Error().Err(err).Msg("loading alert settings")
		}
		return
	}

	for _, cond := range e.alerts.check(now, reading, *settings) {
		e.log.Warn().Str("alert", cond.Key).Msg(cond.Message)
		if err := e.notifier.Send(ctx, cond.Message); err != nil {
			e.log.Error().Err(err).Str("alert", cond.Key).Msg("sending alert")
			// Let the next occurrence retry instead of waiting out the
			// full notification interval.
			e.alerts.forget(cond.Key)
		}
	}
}

// runTimelapse captures a frame for every active project whose cadence
// elapsed. One project's failure never blocks the others.
func (e *Engine) runTimelapse(ctx context.Context, now time.Time) error {
	if e.camera == nil {
		return nil
	}

	projects, err := e.store.GetProjectsNeedingTimelapse(ctx)
	if err != nil {
		return err
	}
	e.timelapse.prune(projects)

	for _, project := range projects {
		if !e.timelapse.due(project, now) {
			continue
		}
		if err := e.captureFrame(ctx, project, now); err != nil {
			e.log.Error().Err(err).Int64("project_id", project.ID).Msg("timelapse capture")
			e.setHardware(func(s *models.HardwareStatus) { s.Camera = false })
			continue
		}
		e.setHardware(func(s *models.HardwareStatus) { s.Camera = true })
	}
	return nil
}

func (e *Engine) captureFrame(ctx context.Context, project models.Project, now time.Time) error {
	path := filepath.Join(e.opts.DataDir, "projects", strconv.FormatInt(project.ID, 10),
		"timelapse", "timelapse_"+now.Format("20060102_150405")+".jpg")

	captured, err := e.camera.Capture(ctx, path)
	if err != nil {
		// Cadence not advanced; the next tick retries.
		return err
	}

	if err := e.store.SaveTimelapseImage(ctx, &project.ID, now, captured); err != nil {
		e.log.Error().Err(err).Int64("project_id", project.ID).Msg("recording timelapse image")
	}
	if err := e.store.UpdateTimelapseCapture(ctx, project.ID, now); err != nil {
		e.log.Error().Err(err).Int64("project_id", project.ID).Msg("persisting capture time")
	}
	e.timelapse.record(project.ID, now)
	e.log.Info().Int64("project_id", project.ID).Str("path", captured).Msg("captured timelapse frame")
	return nil
}

func (e *Engine) setHardware(update func(*models.HardwareStatus)) {
	e.hwMu.Lock()
	update(&e.hwStatus)
	e.hwMu.Unlock()
}

// --- Manual control surface, shared by the web API and the bot ---

// TurnDeviceOn manually energizes a device through the same path the loop
// uses, keeping store and cache consistent.
func (e *Engine) TurnDeviceOn(ctx context.Context, name string) error {
	if !hardware.KnownDevice(name) {
		return fmt.Errorf("unknown device %q", name)
	}
	return e.driveDevice(ctx, name, true)
}

// TurnDeviceOff manually releases a device.
func (e *Engine) TurnDeviceOff(ctx context.Context, name string) error {
	if !hardware.KnownDevice(name) {
		return fmt.Errorf("unknown device %q", name)
	}
	return e.driveDevice(ctx, name, false)
}

// ToggleDevice flips a device's state and reports the new state.
func (e *Engine) ToggleDevice(ctx context.Context, name string) (bool, error) {
	if !hardware.KnownDevice(name) {
		return false, fmt.Errorf("unknown device %q", name)
	}
	current, err := e.relay.GetState(name)
	if err != nil {
		return false, err
	}
	if err := e.driveDevice(ctx, name, !current); err != nil {
		return false, err
	}
	return !current, nil
}

// DeviceStates returns the actuator's last known states.
func (e *Engine) DeviceStates() map[string]bool {
	return e.relay.States()
}

// CurrentReading reads the sensor directly for on-demand queries.
func (e *Engine) CurrentReading(ctx context.Context) (*models.SensorReading, error) {
	if e.sensor == nil {
		return nil, errors.New("sensor not available")
	}
	return e.sensor.Read(ctx)
}

// CaptureSnapshot takes a photo outside the timelapse cadence.
func (e *Engine) CaptureSnapshot(ctx context.Context) (string, error) {
	if e.camera == nil {
		return "", errors.New("camera not available")
	}
	path := filepath.Join(e.opts.DataDir, "photos", "photo_"+e.now().Format("20060102_150405")+".jpg")
	return e.camera.Capture(ctx, path)
}

// HardwareStatus reports the last known component health.
func (e *Engine) HardwareStatus() models.HardwareStatus {
	e.hwMu.RLock()
	defer e.hwMu.RUnlock()
	return e.hwStatus
}

// ReloadDeviceSettings resets stateful schedule tracking for a device after
// its settings change.
func (e *Engine) ReloadDeviceSettings(device string) {
	e.evaluator.ResetDutyCycles(device)
}
