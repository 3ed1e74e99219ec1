package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/models"
)

// --- fakes ---

type fakeStore struct {
	mu             sync.Mutex
	settings       map[string]models.DeviceConfig
	settingsErr    error
	settingsCalls  int
	alert          *models.AlertSettings
	active         *models.Project
	timelapse      []models.Project
	deviceStates   map[string]int
	stateErr       error
	sensorLogs     []models.SensorReading
	images         []string
	captureUpdates map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:       make(map[string]models.DeviceConfig),
		deviceStates:   make(map[string]int),
		captureUpdates: make(map[int64]time.Time),
	}
}

func (s *fakeStore) GetAllDeviceSettings(context.Context) (map[string]models.DeviceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsCalls++
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	out := make(map[string]models.DeviceConfig, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) UpdateDeviceState(_ context.Context, name string, state int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateErr != nil {
		return s.stateErr
	}
	s.deviceStates[name] = state
	return nil
}

func (s *fakeStore) GetActiveProject(context.Context) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, db.ErrNotFound
	}
	return s.active, nil
}

func (s *fakeStore) LogSensorData(_ context.Context, _ *int64, r models.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensorLogs = append(s.sensorLogs, r)
	return nil
}

func (s *fakeStore) GetAlertSettings(context.Context) (*models.AlertSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		return nil, db.ErrNotFound
	}
	return s.alert, nil
}

func (s *fakeStore) GetProjectsNeedingTimelapse(context.Context) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelapse, nil
}

func (s *fakeStore) SaveTimelapseImage(_ context.Context, _ *int64, _ time.Time, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, path)
	return nil
}

func (s *fakeStore) UpdateTimelapseCapture(_ context.Context, projectID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureUpdates[projectID] = at
	return nil
}

type fakeRelay struct {
	mu       sync.Mutex
	states   map[string]bool
	setCalls []string
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{states: make(map[string]bool)}
}

func (r *fakeRelay) SetState(_ context.Context, device string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[device] = on
	r.setCalls = append(r.setCalls, device)
	return nil
}

func (r *fakeRelay) GetState(device string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[device], nil
}

func (r *fakeRelay) States() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

func (r *fakeRelay) AllOff(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.states {
		r.states[k] = false
	}
	return nil
}

func (r *fakeRelay) Close() {}

type fakeSensor struct {
	reading *models.SensorReading
	err     error
}

func (s *fakeSensor) Read(context.Context) (*models.SensorReading, error) {
	if s.err != nil {
		return nil, s.err
	}
	copy := *s.reading
	return &copy, nil
}

func (s *fakeSensor) Close() {}

type fakeCamera struct {
	mu       sync.Mutex
	captures []string
	err      error
}

func (c *fakeCamera) Capture(_ context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.captures = append(c.captures, path)
	return path, nil
}

func (c *fakeCamera) Close() {}

type fakeCache struct {
	mu      sync.Mutex
	states  map[string]bool
	reading *models.SensorReading
}

func newFakeCache() *fakeCache {
	return &fakeCache{states: make(map[string]bool)}
}

func (c *fakeCache) SetDeviceState(_ context.Context, device string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[device] = on
	return nil
}

func (c *fakeCache) SetLatestReading(_ context.Context, r *models.SensorReading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reading = r
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return nil
}

// --- helpers ---

func testEngine(store *fakeStore, relay *fakeRelay, sensor *fakeSensor, camera *fakeCamera) (*Engine, *fakeCache, *fakeNotifier) {
	cache := newFakeCache()
	notifier := &fakeNotifier{}
	eng := NewEngine(store, cache, relay, sensor, camera, notifier, Options{
		PollInterval:       10 * time.Millisecond,
		DataLogInterval:    time.Minute,
		AlertCheckInterval: time.Minute,
		DataDir:            "/tmp/growtent-test",
	}, zerolog.Nop())
	eng.now = func() time.Time { return at(12, 0, 0) }
	return eng, cache, notifier
}

func reading(temp, hum float64) *models.SensorReading {
	return &models.SensorReading{
		Temperature:   temp,
		Humidity:      hum,
		Pressure:      1013,
		GasResistance: 120000,
		CapturedAt:    at(12, 0, 0),
	}
}

// --- tests ---

func TestTickDrivesThresholdDevice(t *testing.T) {
	store := newFakeStore()
	store.settings["exhaust_fan"] = models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeAuto,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}
	relay := newFakeRelay()
	sensor := &fakeSensor{reading: reading(30, 60)}

	eng, cache, _ := testEngine(store, relay, sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))

	on, err := relay.GetState("exhaust_fan")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, 1, store.deviceStates["exhaust_fan"])
	assert.True(t, cache.states["exhaust_fan"])
}

func TestTickLeavesMatchingStateAlone(t *testing.T) {
	store := newFakeStore()
	store.settings["exhaust_fan"] = models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}
	relay := newFakeRelay()
	relay.states["exhaust_fan"] = true
	sensor := &fakeSensor{reading: reading(30, 60)}

	eng, _, _ := testEngine(store, relay, sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))

	// Already on and should be on: no actuator call.
	assert.Empty(t, relay.setCalls)
}

func TestTickManualModeNeverTouchesActuator(t *testing.T) {
	store := newFakeStore()
	store.settings["lights"] = models.DeviceConfig{
		Name:    "lights",
		Mode:    models.ModeManual,
		Enabled: true,
		// Settings that would force the lights off in any automatic mode.
		Schedule:   []models.ScheduleRule{{On: "00:00", Off: "00:01"}},
		Thresholds: models.Thresholds{Temperature: fptr(0.0)},
	}
	relay := newFakeRelay()
	relay.states["lights"] = true
	sensor := &fakeSensor{reading: reading(30, 60)}

	eng, _, _ := testEngine(store, relay, sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))

	assert.Empty(t, relay.setCalls)
	on, _ := relay.GetState("lights")
	assert.True(t, on)
}

func TestTickDisabledDeviceForcedOff(t *testing.T) {
	store := newFakeStore()
	store.settings["heater"] = models.DeviceConfig{
		Name:    "heater",
		Mode:    models.ModeThreshold,
		Enabled: false,
	}
	relay := newFakeRelay()
	relay.states["heater"] = true
	sensor := &fakeSensor{reading: reading(10, 60)}

	eng, _, _ := testEngine(store, relay, sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))

	on, _ := relay.GetState("heater")
	assert.False(t, on)
	assert.Equal(t, 0, store.deviceStates["heater"])
}

func TestTickFailedSensorReadStillRunsTimelapse(t *testing.T) {
	store := newFakeStore()
	store.settings["exhaust_fan"] = models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}
	store.timelapse = []models.Project{project(7, 300, nil)}
	relay := newFakeRelay()
	sensor := &fakeSensor{err: errors.New("sensor offline")}
	camera := &fakeCamera{}

	eng, _, _ := testEngine(store, relay, sensor, camera)
	require.NoError(t, eng.tick(context.Background()))

	// Steps 2-4 skipped, step 5 still captured.
	assert.Empty(t, relay.setCalls)
	require.Len(t, camera.captures, 1)
	assert.Len(t, store.images, 1)
	assert.Contains(t, store.captureUpdates, int64(7))
	assert.False(t, eng.HardwareStatus().Sensor)
}

func TestTickCaptureFailureRetriesNextTick(t *testing.T) {
	store := newFakeStore()
	store.timelapse = []models.Project{project(3, 300, nil)}
	camera := &fakeCamera{err: errors.New("camera busy")}

	eng, _, _ := testEngine(store, newFakeRelay(), &fakeSensor{reading: reading(24, 60)}, camera)
	require.NoError(t, eng.tick(context.Background()))
	assert.Empty(t, store.images)

	// Camera recovers; the very next tick captures without waiting a full
	// interval.
	camera.err = nil
	require.NoError(t, eng.tick(context.Background()))
	assert.Len(t, store.images, 1)
}

func TestTickSendsThrottledAlerts(t *testing.T) {
	store := newFakeStore()
	store.alert = &models.AlertSettings{
		Enabled:              true,
		TempMax:              fptr(32.0),
		NotificationInterval: 300,
	}
	sensor := &fakeSensor{reading: reading(35, 60)}

	eng, _, notifier := testEngine(store, newFakeRelay(), sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "HIGH")

	// Same tick instant again: alert-check interval has not elapsed.
	require.NoError(t, eng.tick(context.Background()))
	assert.Len(t, notifier.sent, 1)
}

func TestTickSettingsFailureCountsAsTickFailure(t *testing.T) {
	store := newFakeStore()
	store.settingsErr = errors.New("db down")
	sensor := &fakeSensor{reading: reading(24, 60)}

	eng, _, _ := testEngine(store, newFakeRelay(), sensor, &fakeCamera{})
	assert.Error(t, eng.tick(context.Background()))
}

func TestRunLoopBacksOffAfterRepeatedFailures(t *testing.T) {
	store := newFakeStore()
	store.settingsErr = errors.New("db down")
	sensor := &fakeSensor{reading: reading(24, 60)}

	eng := NewEngine(store, newFakeCache(), newFakeRelay(), sensor, &fakeCamera{}, &fakeNotifier{}, Options{
		PollInterval:       5 * time.Millisecond,
		DataLogInterval:    time.Minute,
		AlertCheckInterval: time.Minute,
		MaxTickFailures:    2,
		BackoffSleep:       150 * time.Millisecond,
		DataDir:            "/tmp/growtent-test",
	}, zerolog.Nop())
	eng.now = func() time.Time { return at(12, 0, 0) }

	require.NoError(t, eng.Start())
	time.Sleep(400 * time.Millisecond)
	eng.Stop()

	store.mu.Lock()
	calls := store.settingsCalls
	store.mu.Unlock()

	// Each round is MaxTickFailures quick ticks followed by one backoff
	// sleep. Resuming after the sleep shows the failure counter reset; a
	// plain 5ms cadence over 400ms would reach ~80 ticks.
	assert.GreaterOrEqual(t, calls, 3)
	assert.Less(t, calls, 20)
}

func TestPersistenceFailureStillAppliesHardwareState(t *testing.T) {
	store := newFakeStore()
	store.settings["exhaust_fan"] = models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}
	store.stateErr = errors.New("db down")
	relay := newFakeRelay()
	sensor := &fakeSensor{reading: reading(30, 60)}

	eng, _, _ := testEngine(store, relay, sensor, &fakeCamera{})
	require.NoError(t, eng.tick(context.Background()))

	on, _ := relay.GetState("exhaust_fan")
	assert.True(t, on)
}

func TestStartStopLifecycle(t *testing.T) {
	store := newFakeStore()
	relay := newFakeRelay()
	relay.states["lights"] = true

	eng, _, _ := testEngine(store, relay, &fakeSensor{reading: reading(24, 60)}, &fakeCamera{})

	require.NoError(t, eng.Start())
	assert.True(t, eng.Running())
	// Second start is a no-op.
	require.NoError(t, eng.Start())

	eng.Stop()
	assert.False(t, eng.Running())
	// Relays released on stop.
	on, _ := relay.GetState("lights")
	assert.False(t, on)
	// Second stop is a no-op.
	eng.Stop()
}

func TestManualControlRoutesThroughCache(t *testing.T) {
	store := newFakeStore()
	relay := newFakeRelay()
	eng, cache, _ := testEngine(store, relay, &fakeSensor{reading: reading(24, 60)}, &fakeCamera{})
	ctx := context.Background()

	require.NoError(t, eng.TurnDeviceOn(ctx, "lights"))
	assert.True(t, cache.states["lights"])
	assert.Equal(t, 1, store.deviceStates["lights"])

	on, err := eng.ToggleDevice(ctx, "lights")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, 0, store.deviceStates["lights"])

	assert.Error(t, eng.TurnDeviceOn(ctx, "flux_capacitor"))
}
