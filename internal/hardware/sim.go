package hardware

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Is0cre/growtent/internal/models"
)

// SimRelay is the simulated actuator used when no relay bridge is reachable.
type SimRelay struct {
	log zerolog.Logger

	mu     sync.RWMutex
	states map[string]bool
}

// NewSimRelay starts with every channel off.
func NewSimRelay(log zerolog.Logger) *SimRelay {
	states := make(map[string]bool, len(DeviceNames))
	for _, name := range DeviceNames {
		states[name] = false
	}
	return &SimRelay{log: log, states: states}
}

func (r *SimRelay) SetState(_ context.Context, device string, on bool) error {
	if !KnownDevice(device) {
		return fmt.Errorf("unknown device %q", device)
	}
	r.mu.Lock()
	r.states[device] = on
	r.mu.Unlock()
	r.log.Info().Str("device", device).Bool("on", on).Msg("simulated relay command")
	return nil
}

func (r *SimRelay) GetState(device string) (bool, error) {
	if !KnownDevice(device) {
		return false, fmt.Errorf("unknown device %q", device)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[device], nil
}

func (r *SimRelay) States() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

func (r *SimRelay) AllOff(ctx context.Context) error {
	for _, name := range DeviceNames {
		_ = r.SetState(ctx, name, false)
	}
	return nil
}

func (r *SimRelay) Close() {}

// SimSensor produces a smooth deterministic environment so the rest of the
// system behaves sensibly without hardware.
type SimSensor struct {
	start time.Time
}

func NewSimSensor() *SimSensor {
	return &SimSensor{start: time.Now()}
}

// Read synthesizes a reading from sinusoids over the process uptime.
func (s *SimSensor) Read(_ context.Context) (*models.SensorReading, error) {
	t := time.Since(s.start).Seconds()
	return &models.SensorReading{
		Temperature:   24.0 + 4.0*math.Sin(t/1800.0),
		Humidity:      60.0 + 10.0*math.Sin(t/2700.0),
		Pressure:      1013.0 + 2.0*math.Sin(t/7200.0),
		GasResistance: 120000.0 + 20000.0*math.Sin(t/3600.0),
		CapturedAt:    time.Now(),
	}, nil
}

func (s *SimSensor) Close() {}

// SimCamera writes a placeholder file per capture.
type SimCamera struct {
	log zerolog.Logger
}

func NewSimCamera(log zerolog.Logger) *SimCamera {
	return &SimCamera{log: log}
}

func (c *SimCamera) Capture(_ context.Context, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating capture dir: %w", err)
	}
	content := fmt.Sprintf("simulated capture at %s\n", time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing simulated capture: %w", err)
	}
	c.log.Info().Str("path", path).Msg("simulated capture")
	return path, nil
}

func (c *SimCamera) Close() {}
