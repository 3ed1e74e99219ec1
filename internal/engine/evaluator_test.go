package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Is0cre/growtent/internal/models"
)

func fptr(v float64) *float64 { return &v }

func at(hour, min, sec int) time.Time {
	return time.Date(2025, 6, 15, hour, min, sec, 0, time.UTC)
}

func TestEvaluateDisabledDeviceForcesOff(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	cfg := models.DeviceConfig{
		Name:     "lights",
		Mode:     models.ModeSchedule,
		Enabled:  false,
		Schedule: []models.ScheduleRule{{On: "00:00", Off: "23:59"}},
	}

	assert.Equal(t, Off, ev.Evaluate(cfg, at(12, 0, 0), nil, nil))
}

func TestEvaluateManualModeHasNoOpinion(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())

	cfg := models.DeviceConfig{
		Name:       "lights",
		Mode:       models.ModeManual,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(20)},
	}

	assert.Equal(t, NoOpinion, ev.Evaluate(cfg, at(12, 0, 0), fptr(35), fptr(90)))
}

func TestTimeWindowSameDay(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "lights",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{On: "06:00", Off: "22:00"}},
	}

	assert.Equal(t, Off, ev.Evaluate(cfg, at(5, 59, 59), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(6, 0, 0), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(21, 59, 0), nil, nil))
	// Half-open interval: off at exactly the off time.
	assert.Equal(t, Off, ev.Evaluate(cfg, at(22, 0, 0), nil, nil))
}

func TestTimeWindowOvernight(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "heater",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{On: "22:00", Off: "06:00"}},
	}

	assert.Equal(t, On, ev.Evaluate(cfg, at(22, 0, 0), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(23, 30, 0), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(0, 0, 0), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(5, 59, 0), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, at(6, 0, 0), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, at(12, 0, 0), nil, nil))
}

func TestDutyCycle(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "exhaust_fan",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{DurationMin: 15, IntervalMin: 60}},
	}

	start := at(10, 0, 0)

	// First evaluation starts the cycle.
	assert.Equal(t, On, ev.Evaluate(cfg, start, nil, nil))
	// Idempotent at the same instant.
	assert.Equal(t, On, ev.Evaluate(cfg, start, nil, nil))

	assert.Equal(t, On, ev.Evaluate(cfg, start.Add(14*time.Minute+59*time.Second), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, start.Add(15*time.Minute), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, start.Add(59*time.Minute), nil, nil))

	// Next evaluation past the interval restarts the cycle.
	assert.Equal(t, On, ev.Evaluate(cfg, start.Add(60*time.Minute), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, start.Add(74*time.Minute), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, start.Add(75*time.Minute), nil, nil))
}

func TestDutyCycleSelfSynchronizes(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "exhaust_fan",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{DurationMin: 5, IntervalMin: 30}},
	}

	start := at(10, 0, 0)
	require.Equal(t, On, ev.Evaluate(cfg, start, nil, nil))

	// First evaluation 40 minutes later (past the interval) restarts the
	// cycle there, not on a wall-clock boundary.
	late := start.Add(40 * time.Minute)
	assert.Equal(t, On, ev.Evaluate(cfg, late, nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, late.Add(4*time.Minute), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, late.Add(5*time.Minute), nil, nil))
}

func TestPulseAt(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "nutrient_pump",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{Time: "08:00", DurationMin: 5}},
	}

	assert.Equal(t, Off, ev.Evaluate(cfg, at(7, 59, 59), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(8, 0, 0), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(8, 4, 59), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, at(8, 5, 0), nil, nil))
}

func TestPulseAtCrossesMidnight(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "nutrient_pump",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{Time: "23:58", DurationMin: 5}},
	}

	// Just after midnight, still inside yesterday's pulse window.
	assert.Equal(t, On, ev.Evaluate(cfg, at(0, 1, 0), nil, nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, at(0, 3, 0), nil, nil))
	// Before tonight's pulse.
	assert.Equal(t, Off, ev.Evaluate(cfg, at(23, 57, 59), nil, nil))
	assert.Equal(t, On, ev.Evaluate(cfg, at(23, 58, 0), nil, nil))
}

func TestThresholdShedDevice(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}

	now := at(12, 0, 0)
	assert.Equal(t, Off, ev.Evaluate(cfg, now, fptr(27.9), nil))
	assert.Equal(t, On, ev.Evaluate(cfg, now, fptr(28.0), nil))
	assert.Equal(t, On, ev.Evaluate(cfg, now, fptr(28.1), nil))
}

func TestThresholdDeficitDevices(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	now := at(12, 0, 0)

	heater := models.DeviceConfig{
		Name:       "heater",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(18.0)},
	}
	assert.Equal(t, On, ev.Evaluate(heater, now, fptr(17.5), nil))
	assert.Equal(t, On, ev.Evaluate(heater, now, fptr(18.0), nil))
	assert.Equal(t, Off, ev.Evaluate(heater, now, fptr(18.1), nil))

	humidifier := models.DeviceConfig{
		Name:       "humidifier",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Humidity: fptr(50.0)},
	}
	assert.Equal(t, On, ev.Evaluate(humidifier, now, nil, fptr(45.0)))
	assert.Equal(t, Off, ev.Evaluate(humidifier, now, nil, fptr(55.0)))
}

func TestThresholdEitherFiresOr(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: fptr(28.0), Humidity: fptr(75.0)},
	}

	now := at(12, 0, 0)
	// Humidity threshold fires even though temperature is fine.
	assert.Equal(t, On, ev.Evaluate(cfg, now, fptr(22.0), fptr(80.0)))
	// Missing humidity reading never blocks the temperature threshold.
	assert.Equal(t, On, ev.Evaluate(cfg, now, fptr(30.0), nil))
	assert.Equal(t, Off, ev.Evaluate(cfg, now, fptr(22.0), nil))
}

func TestAutoModeCombinesScheduleAndThreshold(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:       "exhaust_fan",
		Mode:       models.ModeAuto,
		Enabled:    true,
		Schedule:   []models.ScheduleRule{{On: "10:00", Off: "11:00"}},
		Thresholds: models.Thresholds{Temperature: fptr(28.0)},
	}

	// Inside schedule window, temperature fine.
	assert.Equal(t, On, ev.Evaluate(cfg, at(10, 30, 0), fptr(22.0), nil))
	// Outside schedule window, threshold breach still forces On.
	assert.Equal(t, On, ev.Evaluate(cfg, at(15, 0, 0), fptr(30.0), nil))
	// Outside window, temperature fine.
	assert.Equal(t, Off, ev.Evaluate(cfg, at(15, 0, 0), fptr(22.0), nil))
}

func TestMalformedRuleIsSkipped(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:    "lights",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{On: "not-a-time", Off: "26:99"},
			{On: "06:00", Off: "22:00"},
		},
	}

	// The bad rule must not abort evaluation of the good one.
	assert.Equal(t, On, ev.Evaluate(cfg, at(12, 0, 0), nil, nil))
}

func TestEmptyScheduleIsOff(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:    "lights",
		Mode:    models.ModeSchedule,
		Enabled: true,
	}
	assert.Equal(t, Off, ev.Evaluate(cfg, at(12, 0, 0), nil, nil))
}

func TestResetDutyCycles(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "exhaust_fan",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{DurationMin: 5, IntervalMin: 60}},
	}

	start := at(10, 0, 0)
	require.Equal(t, On, ev.Evaluate(cfg, start, nil, nil))
	require.Equal(t, Off, ev.Evaluate(cfg, start.Add(10*time.Minute), nil, nil))

	// After a reset the next evaluation starts a fresh cycle.
	ev.ResetDutyCycles("exhaust_fan")
	assert.Equal(t, On, ev.Evaluate(cfg, start.Add(10*time.Minute), nil, nil))
}

// Settings handlers reset duty cycles from their own goroutines while the
// loop keeps evaluating; run both under the race detector.
func TestResetDutyCyclesDuringEvaluation(t *testing.T) {
	ev := NewEvaluator(zerolog.Nop())
	cfg := models.DeviceConfig{
		Name:     "exhaust_fan",
		Mode:     models.ModeSchedule,
		Enabled:  true,
		Schedule: []models.ScheduleRule{{DurationMin: 5, IntervalMin: 60}},
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		now := at(10, 0, 0)
		for {
			select {
			case <-stop:
				return
			default:
				ev.Evaluate(cfg, now, nil, nil)
				now = now.Add(time.Minute)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				ev.ResetDutyCycles("exhaust_fan")
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
}
