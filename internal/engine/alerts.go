package engine

import (
	"fmt"
	"time"

	"github.com/Is0cre/growtent/internal/models"
)

// alertThrottler decides which out-of-bounds conditions may notify now.
// Throttle state is keyed by condition, so a temperature alert never
// suppresses a humidity alert.
type alertThrottler struct {
	lastSent map[string]time.Time
}

func newAlertThrottler() *alertThrottler {
	return &alertThrottler{lastSent: make(map[string]time.Time)}
}

// conditions derives the currently breached bounds. Low and high for the
// same quantity are mutually exclusive.
func conditions(r models.SensorReading, s models.AlertSettings) []models.AlertCondition {
	var fired []models.AlertCondition

	if s.TempMin != nil && r.Temperature < *s.TempMin {
		fired = append(fired, models.AlertCondition{
			Key:     "temp_low",
			Message: fmt.Sprintf("🌡️ Temperature too LOW: %.1f°C (min: %.1f°C)", r.Temperature, *s.TempMin),
		})
	} else if s.TempMax != nil && r.Temperature > *s.TempMax {
		fired = append(fired, models.AlertCondition{
			Key:     "temp_high",
			Message: fmt.Sprintf("🌡️ Temperature too HIGH: %.1f°C (max: %.1f°C)", r.Temperature, *s.TempMax),
		})
	}

	if s.HumidityMin != nil && r.Humidity < *s.HumidityMin {
		fired = append(fired, models.AlertCondition{
			Key:     "humidity_low",
			Message: fmt.Sprintf("💧 Humidity too LOW: %.1f%% (min: %.1f%%)", r.Humidity, *s.HumidityMin),
		})
	} else if s.HumidityMax != nil && r.Humidity > *s.HumidityMax {
		fired = append(fired, models.AlertCondition{
			Key:     "humidity_high",
			Message: fmt.Sprintf("💧 Humidity too HIGH: %.1f%% (max: %.1f%%)", r.Humidity, *s.HumidityMax),
		})
	}

	return fired
}

// check returns the conditions that should notify now, updating the per-key
// last-sent timestamps for those it lets through.
func (t *alertThrottler) check(now time.Time, r models.SensorReading, s models.AlertSettings) []models.AlertCondition {
	if !s.Enabled {
		return nil
	}

	interval := time.Duration(s.NotificationInterval) * time.Second
	var emit []models.AlertCondition
	for _, cond := range conditions(r, s) {
		if last, ok := t.lastSent[cond.Key]; ok && now.Sub(last) < interval {
			continue
		}
		t.lastSent[cond.Key] = now
		emit = append(emit, cond)
	}
	return emit
}

// forget drops the last-sent timestamp for one condition, letting its next
// occurrence notify immediately. Used when a delivery fails.
func (t *alertThrottler) forget(key string) {
	delete(t.lastSent, key)
}
