package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Is0cre/growtent/internal/models"
)

func alertSettings() models.AlertSettings {
	return models.AlertSettings{
		Enabled:              true,
		TempMin:              fptr(15.0),
		TempMax:              fptr(32.0),
		HumidityMin:          fptr(40.0),
		HumidityMax:          fptr(80.0),
		NotificationInterval: 300,
	}
}

func TestAlertThrottlerFirstBreachFires(t *testing.T) {
	th := newAlertThrottler()
	now := at(12, 0, 0)

	fired := th.check(now, models.SensorReading{Temperature: 35, Humidity: 60}, alertSettings())
	require.Len(t, fired, 1)
	assert.Equal(t, "temp_high", fired[0].Key)
	assert.Contains(t, fired[0].Message, "35.0")
}

func TestAlertThrottlerSuppressesWithinInterval(t *testing.T) {
	th := newAlertThrottler()
	now := at(12, 0, 0)
	reading := models.SensorReading{Temperature: 35, Humidity: 60}

	require.Len(t, th.check(now, reading, alertSettings()), 1)
	// 10 seconds later: suppressed.
	assert.Empty(t, th.check(now.Add(10*time.Second), reading, alertSettings()))
	// 301 seconds later: fires again.
	assert.Len(t, th.check(now.Add(301*time.Second), reading, alertSettings()), 1)
}

func TestAlertThrottlerKeysAreIndependent(t *testing.T) {
	th := newAlertThrottler()
	now := at(12, 0, 0)

	// Temperature alert fires first.
	require.Len(t, th.check(now, models.SensorReading{Temperature: 35, Humidity: 60}, alertSettings()), 1)

	// A humidity breach moments later is a different key and still fires.
	fired := th.check(now.Add(5*time.Second), models.SensorReading{Temperature: 35, Humidity: 90}, alertSettings())
	require.Len(t, fired, 1)
	assert.Equal(t, "humidity_high", fired[0].Key)
}

func TestAlertConditionsMutuallyExclusive(t *testing.T) {
	// A reading cannot be both too low and too high.
	fired := conditions(models.SensorReading{Temperature: 10, Humidity: 90}, alertSettings())
	require.Len(t, fired, 2)
	assert.Equal(t, "temp_low", fired[0].Key)
	assert.Equal(t, "humidity_high", fired[1].Key)
}

func TestAlertThrottlerDisabledConfig(t *testing.T) {
	th := newAlertThrottler()
	settings := alertSettings()
	settings.Enabled = false

	assert.Empty(t, th.check(at(12, 0, 0), models.SensorReading{Temperature: 50, Humidity: 5}, settings))
}

func TestAlertThrottlerForgetAllowsImmediateRetry(t *testing.T) {
	th := newAlertThrottler()
	now := at(12, 0, 0)
	reading := models.SensorReading{Temperature: 35, Humidity: 60}

	require.Len(t, th.check(now, reading, alertSettings()), 1)
	assert.Empty(t, th.check(now.Add(time.Second), reading, alertSettings()))

	// A failed delivery forgets the key; the next occurrence fires without
	// waiting out the interval.
	th.forget("temp_high")
	assert.Len(t, th.check(now.Add(2*time.Second), reading, alertSettings()), 1)
}

func TestAlertInBoundsIsQuiet(t *testing.T) {
	th := newAlertThrottler()
	assert.Empty(t, th.check(at(12, 0, 0), models.SensorReading{Temperature: 24, Humidity: 60}, alertSettings()))
}
