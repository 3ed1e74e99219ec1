package db

import (
	"context"
	"errors"

	"github.com/Is0cre/growtent/internal/models"
)

func f(v float64) *float64 { return &v }

// DefaultDeviceSettings is the factory configuration for the tent's relay
// channels. Seeded on first run; user edits win afterwards.
var DefaultDeviceSettings = []models.DeviceConfig{
	{
		Name:    "lights",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{On: "06:00", Off: "22:00"},
		},
	},
	{
		Name:    "exhaust_fan",
		Mode:    models.ModeAuto,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{DurationMin: 15, IntervalMin: 60},
		},
		Thresholds: models.Thresholds{Temperature: f(28.0), Humidity: f(75.0)},
	},
	{
		Name:    "circulatory_fan_1",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{On: "00:00", Off: "23:59"},
		},
	},
	{
		Name:    "circulatory_fan_2",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{On: "00:00", Off: "23:59"},
		},
	},
	{
		Name:       "humidifier",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Humidity: f(50.0)},
	},
	{
		Name:       "dehumidifier",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Humidity: f(70.0)},
	},
	{
		Name:       "heater",
		Mode:       models.ModeThreshold,
		Enabled:    true,
		Thresholds: models.Thresholds{Temperature: f(18.0)},
	},
	{
		Name:    "nutrient_pump",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{Time: "08:00", DurationMin: 5},
			{Time: "20:00", DurationMin: 5},
		},
	},
	{
		Name:    "air_pump",
		Mode:    models.ModeSchedule,
		Enabled: true,
		Schedule: []models.ScheduleRule{
			{On: "00:00", Off: "23:59"},
		},
	},
}

// DefaultAlertSettings is the factory alerting configuration.
var DefaultAlertSettings = models.AlertSettings{
	Enabled:              true,
	TempMin:              f(15.0),
	TempMax:              f(32.0),
	HumidityMin:          f(40.0),
	HumidityMax:          f(80.0),
	NotificationInterval: 300,
}

// SeedDefaults inserts default device and alert settings for anything not
// already configured. Existing rows are never overwritten.
func (d *DB) SeedDefaults(ctx context.Context) error {
	existing, err := d.GetAllDeviceSettings(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range DefaultDeviceSettings {
		if _, ok := existing[cfg.Name]; ok {
			continue
		}
		if err := d.SaveDeviceSettings(ctx, cfg); err != nil {
			return err
		}
	}

	if _, err := d.GetAlertSettings(ctx); errors.Is(err, ErrNotFound) {
		return d.SaveAlertSettings(ctx, DefaultAlertSettings)
	} else if err != nil {
		return err
	}
	return nil
}
