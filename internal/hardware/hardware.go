// Package hardware abstracts the tent's physical collaborators. The control
// engine is written against these interfaces only; real implementations talk
// MQTT (relay board, BME680 node) or exec the camera tool, and each has a
// deterministic simulated counterpart used when SIMULATE is set or real
// initialization fails.
package hardware

import (
	"context"

	"github.com/Is0cre/growtent/internal/models"
)

// Actuator drives the relay channels.
type Actuator interface {
	// SetState energizes or releases one named relay channel.
	SetState(ctx context.Context, device string, on bool) error
	// GetState reports the last commanded state of one channel.
	GetState(device string) (bool, error)
	// States reports all channels.
	States() map[string]bool
	// AllOff releases every channel.
	AllOff(ctx context.Context) error
	Close()
}

// SensorSource yields environment readings.
type SensorSource interface {
	// Read returns the most recent reading, or an error when none is
	// available (node offline, stale data).
	Read(ctx context.Context) (*models.SensorReading, error)
	Close()
}

// Capturer takes still photos.
type Capturer interface {
	// Capture writes a still image to path and returns the final path.
	Capture(ctx context.Context, path string) (string, error)
	Close()
}

// DeviceNames lists the relay channels in display order.
var DeviceNames = []string{
	"lights",
	"air_pump",
	"nutrient_pump",
	"circulatory_fan_1",
	"circulatory_fan_2",
	"exhaust_fan",
	"humidifier",
	"heater",
	"dehumidifier",
}

// KnownDevice reports whether name is a configured relay channel.
func KnownDevice(name string) bool {
	for _, d := range DeviceNames {
		if d == name {
			return true
		}
	}
	return false
}
