package api

import (
	"context"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/hardware"
	"github.com/Is0cre/growtent/internal/models"
	"github.com/Is0cre/growtent/internal/web/middleware"
	webModels "github.com/Is0cre/growtent/internal/web/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// EngineInterface defines the methods the API needs from the control loop.
type EngineInterface interface {
	TurnDeviceOn(ctx context.Context, name string) error
	TurnDeviceOff(ctx context.Context, name string) error
	ToggleDevice(ctx context.Context, name string) (bool, error)
	DeviceStates() map[string]bool
	CurrentReading(ctx context.Context) (*models.SensorReading, error)
	CaptureSnapshot(ctx context.Context) (string, error)
	HardwareStatus() models.HardwareStatus
	ReloadDeviceSettings(device string)
	Running() bool
}

func RegisterDeviceRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, engine EngineInterface, log zerolog.Logger) {
	devices := r.Group("/devices")
	devices.Use(mw.RequireAuth())
	{
		devices.GET("", func(c *gin.Context) {
			settings, err := database.GetAllDeviceSettings(c)
			if err != nil {
				log.Error().Err(err).Msg("fetching device settings")
				c.JSON(500, gin.H{"error": "Failed to fetch devices"})
				return
			}
			states := engine.DeviceStates()

			out := make([]webModels.DeviceStatus, 0, len(hardware.DeviceNames))
			for _, name := range hardware.DeviceNames {
				status := webModels.DeviceStatus{Name: name, State: states[name]}
				if cfg, ok := settings[name]; ok {
					status.Mode = cfg.Mode
					status.Enabled = cfg.Enabled
				}
				out = append(out, status)
			}
			c.JSON(200, out)
		})

		devices.GET("/:name", func(c *gin.Context) {
			name := c.Param("name")
			if !hardware.KnownDevice(name) {
				c.JSON(404, gin.H{"error": "Unknown device"})
				return
			}
			cfg, err := database.GetDeviceSettings(c, name)
			if err != nil && err != db.ErrNotFound {
				c.JSON(500, gin.H{"error": "Failed to fetch device"})
				return
			}
			status := webModels.DeviceStatus{Name: name, State: engine.DeviceStates()[name]}
			if cfg != nil {
				status.Mode = cfg.Mode
				status.Enabled = cfg.Enabled
			}
			c.JSON(200, status)
		})

		devices.POST("/:name/on", func(c *gin.Context) {
			name := c.Param("name")
			if err := engine.TurnDeviceOn(c, name); err != nil {
				log.Error().Err(err).Str("device", name).Msg("manual on failed")
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"device": name, "state": true})
		})

		devices.POST("/:name/off", func(c *gin.Context) {
			name := c.Param("name")
			if err := engine.TurnDeviceOff(c, name); err != nil {
				log.Error().Err(err).Str("device", name).Msg("manual off failed")
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"device": name, "state": false})
		})

		devices.POST("/:name/toggle", func(c *gin.Context) {
			name := c.Param("name")
			state, err := engine.ToggleDevice(c, name)
			if err != nil {
				log.Error().Err(err).Str("device", name).Msg("toggle failed")
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			c.JSON(200, gin.H{"device": name, "state": state})
		})
	}
}
