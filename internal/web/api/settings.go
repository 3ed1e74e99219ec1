package api

import (
	"fmt"
	"time"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/hardware"
	"github.com/Is0cre/growtent/internal/models"
	"github.com/Is0cre/growtent/internal/web/middleware"
	webModels "github.com/Is0cre/growtent/internal/web/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterSettingsRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, engine EngineInterface, log zerolog.Logger) {
	settings := r.Group("/settings")
	settings.Use(mw.RequireAuth())
	{
		settings.GET("/devices", func(c *gin.Context) {
			all, err := database.GetAllDeviceSettings(c)
			if err != nil {
				log.Error().Err(err).Msg("fetching device settings")
				c.JSON(500, gin.H{"error": "Failed to fetch settings"})
				return
			}
			c.JSON(200, all)
		})

		settings.GET("/devices/:name", func(c *gin.Context) {
			cfg, err := database.GetDeviceSettings(c, c.Param("name"))
			if err == db.ErrNotFound {
				c.JSON(404, gin.H{"error": "Device not found"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch settings"})
				return
			}
			c.JSON(200, cfg)
		})

		settings.PUT("/devices/:name", func(c *gin.Context) {
			name := c.Param("name")
			if !hardware.KnownDevice(name) {
				c.JSON(404, gin.H{"error": "Unknown device"})
				return
			}

			var req webModels.DeviceSettingsRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if err := validateDeviceSettings(req); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}

			cfg := models.DeviceConfig{
				Name:       name,
				Mode:       req.Mode,
				Enabled:    req.Enabled,
				Schedule:   req.Schedule,
				Thresholds: req.Thresholds,
			}
			if err := database.SaveDeviceSettings(c, cfg); err != nil {
				log.Error().Err(err).Str("device", name).Msg("saving device settings")
				c.JSON(500, gin.H{"error": "Failed to save settings"})
				return
			}
			engine.ReloadDeviceSettings(name)
			c.JSON(200, cfg)
		})

		settings.GET("/alerts", func(c *gin.Context) {
			s, err := database.GetAlertSettings(c)
			if err != nil {
				log.Error().Err(err).Msg("fetching alert settings")
				c.JSON(500, gin.H{"error": "Failed to fetch settings"})
				return
			}
			c.JSON(200, s)
		})

		settings.PUT("/alerts", func(c *gin.Context) {
			var req models.AlertSettings
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.NotificationInterval <= 0 {
				c.JSON(400, gin.H{"error": "notification_interval must be positive"})
				return
			}
			if err := database.SaveAlertSettings(c, req); err != nil {
				log.Error().Err(err).Msg("saving alert settings")
				c.JSON(500, gin.H{"error": "Failed to save settings"})
				return
			}
			c.JSON(200, req)
		})
	}
}

func validateDeviceSettings(req webModels.DeviceSettingsRequest) error {
	if !req.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	for i, rule := range req.Schedule {
		switch rule.Kind() {
		case models.RuleTimeWindow:
			if err := validClock(rule.On); err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
			if err := validClock(rule.Off); err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
		case models.RuleDutyCycle:
			if rule.DurationMin > rule.IntervalMin {
				return fmt.Errorf("rule %d: duration exceeds interval", i)
			}
		case models.RulePulseAt:
			if err := validClock(rule.Time); err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
		default:
			return fmt.Errorf("rule %d: unrecognized shape", i)
		}
	}
	return nil
}

func validClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time %q", s)
	}
	return nil
}
