package api

import (
	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterSystemRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, engine EngineInterface, log zerolog.Logger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":         "ok",
			"engine_running": engine.Running(),
		})
	})

	system := r.Group("/system")
	system.Use(mw.RequireAuth())
	{
		system.GET("/hardware", func(c *gin.Context) {
			c.JSON(200, engine.HardwareStatus())
		})

		system.GET("/analysis", func(c *gin.Context) {
			last, err := database.GetSystemSetting(c, "last_analysis")
			if err == db.ErrNotFound {
				c.JSON(404, gin.H{"error": "No analysis yet"})
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("fetching last analysis")
				c.JSON(500, gin.H{"error": "Failed to fetch analysis"})
				return
			}
			c.JSON(200, gin.H{"summary": last})
		})
	}
}
