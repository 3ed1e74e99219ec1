package api

import (
	"github.com/Is0cre/growtent/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterCameraRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, engine EngineInterface, log zerolog.Logger) {
	camera := r.Group("/camera")
	camera.Use(mw.RequireAuth())
	{
		camera.POST("/snapshot", func(c *gin.Context) {
			path, err := engine.CaptureSnapshot(c)
			if err != nil {
				log.Error().Err(err).Msg("snapshot failed")
				c.JSON(500, gin.H{"error": "Capture failed"})
				return
			}
			c.JSON(200, gin.H{"path": path})
		})
	}
}
