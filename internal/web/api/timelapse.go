package api

import (
	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterTimelapseRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, log zerolog.Logger) {
	tl := r.Group("/projects/:id/timelapse")
	tl.Use(mw.RequireAuth())
	{
		tl.GET("", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}
			images, err := database.GetTimelapseImages(c, p.ID)
			if err != nil {
				log.Error().Err(err).Int64("project", p.ID).Msg("fetching timelapse images")
				c.JSON(500, gin.H{"error": "Failed to fetch images"})
				return
			}
			c.JSON(200, images)
		})

		tl.GET("/status", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}
			count, err := database.GetTimelapseImageCount(c, p.ID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch status"})
				return
			}
			c.JSON(200, gin.H{
				"enabled":      p.TimelapseEnabled,
				"interval":     p.TimelapseInterval,
				"image_count":  count,
				"last_capture": p.TimelapseLastCap,
			})
		})
	}
}
