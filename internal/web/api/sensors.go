package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/statecache"
	"github.com/Is0cre/growtent/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// livePushInterval is how often the websocket stream pushes the latest reading.
const livePushInterval = 5 * time.Second

func RegisterSensorRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, cache *statecache.Cache, log zerolog.Logger) {
	sensors := r.Group("/sensors")
	sensors.Use(mw.RequireAuth())
	{
		sensors.GET("/current", func(c *gin.Context) {
			reading, err := cache.LatestReading(c)
			if err != nil {
				log.Error().Err(err).Msg("fetching latest reading")
				c.JSON(500, gin.H{"error": "Failed to fetch reading"})
				return
			}
			if reading == nil {
				c.JSON(404, gin.H{"error": "No recent reading"})
				return
			}
			c.JSON(200, reading)
		})

		sensors.GET("/history", func(c *gin.Context) {
			hours := queryInt(c, "hours", 24)
			limit := queryInt(c, "limit", 1000)
			to := time.Now()
			from := to.Add(-time.Duration(hours) * time.Hour)

			logs, err := database.GetSensorHistory(c, nil, from, to, limit)
			if err != nil {
				log.Error().Err(err).Msg("fetching sensor history")
				c.JSON(500, gin.H{"error": "Failed to fetch history"})
				return
			}
			c.JSON(200, logs)
		})

		sensors.GET("/stats", func(c *gin.Context) {
			hours := queryInt(c, "hours", 24)
			to := time.Now()
			from := to.Add(-time.Duration(hours) * time.Hour)

			stats, err := database.GetSensorStats(c, from, to)
			if err != nil {
				log.Error().Err(err).Msg("fetching sensor stats")
				c.JSON(500, gin.H{"error": "Failed to fetch stats"})
				return
			}
			c.JSON(200, stats)
		})

		sensors.GET("/live", func(c *gin.Context) {
			ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
			if err != nil {
				return
			}
			defer ws.Close()

			ticker := time.NewTicker(livePushInterval)
			defer ticker.Stop()

			for {
				reading, err := cache.LatestReading(c)
				if err == nil && reading != nil {
					if err := ws.WriteJSON(reading); err != nil {
						return
					}
				}

				select {
				case <-c.Request.Context().Done():
					return
				case <-ticker.C:
				}
			}
		})
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
