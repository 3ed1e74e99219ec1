package api

import (
	"strconv"
	"time"

	"github.com/Is0cre/growtent/internal/db"
	"github.com/Is0cre/growtent/internal/models"
	"github.com/Is0cre/growtent/internal/web/middleware"
	webModels "github.com/Is0cre/growtent/internal/web/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterProjectRoutes(r *gin.Engine, mw *middleware.MiddlewareManager, database *db.DB, log zerolog.Logger) {
	projects := r.Group("/projects")
	projects.Use(mw.RequireAuth())
	{
		projects.GET("", func(c *gin.Context) {
			all, err := database.GetAllProjects(c)
			if err != nil {
				log.Error().Err(err).Msg("fetching projects")
				c.JSON(500, gin.H{"error": "Failed to fetch projects"})
				return
			}
			c.JSON(200, all)
		})

		projects.GET("/active", func(c *gin.Context) {
			p, err := database.GetActiveProject(c)
			if err == db.ErrNotFound {
				c.JSON(404, gin.H{"error": "No active project"})
				return
			}
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch project"})
				return
			}
			c.JSON(200, p)
		})

		projects.POST("", func(c *gin.Context) {
			var req webModels.CreateProjectRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.TimelapseInterval < models.MinTimelapseInterval {
				req.TimelapseInterval = models.MinTimelapseInterval
			}

			p, err := database.CreateProject(c, req.Name, req.Notes, req.TimelapseEnabled, req.TimelapseInterval)
			if err != nil {
				log.Error().Err(err).Msg("creating project")
				c.JSON(500, gin.H{"error": "Failed to create project"})
				return
			}
			c.JSON(201, p)
		})

		projects.GET("/:id", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}
			c.JSON(200, p)
		})

		projects.PUT("/:id", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}

			var req webModels.UpdateProjectRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}
			if req.Name != nil {
				p.Name = *req.Name
			}
			if req.Notes != nil {
				p.Notes = *req.Notes
			}
			if req.TimelapseEnabled != nil {
				p.TimelapseEnabled = *req.TimelapseEnabled
			}
			if req.TimelapseInterval != nil {
				p.TimelapseInterval = *req.TimelapseInterval
				if p.TimelapseInterval < models.MinTimelapseInterval {
					p.TimelapseInterval = models.MinTimelapseInterval
				}
			}

			if err := database.UpdateProject(c, p); err != nil {
				log.Error().Err(err).Int64("project", p.ID).Msg("updating project")
				c.JSON(500, gin.H{"error": "Failed to update project"})
				return
			}
			c.JSON(200, p)
		})

		projects.POST("/:id/activate", setStatusHandler(database, log, models.ProjectActive))
		projects.POST("/:id/complete", setStatusHandler(database, log, models.ProjectCompleted))
		projects.POST("/:id/archive", setStatusHandler(database, log, models.ProjectArchived))

		projects.GET("/:id/diary", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}
			entries, err := database.GetDiaryEntries(c, p.ID)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to fetch diary"})
				return
			}
			c.JSON(200, entries)
		})

		projects.POST("/:id/diary", func(c *gin.Context) {
			p, ok := fetchProject(c, database)
			if !ok {
				return
			}

			var req webModels.AddDiaryEntryRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": "Invalid request"})
				return
			}

			entry := models.DiaryEntry{
				ProjectID: p.ID,
				Timestamp: time.Now(),
				Title:     req.Title,
				Text:      req.Text,
				Photos:    req.Photos,
			}
			id, err := database.CreateDiaryEntry(c, entry)
			if err != nil {
				log.Error().Err(err).Int64("project", p.ID).Msg("creating diary entry")
				c.JSON(500, gin.H{"error": "Failed to create entry"})
				return
			}
			entry.ID = id
			c.JSON(201, entry)
		})

		projects.DELETE("/:id/diary/:entryID", func(c *gin.Context) {
			entryID, err := strconv.ParseInt(c.Param("entryID"), 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "Invalid entry id"})
				return
			}
			if err := database.DeleteDiaryEntry(c, entryID); err != nil {
				if err == db.ErrNotFound {
					c.JSON(404, gin.H{"error": "Entry not found"})
					return
				}
				c.JSON(500, gin.H{"error": "Failed to delete entry"})
				return
			}
			c.JSON(200, gin.H{"deleted": entryID})
		})
	}
}

func setStatusHandler(database *db.DB, log zerolog.Logger, status models.ProjectStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := fetchProject(c, database)
		if !ok {
			return
		}
		if err := database.SetProjectStatus(c, p.ID, status); err != nil {
			log.Error().Err(err).Int64("project", p.ID).Str("status", string(status)).Msg("setting project status")
			c.JSON(500, gin.H{"error": "Failed to update status"})
			return
		}
		p.Status = status
		c.JSON(200, p)
	}
}

func fetchProject(c *gin.Context, database *db.DB) (*models.Project, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid project id"})
		return nil, false
	}
	p, err := database.GetProject(c, id)
	if err == db.ErrNotFound {
		c.JSON(404, gin.H{"error": "Project not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to fetch project"})
		return nil, false
	}
	return p, true
}
