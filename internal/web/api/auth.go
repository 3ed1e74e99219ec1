package api

import (
	"github.com/Is0cre/growtent/auth"
	webModels "github.com/Is0cre/growtent/internal/web/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RegisterAuthRoutes(r *gin.Engine, authModule *auth.AuthModule, log zerolog.Logger) {
	r.POST("/auth/login", func(c *gin.Context) {
		var req webModels.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "Invalid request"})
			return
		}

		token, err := authModule.Login(req.Password)
		if err != nil {
			log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("failed login attempt")
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}

		c.JSON(200, gin.H{"token": token})
	})
}
