package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuth rejects requests without a valid bearer token. When no admin
// password is configured the API runs open and the middleware passes through.
func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.auth.Enabled() {
			c.Next()
			return
		}

		if err := m.auth.ValidateToken(c.GetHeader("Authorization")); err != nil {
			m.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected request")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
