package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuth gates the management endpoints behind the configured admin
// credentials. Credentials are accepted either as HTTP Basic auth or as
// username/password query parameters (the capture panel sends the latter).
func AdminAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok {
			user = c.Query("username")
			pass = c.Query("password")
		}

		if !equal(user, username) || !equal(pass, password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
