package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ProtectedPaths require a bearer token when one is configured.
var ProtectedPaths = map[string]bool{
	"/upload":        true,
	"/parse":         true,
	"/clean_uploads": true,
	"/detect":        true,
}

// AuthMiddleware checks "Authorization: Bearer <token>" on ProtectedPaths.
// An empty token disables the check.
func AuthMiddleware(token string) gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if token == "" || !ProtectedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		if parts[1] != token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Next()
	})
}

// CORSMiddleware allows any origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
