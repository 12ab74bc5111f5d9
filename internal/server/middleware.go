package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/models"
	"go.uber.org/zap"
)

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware handles CORS for browser-based editor integrations.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// apiKeyAuthMiddleware validates the local API key when one is configured.
// The GitHub token itself never acts as the local key.
func (s *Server) apiKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		if apiKey == "" || apiKey != s.cfg.Security.APIKey {
			s.logger.Warn("invalid API key attempt",
				zap.String("key_prefix", github.MaskToken(apiKey)),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(401, models.ErrorResponse{Error: models.ErrorDetail{
				Message: "Invalid API key",
				Type:    "invalid_request_error",
				Code:    "invalid_api_key",
			}})
			c.Abort()
			return
		}

		c.Next()
	}
}
