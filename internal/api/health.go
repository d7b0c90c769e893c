package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// handleHealth handles GET /health. It reports liveness and consumer state.
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "healthy", "service": serviceName}
		if s.consumer != nil {
			body["consumer"] = s.consumer.Stats()
		}

		c.JSON(http.StatusOK, body)
	}
}

// handleReady handles GET /health/ready. It fails while the database is unreachable.
func (s *Server) handleReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
			defer cancel()

			if err := s.db.Ping(ctx); err != nil {
				s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
				c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: ErrorDetail{
					Code:    CodeUnavailable,
					Message: "database unavailable",
				}})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": serviceName})
	}
}
