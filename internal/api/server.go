// Package api provides the HTTP interface of the user service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jnst/user-notification-service/internal/consumer"
	"github.com/jnst/user-notification-service/internal/service"
)

const serviceName = "user-service"

// ConsumerStats reports the state of the notification consumer.
type ConsumerStats interface {
	Stats() consumer.Stats
}

// Pinger checks database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server of the user service.
type Server struct {
	router      *gin.Engine
	userService service.UserService
	consumer    ConsumerStats
	db          Pinger
	logger      *slog.Logger
}

// NewServer creates a Server with all routes registered.
// consumer and db may be nil; health then omits or skips them.
func NewServer(userService service.UserService, consumer ConsumerStats, db Pinger, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(AccessLog(logger))
	router.Use(SecurityHeaders())
	router.Use(CORS())

	s := &Server{
		router:      router,
		userService: userService,
		consumer:    consumer,
		db:          db,
		logger:      logger,
	}
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	for _, prefix := range []string{"/users", "/api/users"} {
		users := s.router.Group(prefix)
		{
			users.POST("", s.handleCreateUser())
			users.GET("", s.handleListUsers())
			users.GET("/:id", s.handleGetUser())
			users.PUT("/:id", s.handleUpdateUser())
			users.PATCH("/:id", s.handleUpdateUser())
			users.DELETE("/:id", s.handleDeleteUser())
			users.GET("/:id/notifications", s.handleListUserNotifications())
		}
	}

	s.router.GET("/health", s.handleHealth())
	s.router.GET("/health/ready", s.handleReady())

	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, s.logger, errRouteNotFound)
	})
}
