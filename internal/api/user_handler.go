package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jnst/user-notification-service/internal/model"
)

// handleCreateUser handles POST /users.
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var params model.CreateUserParams
		if err := c.ShouldBindJSON(&params); err != nil {
			writeError(c, s.logger, invalidJSON(err))
			return
		}

		user, err := s.userService.CreateUser(c.Request.Context(), &params)
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		s.logger.Info("user created", slog.String("user_id", user.ID.String()))
		c.JSON(http.StatusCreated, user)
	}
}

// handleListUsers handles GET /users. Optional limit and offset paginate.
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryUint(c, "limit")
		if err != nil {
			writeError(c, s.logger, err)
			return
		}
		offset, err := queryUint(c, "offset")
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		users, err := s.userService.ListUsers(c.Request.Context(), model.ListUsersParams{Limit: limit, Offset: offset})
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		c.JSON(http.StatusOK, users)
	}
}

// handleGetUser handles GET /users/:id.
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.userService.GetUser(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		c.JSON(http.StatusOK, user)
	}
}

// handleUpdateUser handles PUT and PATCH /users/:id. Both are partial updates.
func (s *Server) handleUpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var params model.UpdateUserParams
		if err := c.ShouldBindJSON(&params); err != nil {
			writeError(c, s.logger, invalidJSON(err))
			return
		}

		user, err := s.userService.UpdateUser(c.Request.Context(), c.Param("id"), &params)
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		s.logger.Info("user updated", slog.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, user)
	}
}

// handleDeleteUser handles DELETE /users/:id.
func (s *Server) handleDeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.userService.DeleteUser(c.Request.Context(), id); err != nil {
			writeError(c, s.logger, err)
			return
		}

		s.logger.Info("user deleted", slog.String("user_id", id))
		c.Status(http.StatusNoContent)
	}
}

// handleListUserNotifications handles GET /users/:id/notifications.
func (s *Server) handleListUserNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryUint(c, "limit")
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		notifications, err := s.userService.ListUserNotifications(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			writeError(c, s.logger, err)
			return
		}

		c.JSON(http.StatusOK, notifications)
	}
}

func invalidJSON(err error) error {
	return fmt.Errorf("%w: %v", model.ErrInvalidJSON, err)
}

func queryUint(c *gin.Context, name string) (uint64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, model.NewValidationError(name, "must be a non-negative integer")
	}

	return v, nil
}
