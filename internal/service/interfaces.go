// Package service provides business logic layer implementations.
package service

import (
	"context"

	"github.com/jnst/user-notification-service/internal/model"
)

// UserService defines business logic methods for user management.
// Ids are opaque strings; an id that cannot name a user yields ErrUserNotFound.
type UserService interface {
	CreateUser(ctx context.Context, params *model.CreateUserParams) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, params model.ListUsersParams) ([]*model.User, error)
	UpdateUser(ctx context.Context, id string, params *model.UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUserNotifications(ctx context.Context, id string, limit uint64) ([]*model.OrderNotification, error)
}

// NotificationService applies decoded queue notifications.
type NotificationService interface {
	// Process is safe to call repeatedly with the same messageID.
	Process(ctx context.Context, messageID string, n model.Notification) error
}
