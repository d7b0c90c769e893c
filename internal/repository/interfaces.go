// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jnst/user-notification-service/internal/model"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, params model.ListUsersParams) ([]*model.User, error)
	Update(ctx context.Context, id uuid.UUID, params *model.UpdateUserParams) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// NotificationRepository defines methods for recorded order notifications.
type NotificationRepository interface {
	// Record stores n unless a row with the same message id exists.
	// It reports whether a new row was written.
	Record(ctx context.Context, n *model.OrderNotification) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit uint64) ([]*model.OrderNotification, error)
}

// DeadLetterRepository defines methods for poison-message storage.
type DeadLetterRepository interface {
	Save(ctx context.Context, dl *model.DeadLetter) error
}

// TransactionManager defines methods for database transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
