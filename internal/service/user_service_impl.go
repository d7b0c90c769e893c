package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jnst/user-notification-service/internal/model"
	"github.com/jnst/user-notification-service/internal/repository"
)

const defaultNotificationLimit = 50

// UserServiceImpl implements UserService for user management business logic.
type UserServiceImpl struct {
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	transactionMgr   repository.TransactionManager
}

// NewUserServiceImpl creates a new UserService implementation.
func NewUserServiceImpl(
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	transactionMgr repository.TransactionManager,
) UserService {
	return &UserServiceImpl{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		transactionMgr:   transactionMgr,
	}
}

// CreateUser validates params and inserts a user with a fresh id.
// A taken email yields ErrEmailTaken.
func (s *UserServiceImpl) CreateUser(ctx context.Context, params *model.CreateUserParams) (*model.User, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var createdUser *model.User

	err := s.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.userRepo.GetByEmail(ctx, params.Email)
		switch {
		case err == nil:
			return model.ErrEmailTaken
		case !errors.Is(err, model.ErrNotFound):
			return fmt.Errorf("failed to check email: %w", err)
		}

		user, err := s.userRepo.Create(ctx, &model.User{
			ID:    uuid.New(),
			Name:  params.Name,
			Email: params.Email,
			Phone: params.Phone,
		})
		if err != nil {
			// The unique index still catches a concurrent insert.
			if errors.Is(err, model.ErrConflict) {
				return model.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		createdUser = user

		return nil
	})
	if err != nil {
		return nil, err
	}

	return createdUser, nil
}

// GetUser retrieves a user by ID.
func (s *UserServiceImpl) GetUser(ctx context.Context, id string) (*model.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, userError(err)
	}

	return user, nil
}

// ListUsers returns users, newest first.
func (s *UserServiceImpl) ListUsers(ctx context.Context, params model.ListUsersParams) ([]*model.User, error) {
	return s.userRepo.List(ctx, params)
}

// UpdateUser applies a partial update. Omitted fields keep their value.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, id string, params *model.UpdateUserParams) (*model.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.Update(ctx, uid, params)
	if err != nil {
		return nil, userError(err)
	}

	return user, nil
}

// DeleteUser removes a user.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	if _, err := s.userRepo.Delete(ctx, uid); err != nil {
		return userError(err)
	}

	return nil
}

// ListUserNotifications returns order notifications correlated with the user.
func (s *UserServiceImpl) ListUserNotifications(ctx context.Context, id string, limit uint64) ([]*model.OrderNotification, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if limit == 0 {
		limit = defaultNotificationLimit
	}

	return s.notificationRepo.ListByUser(ctx, user.ID, limit)
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, model.ErrUserNotFound
	}

	return uid, nil
}

func userError(err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.ErrUserNotFound
	case errors.Is(err, model.ErrConflict):
		return model.ErrEmailTaken
	default:
		return err
	}
}
