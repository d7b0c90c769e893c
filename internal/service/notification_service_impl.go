package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jnst/user-notification-service/internal/model"
	"github.com/jnst/user-notification-service/internal/repository"
)

// NotificationServiceImpl records order-lifecycle notifications.
type NotificationServiceImpl struct {
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	logger           *slog.Logger
}

// NewNotificationServiceImpl creates a new NotificationService implementation.
func NewNotificationServiceImpl(
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	logger *slog.Logger,
) NotificationService {
	return &NotificationServiceImpl{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// Process records order notifications keyed by messageID, so a redelivered
// message leaves a single record. Other subjects are ignored.
func (s *NotificationServiceImpl) Process(ctx context.Context, messageID string, n model.Notification) error {
	switch v := n.(type) {
	case model.OrderCreated:
		return s.recordOrder(ctx, messageID, v.Subject(), v.Message, v.Order)
	case model.OrderStatusUpdated:
		return s.recordOrder(ctx, messageID, v.Subject(), v.Message, v.Order)
	default:
		s.logger.Debug("ignoring notification",
			slog.String("message_id", messageID),
			slog.String("subject", string(n.Subject())),
		)
		return nil
	}
}

func (s *NotificationServiceImpl) recordOrder(
	ctx context.Context,
	messageID string,
	subject model.Subject,
	text string,
	order *model.OrderSnapshot,
) error {
	rec := &model.OrderNotification{
		MessageID: messageID,
		Subject:   subject,
		Message:   text,
	}

	if order != nil {
		if order.ID != "" {
			id := string(order.ID)
			rec.OrderID = &id
		}
		if order.Status != "" {
			status := order.Status
			rec.Status = &status
		}

		userID, err := s.correlateUser(ctx, string(order.UserID))
		if err != nil {
			return &model.ProcessingError{Subject: subject, Err: err}
		}
		rec.UserID = userID
	}

	created, err := s.notificationRepo.Record(ctx, rec)
	if err != nil {
		return &model.ProcessingError{Subject: subject, Err: err}
	}

	attrs := []any{
		slog.String("message_id", messageID),
		slog.String("subject", string(subject)),
	}
	if rec.OrderID != nil {
		attrs = append(attrs, slog.String("order_id", *rec.OrderID))
	}

	if !created {
		s.logger.Info("duplicate notification ignored", attrs...)
		return nil
	}

	s.logger.Info("order notification recorded", attrs...)

	return nil
}

// correlateUser returns the id of the stored user the order belongs to, or
// nil when the order's user id is not a known user.
func (s *NotificationServiceImpl) correlateUser(ctx context.Context, raw string) (*uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Debug("order references unknown user", slog.String("user_id", raw))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user.ID, nil
}
