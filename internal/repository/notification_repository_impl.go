package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jnst/user-notification-service/internal/model"
)

// NotificationRepositoryImpl implements NotificationRepository using PostgreSQL.
type NotificationRepositoryImpl struct {
	db DBTX
}

// NewNotificationRepositoryImpl creates a new NotificationRepository implementation.
func NewNotificationRepositoryImpl(db DBTX) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

// Record inserts the notification keyed by its queue message id. A second
// delivery of the same message is a no-op and reports false.
func (r *NotificationRepositoryImpl) Record(ctx context.Context, n *model.OrderNotification) (bool, error) {
	const query = `
		INSERT INTO order_notifications (message_id, subject, order_id, user_id, status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING received_at`

	err := querier(ctx, r.db).QueryRow(ctx, query,
		n.MessageID,
		string(n.Subject),
		n.OrderID,
		n.UserID,
		n.Status,
		n.Message,
	).Scan(&n.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err, "order_notification", n.MessageID)
	}

	return true, nil
}

// ListByUser returns the most recent notifications correlated with a user.
func (r *NotificationRepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID, limit uint64) ([]*model.OrderNotification, error) {
	query, args, err := psql.
		Select("message_id", "subject", "order_id", "user_id", "status", "message", "received_at").
		From("order_notifications").
		Where("user_id = ?", userID).
		OrderBy("received_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := querier(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "order_notifications", userID)
	}
	defer rows.Close()

	result := make([]*model.OrderNotification, 0)
	for rows.Next() {
		var (
			n       model.OrderNotification
			subject string
		)
		if err := rows.Scan(&n.MessageID, &subject, &n.OrderID, &n.UserID, &n.Status, &n.Message, &n.ReceivedAt); err != nil {
			return nil, mapError(err, "order_notifications", userID)
		}
		n.Subject = model.Subject(subject)
		result = append(result, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(err, "order_notifications", userID)
	}

	return result, nil
}
