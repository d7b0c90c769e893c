package repository

import (
	"context"

	"github.com/jnst/user-notification-service/internal/model"
)

// DeadLetterRepositoryImpl implements DeadLetterRepository using PostgreSQL.
type DeadLetterRepositoryImpl struct {
	db DBTX
}

// NewDeadLetterRepositoryImpl creates a new DeadLetterRepository implementation.
func NewDeadLetterRepositoryImpl(db DBTX) DeadLetterRepository {
	return &DeadLetterRepositoryImpl{db: db}
}

// Save stores the dead letter. Saving the same message again (its ack
// failed after an earlier save) refreshes the reason and receive count.
func (r *DeadLetterRepositoryImpl) Save(ctx context.Context, dl *model.DeadLetter) error {
	const query = `
		INSERT INTO dead_letter_messages (message_id, body, reason, receive_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO UPDATE
		SET reason = EXCLUDED.reason, receive_count = EXCLUDED.receive_count
		RETURNING created_at`

	err := querier(ctx, r.db).QueryRow(ctx, query, dl.MessageID, dl.Body, dl.Reason, dl.ReceiveCount).Scan(&dl.CreatedAt)
	if err != nil {
		return mapError(err, "dead_letter", dl.MessageID)
	}

	return nil
}
