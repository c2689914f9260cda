package repository

import (
	"context"
	"fmt"

	"chatterbox-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PGMessageRepository handles database operations for messages
type PGMessageRepository struct {
	db DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DB) *PGMessageRepository {
	return &PGMessageRepository{db: db}
}

// Append stores msg at the next position of its conversation. Bumping
// conversations.last_seq takes a row lock, so concurrent appends to the same
// conversation commit one after another.
func (r *PGMessageRepository) Append(ctx context.Context, msg *models.Message) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		var seq int64
		err := tx.QueryRow(ctx, `
			UPDATE conversations
			SET last_seq = last_seq + 1
			WHERE id = $1
			RETURNING last_seq
		`, msg.ConversationID).Scan(&seq)
		if err != nil {
			if nf := notFound(err, "conversation not found"); nf != nil {
				return nf
			}
			return fmt.Errorf("failed to advance conversation sequence: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, conversation_id, seq, sender_id, recipient_id, type, text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			msg.ID, msg.ConversationID, seq, msg.SenderID, msg.RecipientID, string(msg.Type), msg.Text, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		msg.Seq = seq
		return nil
	})
}

// ListByConversation retrieves the messages of a conversation in append order
func (r *PGMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation existence: %w", err)
	}
	if !exists {
		return nil, models.Errorf(models.ErrNotFound, "conversation not found")
	}

	query := `
		SELECT id, conversation_id, seq, sender_id, recipient_id, type, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		var msgType string
		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Seq, &msg.SenderID, &msg.RecipientID,
			&msgType, &msg.Text, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Type = models.MessageType(msgType)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
