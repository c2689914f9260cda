package repository

import (
	"context"
	"fmt"

	"chatterbox-backend/internal/models"
)

// PGConversationRepository handles database operations for conversations
type PGConversationRepository struct {
	db DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db DB) *PGConversationRepository {
	return &PGConversationRepository{db: db}
}

// GetOrCreate inserts the conversation or returns the one already stored for
// the same participant pair. The unique (user_a_id, user_b_id) constraint makes
// concurrent calls converge on a single row.
func (r *PGConversationRepository) GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	userAID, userBID := models.NormalizePair(conv.UserAID, conv.UserBID)

	query := `
		INSERT INTO conversations (id, user_a_id, user_b_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_a_id, user_b_id) DO UPDATE SET user_a_id = EXCLUDED.user_a_id
		RETURNING id, user_a_id, user_b_id, created_at, (xmax = 0)
	`
	var stored models.Conversation
	var created bool
	err := r.db.QueryRow(ctx, query, conv.ID, userAID, userBID, conv.CreatedAt).Scan(
		&stored.ID, &stored.UserAID, &stored.UserBID, &stored.CreatedAt, &created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create conversation: %w", err)
	}
	return &stored, created, nil
}

// GetByID retrieves a conversation by ID
func (r *PGConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at
		FROM conversations
		WHERE id = $1
	`
	var conv models.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.UserAID, &conv.UserBID, &conv.CreatedAt,
	)
	if err != nil {
		if nf := notFound(err, "conversation not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListByParticipant retrieves all conversations a user takes part in
func (r *PGConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at
		FROM conversations
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserAID, &conv.UserBID, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return convs, nil
}
