package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatterbox-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// PGFriendRequestRepository handles database operations for friend requests
type PGFriendRequestRepository struct {
	db DB
}

// NewFriendRequestRepository creates a new friend request repository
func NewFriendRequestRepository(db DB) *PGFriendRequestRepository {
	return &PGFriendRequestRepository{db: db}
}

// Create inserts a friend request unless one is already pending for the pair
func (r *PGFriendRequestRepository) Create(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, bool, error) {
	query := `
		INSERT INTO friend_requests (id, sender_id, recipient_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING id, sender_id, recipient_id, created_at
	`
	var created models.FriendRequest
	err := r.db.QueryRow(ctx, query, req.ID, req.SenderID, req.RecipientID, req.CreatedAt).Scan(
		&created.ID, &created.SenderID, &created.RecipientID, &created.CreatedAt,
	)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create friend request: %w", err)
	}

	existing, err := r.getByPair(ctx, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PGFriendRequestRepository) getByPair(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	query := `
		SELECT id, sender_id, recipient_id, created_at
		FROM friend_requests
		WHERE LEAST(sender_id, recipient_id) = LEAST($1::text, $2::text)
		  AND GREATEST(sender_id, recipient_id) = GREATEST($1::text, $2::text)
	`
	var req models.FriendRequest
	err := r.db.QueryRow(ctx, query, a, b).Scan(&req.ID, &req.SenderID, &req.RecipientID, &req.CreatedAt)
	if err != nil {
		if nf := notFound(err, "friend request not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get friend request by pair: %w", err)
	}
	return &req, nil
}

// GetByID retrieves a friend request by ID
func (r *PGFriendRequestRepository) GetByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	query := `
		SELECT id, sender_id, recipient_id, created_at
		FROM friend_requests
		WHERE id = $1
	`
	var req models.FriendRequest
	err := r.db.QueryRow(ctx, query, id).Scan(&req.ID, &req.SenderID, &req.RecipientID, &req.CreatedAt)
	if err != nil {
		if nf := notFound(err, "friend request not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get friend request: %w", err)
	}
	return &req, nil
}

// ListByRecipient returns requests addressed to userID with the sender projected
func (r *PGFriendRequestRepository) ListByRecipient(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	query := `
		SELECT fr.id, fr.recipient_id, fr.created_at, u.id, u.first_name, u.last_name
		FROM friend_requests fr
		JOIN users u ON u.id = fr.sender_id
		WHERE fr.recipient_id = $1
		ORDER BY fr.created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend requests: %w", err)
	}
	defer rows.Close()

	views := []models.FriendRequestView{}
	for rows.Next() {
		var v models.FriendRequestView
		if err := rows.Scan(&v.ID, &v.RecipientID, &v.CreatedAt, &v.Sender.ID, &v.Sender.FirstName, &v.Sender.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}

	return views, nil
}

// Accept deletes the request and writes both friendship directions in one transaction
func (r *PGFriendRequestRepository) Accept(ctx context.Context, id string) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			DELETE FROM friend_requests
			WHERE id = $1
			RETURNING id, sender_id, recipient_id, created_at
		`, id).Scan(&req.ID, &req.SenderID, &req.RecipientID, &req.CreatedAt)
		if err != nil {
			if nf := notFound(err, "friend request not found"); nf != nil {
				return nf
			}
			return fmt.Errorf("failed to delete friend request: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO friendships (user_id, friend_id, created_at)
			VALUES ($1, $2, $3), ($2, $1, $3)
			ON CONFLICT DO NOTHING
		`, req.SenderID, req.RecipientID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to create friendship: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}
