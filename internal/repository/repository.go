package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatterbox-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepository is the identity store: profiles, credentials, presence and
// the friend graph read side.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePresence(ctx context.Context, userID string, socketID *string, status models.PresenceStatus) error
	ListVerified(ctx context.Context) ([]models.UserProfile, error)
	ListFriends(ctx context.Context, userID string) ([]models.UserProfile, error)
	GetProfiles(ctx context.Context, ids []string) ([]models.UserProfile, error)
}

// FriendRequestRepository stores pending friend requests and applies accepts
// to the friend graph.
type FriendRequestRepository interface {
	// Create inserts req unless a pending request already exists for the
	// unordered pair, in which case the existing one is returned with created=false.
	Create(ctx context.Context, req *models.FriendRequest) (existing *models.FriendRequest, created bool, err error)
	GetByID(ctx context.Context, id string) (*models.FriendRequest, error)
	ListByRecipient(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	// Accept deletes the request and links both users as friends atomically.
	Accept(ctx context.Context, id string) (*models.FriendRequest, error)
}

// ConversationRepository stores one-to-one conversations
type ConversationRepository interface {
	// GetOrCreate returns the conversation of conv's normalized pair, inserting
	// conv if none exists. Safe under concurrent calls for the same pair.
	GetOrCreate(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]*models.Conversation, error)
}

// MessageRepository stores the ordered message log of conversations
type MessageRepository interface {
	// Append assigns msg the next position in its conversation and stores it.
	Append(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
}

// DB is the subset of pgxpool.Pool used by the repositories
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func withTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("failed to commit transaction: %w", err)
		}
	}()

	return fn(tx)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Errorf(models.ErrNotFound, format, args...)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
