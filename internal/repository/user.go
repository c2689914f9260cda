package repository

import (
	"context"
	"fmt"
	"time"

	"chatterbox-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, first_name, last_name, email, avatar, about, password_hash, password_changed_at,
	verified, otp_hash, otp_expires_at, reset_token_hash, reset_expires_at,
	socket_id, status, created_at, updated_at,
	ARRAY(SELECT f.friend_id FROM friendships f WHERE f.user_id = users.id ORDER BY f.created_at)`

// PGUserRepository handles database operations for users
type PGUserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DB) *PGUserRepository {
	return &PGUserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var status string
	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Avatar, &user.About,
		&user.PasswordHash, &user.PasswordChangedAt,
		&user.Verified, &user.OTPHash, &user.OTPExpiresAt, &user.ResetTokenHash, &user.ResetExpiresAt,
		&user.SocketID, &status, &user.CreatedAt, &user.UpdatedAt,
		&user.Friends,
	)
	if err != nil {
		return nil, err
	}
	user.Status = models.PresenceStatus(status)
	return &user, nil
}

// Create creates a new user
func (r *PGUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, avatar, about, password_hash,
			verified, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.Avatar, user.About, user.PasswordHash,
		user.Verified, string(models.StatusOffline), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Errorf(models.ErrValidation, "email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *PGUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if nf := notFound(err, "user not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *PGUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if nf := notFound(err, "user not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetByResetToken retrieves the user holding an unexpired reset token
func (r *PGUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1 AND reset_expires_at > $2`
	user, err := scanUser(r.db.QueryRow(ctx, query, tokenHash, now))
	if err != nil {
		if nf := notFound(err, "reset token not found"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}
	return user, nil
}

// Update writes the profile, credential and verification fields of a user
func (r *PGUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			first_name = $2, last_name = $3, email = $4, avatar = $5, about = $6,
			password_hash = $7, password_changed_at = $8, verified = $9,
			otp_hash = $10, otp_expires_at = $11, reset_token_hash = $12, reset_expires_at = $13,
			updated_at = $14
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.Avatar, user.About,
		user.PasswordHash, user.PasswordChangedAt, user.Verified,
		user.OTPHash, user.OTPExpiresAt, user.ResetTokenHash, user.ResetExpiresAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.Errorf(models.ErrNotFound, "user not found")
	}
	return nil
}

// UpdatePresence records the user's connection handle and status
func (r *PGUserRepository) UpdatePresence(ctx context.Context, userID string, socketID *string, status models.PresenceStatus) error {
	query := `UPDATE users SET socket_id = $2, status = $3 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, userID, socketID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.Errorf(models.ErrNotFound, "user not found")
	}
	return nil
}

// ListVerified returns the profiles of all verified users
func (r *PGUserRepository) ListVerified(ctx context.Context) ([]models.UserProfile, error) {
	query := `
		SELECT id, first_name, last_name, email, status
		FROM users
		WHERE verified
		ORDER BY created_at
	`
	return r.queryProfiles(ctx, query)
}

// ListFriends returns the profiles in a user's friend set
func (r *PGUserRepository) ListFriends(ctx context.Context, userID string) ([]models.UserProfile, error) {
	query := `
		SELECT u.id, u.first_name, u.last_name, u.email, u.status
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY f.created_at
	`
	return r.queryProfiles(ctx, query, userID)
}

// GetProfiles returns the profiles of the given users
func (r *PGUserRepository) GetProfiles(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	query := `
		SELECT id, first_name, last_name, email, status
		FROM users
		WHERE id = ANY($1)
	`
	return r.queryProfiles(ctx, query, ids)
}

func (r *PGUserRepository) queryProfiles(ctx context.Context, query string, args ...any) ([]models.UserProfile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	profiles := []models.UserProfile{}
	for rows.Next() {
		var p models.UserProfile
		var status string
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &status); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		p.Status = models.PresenceStatus(status)
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return profiles, nil
}
