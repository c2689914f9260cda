package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"chatterbox-backend/internal/config"
	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpLength      = 6
	otpChars       = "0123456789"
	resetTokenSize = 32
)

// RegisterInput is the body of a registration request
type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// UserService handles registration, verification, login and profile updates
type UserService struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
	mailer   Mailer
	cfg      config.AuthConfig
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserRepository, tokens *TokenManager, mailer Mailer, cfg config.AuthConfig) *UserService {
	return &UserService{
		userRepo: userRepo,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Register creates an unverified account and mails it an OTP. For an email
// that belongs to an unverified account a fresh OTP is sent instead and
// alreadyExists is true.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (alreadyExists bool, err error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	if in.FirstName == "" {
		return false, models.Errorf(models.ErrValidation, "First Name is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return false, models.Errorf(models.ErrValidation, "Email (%s) is invalid!", in.Email)
	}
	if in.Password == "" {
		return false, models.Errorf(models.ErrValidation, "Password is required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing.Verified:
		return false, models.Errorf(models.ErrValidation, "Email is already in use, Please login.")
	case err == nil:
		return true, s.SendOTP(ctx, existing)
	case !errors.Is(err, models.ErrNotFound):
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		FirstName:    in.FirstName,
		LastName:     strings.TrimSpace(in.LastName),
		Email:        in.Email,
		PasswordHash: string(hash),
		Status:       models.StatusOffline,
		Friends:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return false, err
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")

	return false, s.SendOTP(ctx, user)
}

// SendOTP issues a new OTP to the user, replacing any pending one
func (s *UserService) SendOTP(ctx context.Context, user *models.User) error {
	otp, err := generateOTP()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}

	expires := s.now().Add(s.cfg.OTPTTL)
	user.OTPHash = string(hash)
	user.OTPExpiresAt = &expires
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	body, err := renderOTPMail(user.FirstName, otp)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, user.Email, "Verification OTP", body); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to send OTP mail")
		return models.Errorf(models.ErrDependency, "There was an error sending the email, Please try again later.")
	}
	return nil
}

// generateOTP generates a random numeric code
func generateOTP() (string, error) {
	code := make([]byte, otpLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(otpChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		code[i] = otpChars[n.Int64()]
	}
	return string(code), nil
}

// VerifyOTP marks the account verified when otp matches the pending,
// unexpired code, and returns an auth token.
func (s *UserService) VerifyOTP(ctx context.Context, email, otp string) (token string, userID string, err error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", "", err
	}
	if err == nil && user.Verified {
		return "", "", models.Errorf(models.ErrValidation, "Email is already verified")
	}
	if err != nil || user.OTPExpiresAt == nil || !user.OTPExpiresAt.After(s.now()) {
		return "", "", models.Errorf(models.ErrValidation, "Email is invalid or OTP expired")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(otp)) != nil {
		return "", "", models.Errorf(models.ErrValidation, "OTP is incorrect")
	}

	user.Verified = true
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", "", err
	}

	token, err = s.tokens.GenerateJWT(user.ID)
	if err != nil {
		return "", "", err
	}

	log.Info().Str("user_id", user.ID).Msg("User verified")

	return token, user.ID, nil
}

// Login checks the credentials and returns an auth token
func (s *UserService) Login(ctx context.Context, email, password string) (token string, userID string, err error) {
	if email == "" || password == "" {
		return "", "", models.Errorf(models.ErrValidation, "Both email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", "", err
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", "", models.Errorf(models.ErrValidation, "Email or password is incorrect")
	}

	token, err = s.tokens.GenerateJWT(user.ID)
	if err != nil {
		return "", "", err
	}
	return token, user.ID, nil
}

// ForgotPassword stores a reset token for the account and mails its link.
// The token is cleared again if the mail cannot be sent.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Errorf(models.ErrNotFound, "There is no user with given email address.")
		}
		return err
	}

	raw := make([]byte, resetTokenSize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	resetToken := hex.EncodeToString(raw)

	expires := s.now().Add(s.cfg.ResetTokenTTL)
	user.ResetTokenHash = hashResetToken(resetToken)
	user.ResetExpiresAt = &expires
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/auth/new-password?token=%s", strings.TrimRight(s.cfg.ClientOriginURL, "/"), resetToken)
	body, err := renderResetMail(user.FirstName, resetURL)
	if err == nil {
		err = s.mailer.Send(ctx, user.Email, "Forgot Password", body)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to send reset mail")

		user.ResetTokenHash = ""
		user.ResetExpiresAt = nil
		if uerr := s.userRepo.Update(ctx, user); uerr != nil {
			log.Error().Err(uerr).Str("user_id", user.ID).Msg("Failed to clear reset token")
		}
		return models.Errorf(models.ErrDependency, "There was an error sending the email, Please try again later.")
	}

	return nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResetPassword sets a new password using an unexpired reset token and
// returns a fresh auth token. Tokens issued before the reset stop working.
func (s *UserService) ResetPassword(ctx context.Context, resetToken, password, confirmPassword string) (string, error) {
	if password == "" {
		return "", models.Errorf(models.ErrValidation, "Password is required")
	}
	if password != confirmPassword {
		return "", models.Errorf(models.ErrValidation, "Password and Confirm Password do not match")
	}

	now := s.now()
	user, err := s.userRepo.GetByResetToken(ctx, hashResetToken(resetToken), now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.Errorf(models.ErrValidation, "Token is Invalid or Expired")
		}
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	changedAt := now.Truncate(time.Second)
	user.PasswordHash = string(hash)
	user.PasswordChangedAt = &changedAt
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	user.UpdatedAt = now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", err
	}

	log.Info().Str("user_id", user.ID).Msg("Password reset")

	return s.tokens.GenerateJWT(user.ID)
}

// Authenticate resolves the user of an auth token. Tokens of deleted users
// and tokens issued before the last password change are rejected.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Errorf(models.ErrAuth, "The user belonging to this token no longer exists.")
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, models.Errorf(models.ErrAuth, "User recently updated password! Please log in again.")
	}

	return user, nil
}

// GetByID returns a user by id
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateMe applies a profile update to the user's own record
func (s *UserService) UpdateMe(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		name := strings.TrimSpace(*upd.FirstName)
		if name == "" {
			return nil, models.Errorf(models.ErrValidation, "First Name is required")
		}
		user.FirstName = name
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.About != nil {
		user.About = *upd.About
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
