package handlers

import (
	"net/http"

	"chatterbox-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration, verification and password flows
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	alreadyExists, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	message := "Please verify with OTP sent to your Email"
	if alreadyExists {
		message = "Email already exists! Please verify with OTP sent to your Email"
	}
	respondJSON(w, http.StatusOK, Response{Message: message})
}

// VerifyOTPRequest is the body of POST /auth/verify-otp
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP handles POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	token, userID, err := h.userService.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	setTokenCookie(w, token)
	respondJSON(w, http.StatusOK, Response{Message: "OTP verified successfully!", Token: token, UserID: userID})
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	token, userID, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("User logged in")

	setTokenCookie(w, token)
	respondJSON(w, http.StatusOK, Response{Message: "Logged in successfully", Token: token, UserID: userID})
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{Message: "Reset Password link sent to Email."})
}

// ResetPasswordRequest is the body of POST /auth/reset-password
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := h.userService.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	setTokenCookie(w, token)
	respondJSON(w, http.StatusOK, Response{Message: "Password Reset Successfully", Token: token})
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
