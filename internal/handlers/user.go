package handlers

import (
	"net/http"

	"chatterbox-backend/internal/middleware"
	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService   *services.UserService
	friendService *services.FriendService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, friendService *services.FriendService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		friendService: friendService,
	}
}

// UpdateMe handles PATCH /user/update-me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req models.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	updated, err := h.userService.UpdateMe(r.Context(), user.ID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("Profile updated")

	respondJSON(w, http.StatusOK, Response{Message: "Profile Updated Successfully!", Data: updated})
}

// GetUsers handles GET /user/get-users
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	users, err := h.friendService.ListCandidates(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{Message: "Users found successfully!", Data: users})
}

// GetFriends handles GET /user/get-friends
func (h *UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{Message: "Friends found successfully!", Data: friends})
}

// GetFriendRequests handles GET /user/get-friend-requests
func (h *UserHandler) GetFriendRequests(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	requests, err := h.friendService.ListRequests(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, Response{Message: "Friend requests found successfully!", Data: requests})
}
