package services

import (
	"context"
	"time"

	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FriendService handles the friend request workflow and friend listings
type FriendService struct {
	userRepo    repository.UserRepository
	requestRepo repository.FriendRequestRepository
	notifier    Notifier
}

// NewFriendService creates a new friend service
func NewFriendService(userRepo repository.UserRepository, requestRepo repository.FriendRequestRepository, notifier Notifier) *FriendService {
	return &FriendService{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		notifier:    notifier,
	}
}

// SendRequest creates a friend request from fromID to toID and notifies both
// users. A request already pending for the pair is returned as is and the
// notifications are sent again.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID string) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, models.Errorf(models.ErrValidation, "cannot send a friend request to yourself")
	}

	from, err := s.userRepo.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, toID); err != nil {
		return nil, err
	}
	if from.IsFriend(toID) {
		return nil, models.Errorf(models.ErrValidation, "users are already friends")
	}

	req, created, err := s.requestRepo.Create(ctx, &models.FriendRequest{
		ID:          uuid.New().String(),
		SenderID:    fromID,
		RecipientID: toID,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID).
		Str("from", fromID).
		Str("to", toID).
		Bool("created", created).
		Msg("Friend request sent")

	s.notifier.SendToUser(toID, WSMessage{
		Event: EventNewFriendRequest,
		Data:  map[string]any{"message": "New Friend Request Received", "request": req},
	})
	s.notifier.SendToUser(fromID, WSMessage{
		Event: EventRequestSent,
		Data:  map[string]any{"message": "Request sent successfully!", "request": req},
	})

	return req, nil
}

// AcceptRequest makes the two users of a pending request friends and
// notifies both
func (s *FriendService) AcceptRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	req, err := s.requestRepo.Accept(ctx, requestID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID).
		Str("sender", req.SenderID).
		Str("recipient", req.RecipientID).
		Msg("Friend request accepted")

	msg := WSMessage{
		Event: EventRequestAccepted,
		Data:  map[string]any{"message": "Friend Request Accepted", "request_id": req.ID},
	}
	s.notifier.SendToUser(req.SenderID, msg)
	s.notifier.SendToUser(req.RecipientID, msg)

	return req, nil
}

// ListRequests returns the requests addressed to a user
func (s *FriendService) ListRequests(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	return s.requestRepo.ListByRecipient(ctx, userID)
}

// ListFriends returns the friends of a user
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]models.UserProfile, error) {
	return s.userRepo.ListFriends(ctx, userID)
}

// ListCandidates returns verified users that are neither user nor one of its friends
func (s *FriendService) ListCandidates(ctx context.Context, user *models.User) ([]models.UserProfile, error) {
	all, err := s.userRepo.ListVerified(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.UserProfile, 0, len(all))
	for _, p := range all {
		if p.ID == user.ID || user.IsFriend(p.ID) {
			continue
		}
		candidates = append(candidates, models.UserProfile{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName})
	}
	return candidates, nil
}
