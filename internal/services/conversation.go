package services

import (
	"context"
	"time"

	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConversationService handles one-to-one conversations and their messages
type ConversationService struct {
	userRepo         repository.UserRepository
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewConversationService creates a new conversation service
func NewConversationService(
	userRepo repository.UserRepository,
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
) *ConversationService {
	return &ConversationService{
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// FindConversations returns the conversations of a user with participants
// resolved and without messages
func (s *ConversationService) FindConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convs, err := s.conversationRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []*models.Conversation{}, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, c := range convs {
		for _, id := range []string{c.UserAID, c.UserBID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	profiles, err := s.profilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		c.Participants = participants(c, profiles)
	}
	return convs, nil
}

// GetOrCreate returns the conversation between a and b, creating it on first
// use. Concurrent calls for the same pair return the same conversation.
func (s *ConversationService) GetOrCreate(ctx context.Context, a, b string) (*models.Conversation, error) {
	if a == "" || b == "" || a == b {
		return nil, models.Errorf(models.ErrValidation, "a conversation needs two distinct participants")
	}

	profiles, err := s.profilesByID(ctx, []string{a, b})
	if err != nil {
		return nil, err
	}
	if len(profiles) != 2 {
		return nil, models.Errorf(models.ErrNotFound, "user not found")
	}

	userAID, userBID := models.NormalizePair(a, b)
	conv, created, err := s.conversationRepo.GetOrCreate(ctx, &models.Conversation{
		ID:        uuid.New().String(),
		UserAID:   userAID,
		UserBID:   userBID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	if created {
		log.Info().
			Str("conversation_id", conv.ID).
			Str("user_a_id", conv.UserAID).
			Str("user_b_id", conv.UserBID).
			Msg("Conversation created")
	}

	conv.Participants = participants(conv, profiles)
	return conv, nil
}

// GetMessages returns the message log of a conversation
func (s *ConversationService) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

// AppendMessage appends msg to its conversation. The sender and recipient must
// be the conversation's participants.
func (s *ConversationService) AppendMessage(ctx context.Context, msg *models.Message) error {
	switch msg.Type {
	case "":
		msg.Type = models.MessageText
	case models.MessageText, models.MessageLink:
	case models.MessageFile:
		return models.Errorf(models.ErrUnimplemented, "file messages are not supported")
	default:
		return models.Errorf(models.ErrValidation, "unknown message type %q", msg.Type)
	}

	conv, err := s.conversationRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	if msg.SenderID == msg.RecipientID || !conv.HasParticipants(msg.SenderID, msg.RecipientID) {
		return models.Errorf(models.ErrValidation, "sender and recipient must be the conversation's participants")
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return err
	}

	log.Debug().
		Str("conversation_id", msg.ConversationID).
		Str("message_id", msg.ID).
		Int64("seq", msg.Seq).
		Msg("Message appended")

	return nil
}

func (s *ConversationService) profilesByID(ctx context.Context, ids []string) (map[string]models.UserProfile, error) {
	profiles, err := s.userRepo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.UserProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return byID, nil
}

func participants(c *models.Conversation, profiles map[string]models.UserProfile) []models.UserProfile {
	out := make([]models.UserProfile, 0, 2)
	for _, id := range []string{c.UserAID, c.UserBID} {
		if p, ok := profiles[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, models.UserProfile{ID: id})
		}
	}
	return out
}
