// Package memory provides in-process implementations of the repository
// interfaces. All repositories of one Store share a single lock, which makes
// multi-record operations such as accepting a friend request atomic.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"chatterbox-backend/internal/models"
)

type pairKey struct{ a, b string }

func newPairKey(x, y string) pairKey {
	a, b := models.NormalizePair(x, y)
	return pairKey{a: a, b: b}
}

// Store holds all records
type Store struct {
	mu             sync.Mutex
	users          map[string]*models.User
	friendRequests map[string]*models.FriendRequest
	requestPairs   map[pairKey]string
	conversations  map[string]*models.Conversation
	conversationBy map[pairKey]string
	messages       map[string][]models.Message
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:          make(map[string]*models.User),
		friendRequests: make(map[string]*models.FriendRequest),
		requestPairs:   make(map[pairKey]string),
		conversations:  make(map[string]*models.Conversation),
		conversationBy: make(map[pairKey]string),
		messages:       make(map[string][]models.Message),
	}
}

func (s *Store) Users() *UserRepository                   { return &UserRepository{s: s} }
func (s *Store) FriendRequests() *FriendRequestRepository { return &FriendRequestRepository{s: s} }
func (s *Store) Conversations() *ConversationRepository   { return &ConversationRepository{s: s} }
func (s *Store) Messages() *MessageRepository             { return &MessageRepository{s: s} }

func copyUser(u *models.User) *models.User {
	c := *u
	c.Friends = slices.Clone(u.Friends)
	if c.Friends == nil {
		c.Friends = []string{}
	}
	return &c
}

// UserRepository is the in-memory identity store
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return models.Errorf(models.ErrValidation, "email already exists")
		}
	}
	stored := copyUser(user)
	if stored.Status == "" {
		stored.Status = models.StatusOffline
	}
	r.s.users[user.ID] = stored
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "user not found")
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "user not found")
}

func (r *UserRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if tokenHash != "" && u.ResetTokenHash == tokenHash && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			return copyUser(u), nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "reset token not found")
}

func (r *UserRepository) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.users[user.ID]
	if !ok {
		return models.Errorf(models.ErrNotFound, "user not found")
	}
	updated := copyUser(user)
	// presence and the friend graph have their own write paths
	updated.SocketID = stored.SocketID
	updated.Status = stored.Status
	updated.Friends = stored.Friends
	r.s.users[user.ID] = updated
	return nil
}

func (r *UserRepository) UpdatePresence(_ context.Context, userID string, socketID *string, status models.PresenceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return models.Errorf(models.ErrNotFound, "user not found")
	}
	u.SocketID = socketID
	u.Status = status
	return nil
}

func (r *UserRepository) ListVerified(_ context.Context) ([]models.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	profiles := []models.UserProfile{}
	for _, u := range r.s.sortedUsers() {
		if u.Verified {
			profiles = append(profiles, u.Profile())
		}
	}
	return profiles, nil
}

func (r *UserRepository) ListFriends(_ context.Context, userID string) ([]models.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "user not found")
	}
	profiles := []models.UserProfile{}
	for _, id := range u.Friends {
		if f, ok := r.s.users[id]; ok {
			profiles = append(profiles, f.Profile())
		}
	}
	return profiles, nil
}

func (r *UserRepository) GetProfiles(_ context.Context, ids []string) ([]models.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	profiles := []models.UserProfile{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			profiles = append(profiles, u.Profile())
		}
	}
	return profiles, nil
}

func (s *Store) sortedUsers() []*models.User {
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// FriendRequestRepository is the in-memory friend request store
type FriendRequestRepository struct{ s *Store }

func (r *FriendRequestRepository) Create(_ context.Context, req *models.FriendRequest) (*models.FriendRequest, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := newPairKey(req.SenderID, req.RecipientID)
	if id, ok := r.s.requestPairs[key]; ok {
		existing := *r.s.friendRequests[id]
		return &existing, false, nil
	}
	stored := *req
	r.s.friendRequests[req.ID] = &stored
	r.s.requestPairs[key] = req.ID
	created := stored
	return &created, true, nil
}

func (r *FriendRequestRepository) GetByID(_ context.Context, id string) (*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.friendRequests[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "friend request not found")
	}
	c := *req
	return &c, nil
}

func (r *FriendRequestRepository) ListByRecipient(_ context.Context, userID string) ([]models.FriendRequestView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	views := []models.FriendRequestView{}
	for _, req := range r.s.friendRequests {
		if req.RecipientID != userID {
			continue
		}
		sender, ok := r.s.users[req.SenderID]
		if !ok {
			continue
		}
		views = append(views, models.FriendRequestView{
			ID:          req.ID,
			Sender:      models.UserProfile{ID: sender.ID, FirstName: sender.FirstName, LastName: sender.LastName},
			RecipientID: req.RecipientID,
			CreatedAt:   req.CreatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views, nil
}

func (r *FriendRequestRepository) Accept(_ context.Context, id string) (*models.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.friendRequests[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "friend request not found")
	}
	sender, ok := r.s.users[req.SenderID]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "user not found")
	}
	recipient, ok := r.s.users[req.RecipientID]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "user not found")
	}

	if !slices.Contains(sender.Friends, recipient.ID) {
		sender.Friends = append(sender.Friends, recipient.ID)
	}
	if !slices.Contains(recipient.Friends, sender.ID) {
		recipient.Friends = append(recipient.Friends, sender.ID)
	}
	delete(r.s.friendRequests, id)
	delete(r.s.requestPairs, newPairKey(req.SenderID, req.RecipientID))

	accepted := *req
	return &accepted, nil
}

// ConversationRepository is the in-memory conversation store
type ConversationRepository struct{ s *Store }

func (r *ConversationRepository) GetOrCreate(_ context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := newPairKey(conv.UserAID, conv.UserBID)
	if id, ok := r.s.conversationBy[key]; ok {
		existing := *r.s.conversations[id]
		return &existing, false, nil
	}
	stored := models.Conversation{ID: conv.ID, UserAID: key.a, UserBID: key.b, CreatedAt: conv.CreatedAt}
	r.s.conversations[stored.ID] = &stored
	r.s.conversationBy[key] = stored.ID
	r.s.messages[stored.ID] = nil
	created := stored
	return &created, true, nil
}

func (r *ConversationRepository) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conv, ok := r.s.conversations[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "conversation not found")
	}
	c := *conv
	return &c, nil
}

func (r *ConversationRepository) ListByParticipant(_ context.Context, userID string) ([]*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var convs []*models.Conversation
	for _, conv := range r.s.conversations {
		if conv.UserAID == userID || conv.UserBID == userID {
			c := *conv
			convs = append(convs, &c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	return convs, nil
}

// MessageRepository is the in-memory message log
type MessageRepository struct{ s *Store }

func (r *MessageRepository) Append(_ context.Context, msg *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[msg.ConversationID]; !ok {
		return models.Errorf(models.ErrNotFound, "conversation not found")
	}
	msg.Seq = int64(len(r.s.messages[msg.ConversationID]) + 1)
	r.s.messages[msg.ConversationID] = append(r.s.messages[msg.ConversationID], *msg)
	return nil
}

func (r *MessageRepository) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[conversationID]; !ok {
		return nil, models.Errorf(models.ErrNotFound, "conversation not found")
	}
	msgs := slices.Clone(r.s.messages[conversationID])
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}
