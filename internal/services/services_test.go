package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"chatterbox-backend/internal/config"
	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeSession struct {
	id     string
	userID string

	mu     sync.Mutex
	msgs   []WSMessage
	closed bool
}

func newFakeSession(userID, id string) *fakeSession {
	return &fakeSession{id: id, userID: userID}
}

func (s *fakeSession) ID() string     { return s.id }
func (s *fakeSession) UserID() string { return s.userID }

func (s *fakeSession) Send(msg WSMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Event)
	}
	return out
}

func (s *fakeSession) last() WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return WSMessage{}
	}
	return s.msgs[len(s.msgs)-1]
}

func (s *fakeSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

var otpPattern = regexp.MustCompile(`>(\d{6})<`)
var resetPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

type testEnv struct {
	store         *memory.Store
	hub           *WSHub
	mailer        *fakeMailer
	tokens        *TokenManager
	users         *UserService
	friends       *FriendService
	conversations *ConversationService
	router        *EventRouter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	hub := NewWSHub()
	mailer := &fakeMailer{}
	tokens := NewTokenManager("test-secret", time.Hour)
	authCfg := config.AuthConfig{
		OTPTTL:          10 * time.Minute,
		ResetTokenTTL:   10 * time.Minute,
		ClientOriginURL: "http://localhost:3000",
		BcryptCost:      bcrypt.MinCost,
	}

	env := &testEnv{
		store:  store,
		hub:    hub,
		mailer: mailer,
		tokens: tokens,
	}
	env.users = NewUserService(store.Users(), tokens, mailer, authCfg)
	env.friends = NewFriendService(store.Users(), store.FriendRequests(), hub)
	env.conversations = NewConversationService(store.Users(), store.Conversations(), store.Messages())
	env.router = NewEventRouter(hub, store.Users(), env.friends, env.conversations, false)
	return env
}

// addUser stores a verified user with the given id
func (e *testEnv) addUser(t *testing.T, id string) *models.User {
	t.Helper()
	now := time.Now()
	u := &models.User{
		ID:        id,
		FirstName: id,
		LastName:  "Test",
		Email:     id + "@example.com",
		Verified:  true,
		Status:    models.StatusOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// connect binds a fake session for userID through the router
func (e *testEnv) connect(t *testing.T, userID string) *fakeSession {
	t.Helper()
	sess := newFakeSession(userID, userID+"-handle")
	require.NoError(t, e.router.Connect(context.Background(), sess))
	return sess
}

func otpFrom(t *testing.T, html string) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(html)
	require.Len(t, m, 2, "no otp in mail body")
	return m[1]
}

var errMailDown = errors.New("smtp unavailable")
