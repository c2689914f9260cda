package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatterbox-backend/internal/config"
	"chatterbox-backend/internal/middleware"
	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository/memory"
	"chatterbox-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*httptest.Server
	store         *memory.Store
	hub           *services.WSHub
	tokens        *services.TokenManager
	conversations *services.ConversationService
	mailer        *captureMailer
}

type captureMailer struct {
	last string
}

func (m *captureMailer) Send(_ context.Context, _, _, html string) error {
	m.last = html
	return nil
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		SendBuffer:     32,
		MaxMessageSize: 64 * 1024,
		WriteWait:      time.Second,
		PongWait:       10 * time.Second,
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	hub := services.NewWSHub()
	mailer := &captureMailer{}
	tokens := services.NewTokenManager("test-secret", time.Hour)

	userService := services.NewUserService(store.Users(), tokens, mailer, config.AuthConfig{
		OTPTTL:          10 * time.Minute,
		ResetTokenTTL:   10 * time.Minute,
		ClientOriginURL: "http://localhost:3000",
		BcryptCost:      bcrypt.MinCost,
	})
	friendService := services.NewFriendService(store.Users(), store.FriendRequests(), hub)
	conversationService := services.NewConversationService(store.Users(), store.Conversations(), store.Messages())
	eventRouter := services.NewEventRouter(hub, store.Users(), friendService, conversationService, false)

	authHandler := NewAuthHandler(userService)
	userHandler := NewUserHandler(userService, friendService)
	wsHandler := NewWebSocketHandler(eventRouter, testRealtimeConfig())

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/login", authHandler.Login)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
	})
	r.Route("/user", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(userService))
		r.Patch("/update-me", userHandler.UpdateMe)
		r.Get("/get-users", userHandler.GetUsers)
		r.Get("/get-friends", userHandler.GetFriends)
		r.Get("/get-friend-requests", userHandler.GetFriendRequests)
	})
	r.Get("/ws", wsHandler.HandleWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})

	return &testServer{
		Server:        srv,
		store:         store,
		hub:           hub,
		tokens:        tokens,
		conversations: conversationService,
		mailer:        mailer,
	}
}

func (s *testServer) addUser(t *testing.T, id string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.store.Users().Create(context.Background(), &models.User{
		ID:        id,
		FirstName: id,
		Email:     id + "@example.com",
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.tokens.GenerateJWT(userID)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
