package services

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Session is a live realtime connection of one user
type Session interface {
	// ID is the connection handle, unique per connection
	ID() string
	UserID() string
	// Send queues msg for delivery and reports whether it was accepted
	Send(msg WSMessage) bool
	Close()
}

// Notifier delivers events to users by id. Delivery to a user without a live
// session is a silent drop.
type Notifier interface {
	SendToUser(userID string, msg WSMessage) bool
}

// WSHub is the presence registry: it maps each user to at most one live session
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		sessions: make(map[string]Session),
	}
}

// Bind makes sess the deliverable session of its user and announces it to
// every other live session. A previous session of the same user is closed.
func (h *WSHub) Bind(sess Session) {
	h.mu.Lock()
	prev, exists := h.sessions[sess.UserID()]
	h.sessions[sess.UserID()] = sess
	h.mu.Unlock()

	if exists && prev.ID() != sess.ID() {
		log.Info().
			Str("user_id", sess.UserID()).
			Str("handle", prev.ID()).
			Msg("Replacing previous WebSocket session")
		prev.Close()
	}

	log.Info().Str("user_id", sess.UserID()).Str("handle", sess.ID()).Msg("WebSocket session bound")

	h.BroadcastExcept(sess.UserID(), WSMessage{
		Event: EventIsOnline,
		Data:  map[string]string{"user_id": sess.UserID()},
	})
}

// Unbind removes the user's session if handleID is still the bound one.
// It reports whether a session was removed.
func (h *WSHub) Unbind(userID, handleID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, exists := h.sessions[userID]
	if !exists || sess.ID() != handleID {
		return false
	}
	delete(h.sessions, userID)
	log.Info().Str("user_id", userID).Str("handle", handleID).Msg("WebSocket session unbound")
	return true
}

// Resolve returns the live session of a user
func (h *WSHub) Resolve(userID string) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, exists := h.sessions[userID]
	return sess, exists
}

// IsOnline checks if a user has a live session
func (h *WSHub) IsOnline(userID string) bool {
	_, exists := h.Resolve(userID)
	return exists
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, msg WSMessage) bool {
	sess, exists := h.Resolve(userID)
	if !exists {
		log.Debug().Str("user_id", userID).Str("event", msg.Event).Msg("User offline, dropping event")
		return false
	}
	return sess.Send(msg)
}

// BroadcastExcept sends msg to every live session except the given user's
func (h *WSHub) BroadcastExcept(userID string, msg WSMessage) {
	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions))
	for id, sess := range h.sessions {
		if id != userID {
			targets = append(targets, sess)
		}
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		sess.Send(msg)
	}
}

// Count returns the number of live sessions
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes every live session
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	sessions := make([]Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]Session)
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	log.Info().Int("count", len(sessions)).Msg("Closed all WebSocket sessions")
}
