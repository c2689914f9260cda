package models

import (
	"slices"
	"time"
)

// PresenceStatus is the persisted online state of a user
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "Online"
	StatusOffline PresenceStatus = "Offline"
)

// User represents a registered account. Credential fields are never serialized.
type User struct {
	ID                string         `json:"_id"`
	FirstName         string         `json:"firstName"`
	LastName          string         `json:"lastName"`
	Email             string         `json:"email"`
	Avatar            string         `json:"avatar,omitempty"`
	About             string         `json:"about,omitempty"`
	PasswordHash      string         `json:"-"`
	PasswordChangedAt *time.Time     `json:"-"`
	Verified          bool           `json:"verified"`
	OTPHash           string         `json:"-"`
	OTPExpiresAt      *time.Time     `json:"-"`
	ResetTokenHash    string         `json:"-"`
	ResetExpiresAt    *time.Time     `json:"-"`
	SocketID          *string        `json:"-"`
	Status            PresenceStatus `json:"status,omitempty"`
	Friends           []string       `json:"friends"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// IsFriend reports whether id is in the user's friend set
func (u *User) IsFriend(id string) bool {
	return slices.Contains(u.Friends, id)
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt was minted.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// UserProfile is the public projection of a user
type UserProfile struct {
	ID        string         `json:"_id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email,omitempty"`
	Status    PresenceStatus `json:"status,omitempty"`
}

// Profile projects the user to its public fields
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Status:    u.Status,
	}
}

// ProfileUpdate carries the fields a user may change on their own profile
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	About     *string `json:"about,omitempty"`
	Avatar    *string `json:"avatar,omitempty"`
}

// FriendRequest is a pending friendship proposal. Accepted requests are deleted.
type FriendRequest struct {
	ID          string    `json:"_id"`
	SenderID    string    `json:"sender"`
	RecipientID string    `json:"recipient"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FriendRequestView is a request addressed to a user with the sender projected
type FriendRequestView struct {
	ID          string      `json:"_id"`
	Sender      UserProfile `json:"sender"`
	RecipientID string      `json:"recipient"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// MessageType is the kind of payload a message carries
type MessageType string

const (
	MessageText MessageType = "text"
	MessageLink MessageType = "link"
	MessageFile MessageType = "file"
)

// Message is an immutable entry in a conversation's log
type Message struct {
	ID             string      `json:"_id"`
	ConversationID string      `json:"-"`
	Seq            int64       `json:"seq"`
	SenderID       string      `json:"from"`
	RecipientID    string      `json:"to"`
	Type           MessageType `json:"type"`
	Text           string      `json:"text"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Conversation is a one-to-one chat. UserAID < UserBID always holds.
type Conversation struct {
	ID           string        `json:"_id"`
	UserAID      string        `json:"-"`
	UserBID      string        `json:"-"`
	Participants []UserProfile `json:"participants"`
	Messages     []Message     `json:"messages,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// HasParticipants reports whether {a, b} is exactly the conversation's pair
func (c *Conversation) HasParticipants(a, b string) bool {
	x, y := NormalizePair(a, b)
	return c.UserAID == x && c.UserBID == y
}

// NormalizePair orders two user ids so the unordered pair has one key
func NormalizePair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
