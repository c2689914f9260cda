package services

import (
	"encoding/json"
	"strings"

	"chatterbox-backend/internal/models"
)

// EventKind names an inbound realtime event
type EventKind string

const (
	EventFriendRequest          EventKind = "friend_request"
	EventAcceptRequest          EventKind = "accept_request"
	EventGetDirectConversations EventKind = "get_direct_conversations"
	EventStartConversation      EventKind = "start_conversation"
	EventGetMessages            EventKind = "get_messages"
	EventTextMessage            EventKind = "text_message"
	EventFileMessage            EventKind = "file_message"
	EventEnd                    EventKind = "end"
)

// Outbound event names
const (
	EventIsOnline         = "is_online"
	EventNewFriendRequest = "new_friend_request"
	EventRequestSent      = "request_sent"
	EventRequestAccepted  = "request_accepted"
	EventStartChat        = "start_chat"
	EventNewMessage       = "new_message"
	EventAck              = "ack"
	EventError            = "error"
)

// WSMessage is a frame sent to a client
type WSMessage struct {
	Event string   `json:"event"`
	AckID string   `json:"ack_id,omitempty"`
	Data  any      `json:"data,omitempty"`
	Error *WSError `json:"error,omitempty"`
}

// WSError is the structured error carried by ack and error frames
type WSError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Event   EventKind `json:"event,omitempty"`
}

func newWSError(kind EventKind, err error) *WSError {
	return &WSError{Code: models.Code(err), Message: models.PublicMessage(err), Event: kind}
}

// InboundFrame is a frame received from a client
type InboundFrame struct {
	Event EventKind       `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound event
type Event interface {
	Kind() EventKind
	Validate() error
}

// FriendRequestEvent asks to send a friend request from From to To
type FriendRequestEvent struct {
	To   string `json:"to"`
	From string `json:"from"`
}

func (FriendRequestEvent) Kind() EventKind { return EventFriendRequest }

func (e FriendRequestEvent) Validate() error {
	if e.To == "" || e.From == "" {
		return models.Errorf(models.ErrValidation, "to and from are required")
	}
	if e.To == e.From {
		return models.Errorf(models.ErrValidation, "cannot send a friend request to yourself")
	}
	return nil
}

// AcceptRequestEvent accepts a pending friend request
type AcceptRequestEvent struct {
	RequestID string `json:"request_id"`
}

func (AcceptRequestEvent) Kind() EventKind { return EventAcceptRequest }

func (e AcceptRequestEvent) Validate() error {
	if e.RequestID == "" {
		return models.Errorf(models.ErrValidation, "request_id is required")
	}
	return nil
}

// GetDirectConversationsEvent lists a user's conversations
type GetDirectConversationsEvent struct {
	UserID string `json:"user_id"`
}

func (GetDirectConversationsEvent) Kind() EventKind { return EventGetDirectConversations }

func (e GetDirectConversationsEvent) Validate() error {
	if e.UserID == "" {
		return models.Errorf(models.ErrValidation, "user_id is required")
	}
	return nil
}

// StartConversationEvent opens the conversation between To and From
type StartConversationEvent struct {
	To   string `json:"to"`
	From string `json:"from"`
}

func (StartConversationEvent) Kind() EventKind { return EventStartConversation }

func (e StartConversationEvent) Validate() error {
	if e.To == "" || e.From == "" {
		return models.Errorf(models.ErrValidation, "to and from are required")
	}
	if e.To == e.From {
		return models.Errorf(models.ErrValidation, "cannot start a conversation with yourself")
	}
	return nil
}

// GetMessagesEvent fetches the message log of a conversation
type GetMessagesEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (GetMessagesEvent) Kind() EventKind { return EventGetMessages }

func (e GetMessagesEvent) Validate() error {
	if e.ConversationID == "" {
		return models.Errorf(models.ErrValidation, "conversation_id is required")
	}
	return nil
}

// TextMessageEvent appends a text or link message to a conversation
type TextMessageEvent struct {
	To             string             `json:"to"`
	From           string             `json:"from"`
	Message        string             `json:"message"`
	ConversationID string             `json:"conversation_id"`
	Type           models.MessageType `json:"type"`
}

func (TextMessageEvent) Kind() EventKind { return EventTextMessage }

func (e TextMessageEvent) Validate() error {
	if e.To == "" || e.From == "" || e.ConversationID == "" {
		return models.Errorf(models.ErrValidation, "to, from and conversation_id are required")
	}
	if strings.TrimSpace(e.Message) == "" {
		return models.Errorf(models.ErrValidation, "message is required")
	}
	switch e.Type {
	case "", models.MessageText, models.MessageLink:
		return nil
	case models.MessageFile:
		return models.Errorf(models.ErrUnimplemented, "file messages are not supported")
	default:
		return models.Errorf(models.ErrValidation, "unknown message type %q", e.Type)
	}
}

// FileMessageEvent is accepted on the wire but not implemented
type FileMessageEvent struct {
	To   string          `json:"to"`
	From string          `json:"from"`
	File json.RawMessage `json:"file,omitempty"`
}

func (FileMessageEvent) Kind() EventKind { return EventFileMessage }

func (FileMessageEvent) Validate() error { return nil }

// EndEvent ends the session, optionally marking UserID offline
type EndEvent struct {
	UserID string `json:"user_id"`
}

func (EndEvent) Kind() EventKind { return EventEnd }

func (EndEvent) Validate() error { return nil }

// isCallback reports whether kind is answered with an ack instead of a broadcast
func isCallback(kind EventKind) bool {
	return kind == EventGetDirectConversations || kind == EventGetMessages
}

func knownEvent(kind EventKind) bool {
	switch kind {
	case EventFriendRequest, EventAcceptRequest, EventGetDirectConversations, EventStartConversation,
		EventGetMessages, EventTextMessage, EventFileMessage, EventEnd:
		return true
	}
	return false
}

// DecodeEvent decodes and validates the payload of frame
func DecodeEvent(frame InboundFrame) (Event, error) {
	var ev Event
	switch frame.Event {
	case EventFriendRequest:
		ev = &FriendRequestEvent{}
	case EventAcceptRequest:
		ev = &AcceptRequestEvent{}
	case EventGetDirectConversations:
		ev = &GetDirectConversationsEvent{}
	case EventStartConversation:
		ev = &StartConversationEvent{}
	case EventGetMessages:
		ev = &GetMessagesEvent{}
	case EventTextMessage:
		ev = &TextMessageEvent{}
	case EventFileMessage:
		ev = &FileMessageEvent{}
	case EventEnd:
		ev = &EndEvent{}
	default:
		return nil, models.Errorf(models.ErrValidation, "unknown event %q", frame.Event)
	}

	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		if err := json.Unmarshal(frame.Data, ev); err != nil {
			return nil, models.Errorf(models.ErrValidation, "invalid %s payload", frame.Event)
		}
	}
	if isCallback(frame.Event) && frame.AckID == "" {
		return nil, models.Errorf(models.ErrValidation, "%s requires an ack_id", frame.Event)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
