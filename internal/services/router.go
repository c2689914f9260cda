package services

import (
	"context"
	"encoding/json"
	"errors"

	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chatterbox-backend/realtime"

// EventRouter handles the events of realtime sessions. Each session calls
// Handle from its own read loop, so events of one session are processed in
// order while sessions run in parallel.
type EventRouter struct {
	hub                 *WSHub
	userRepo            repository.UserRepository
	friendService       *FriendService
	conversationService *ConversationService
	offlineOnDisconnect bool
	tracer              trace.Tracer
}

// NewEventRouter creates a new event router
func NewEventRouter(
	hub *WSHub,
	userRepo repository.UserRepository,
	friendService *FriendService,
	conversationService *ConversationService,
	offlineOnDisconnect bool,
) *EventRouter {
	return &EventRouter{
		hub:                 hub,
		userRepo:            userRepo,
		friendService:       friendService,
		conversationService: conversationService,
		offlineOnDisconnect: offlineOnDisconnect,
		tracer:              otel.Tracer(tracerName),
	}
}

// LookupUser resolves the user of a connection handshake
func (r *EventRouter) LookupUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.Errorf(models.ErrValidation, "user_id is required")
	}
	return r.userRepo.GetByID(ctx, userID)
}

// Connect records sess as its user's live session, persists the Online status
// and announces it to the other sessions
func (r *EventRouter) Connect(ctx context.Context, sess Session) error {
	ctx, span := r.tracer.Start(ctx, "EventRouter.Connect", trace.WithAttributes(
		attribute.String("user_id", sess.UserID()),
		attribute.String("handle", sess.ID()),
	))
	defer span.End()

	handle := sess.ID()
	if err := r.userRepo.UpdatePresence(ctx, sess.UserID(), &handle, models.StatusOnline); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presence update failed")
		return err
	}

	r.hub.Bind(sess)
	return nil
}

// Disconnect clears the deliverability of a session that went away without
// an end event
func (r *EventRouter) Disconnect(ctx context.Context, sess Session) {
	if !r.hub.Unbind(sess.UserID(), sess.ID()) {
		return
	}
	if !r.offlineOnDisconnect {
		return
	}
	if err := r.userRepo.UpdatePresence(ctx, sess.UserID(), nil, models.StatusOffline); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to mark user offline")
	}
}

// Handle processes one inbound frame of sess. It reports whether the session
// must be closed.
func (r *EventRouter) Handle(ctx context.Context, sess Session, raw []byte) (done bool) {
	logger := log.With().Str("user_id", sess.UserID()).Str("handle", sess.ID()).Logger()

	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn().Err(err).Msg("Failed to parse WebSocket message")
		sess.Send(WSMessage{
			Event: EventError,
			Error: newWSError("", models.Errorf(models.ErrValidation, "Invalid message format")),
		})
		return false
	}

	// client-supplied names stay out of the span name
	eventAttr := "unknown"
	if knownEvent(frame.Event) {
		eventAttr = string(frame.Event)
	}
	ctx, span := r.tracer.Start(ctx, "EventRouter.Handle", trace.WithAttributes(
		attribute.String("ws.event", eventAttr),
		attribute.String("user_id", sess.UserID()),
		attribute.String("handle", sess.ID()),
	))
	defer span.End()

	data, done, err := r.dispatch(ctx, sess, frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, models.Code(err))

		level := zerolog.WarnLevel
		if !isClientError(err) {
			level = zerolog.ErrorLevel
		}
		logger.WithLevel(level).Err(err).Str("event", string(frame.Event)).Msg("Failed to handle event")

		if isCallback(frame.Event) && frame.AckID != "" {
			sess.Send(WSMessage{Event: EventAck, AckID: frame.AckID, Error: newWSError(frame.Event, err)})
		} else {
			sess.Send(WSMessage{Event: EventError, Error: newWSError(frame.Event, err)})
		}
		return done
	}

	if isCallback(frame.Event) {
		sess.Send(WSMessage{Event: EventAck, AckID: frame.AckID, Data: data})
	}
	return done
}

func (r *EventRouter) dispatch(ctx context.Context, sess Session, frame InboundFrame) (any, bool, error) {
	ev, err := DecodeEvent(frame)
	if err != nil {
		return nil, false, err
	}

	switch e := ev.(type) {
	case *FriendRequestEvent:
		_, err := r.friendService.SendRequest(ctx, e.From, e.To)
		return nil, false, err

	case *AcceptRequestEvent:
		_, err := r.friendService.AcceptRequest(ctx, e.RequestID)
		return nil, false, err

	case *GetDirectConversationsEvent:
		convs, err := r.conversationService.FindConversations(ctx, e.UserID)
		return convs, false, err

	case *StartConversationEvent:
		conv, err := r.conversationService.GetOrCreate(ctx, e.From, e.To)
		if err != nil {
			return nil, false, err
		}
		sess.Send(WSMessage{Event: EventStartChat, Data: conv})
		return nil, false, nil

	case *GetMessagesEvent:
		msgs, err := r.conversationService.GetMessages(ctx, e.ConversationID)
		return msgs, false, err

	case *TextMessageEvent:
		return nil, false, r.textMessage(ctx, e)

	case *FileMessageEvent:
		return nil, false, models.Errorf(models.ErrUnimplemented, "file messages are not supported")

	case *EndEvent:
		return nil, true, r.end(ctx, sess, e)
	}

	return nil, false, models.Errorf(models.ErrValidation, "unknown event %q", frame.Event)
}

func (r *EventRouter) textMessage(ctx context.Context, e *TextMessageEvent) error {
	msg := &models.Message{
		ConversationID: e.ConversationID,
		SenderID:       e.From,
		RecipientID:    e.To,
		Type:           e.Type,
		Text:           e.Message,
	}
	if err := r.conversationService.AppendMessage(ctx, msg); err != nil {
		return err
	}

	out := WSMessage{
		Event: EventNewMessage,
		Data:  map[string]any{"conversation_id": msg.ConversationID, "message": msg},
	}
	r.hub.SendToUser(msg.RecipientID, out)
	r.hub.SendToUser(msg.SenderID, out)
	return nil
}

func (r *EventRouter) end(ctx context.Context, sess Session, e *EndEvent) error {
	r.hub.Unbind(sess.UserID(), sess.ID())

	if e.UserID == "" {
		return nil
	}
	if err := r.userRepo.UpdatePresence(ctx, e.UserID, nil, models.StatusOffline); err != nil {
		return err
	}
	log.Info().Str("user_id", e.UserID).Msg("User went offline")
	return nil
}

func isClientError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrUnimplemented)
}
