package services

import (
	"encoding/json"
	"testing"

	"chatterbox-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   InboundFrame
		want    Event
		wantErr error
	}{
		{
			name:  "text message defaults",
			frame: InboundFrame{Event: EventTextMessage, Data: json.RawMessage(`{"to":"b","from":"a","message":"hi","conversation_id":"c"}`)},
			want:  &TextMessageEvent{To: "b", From: "a", Message: "hi", ConversationID: "c"},
		},
		{
			name:    "text message with file type",
			frame:   InboundFrame{Event: EventTextMessage, Data: json.RawMessage(`{"to":"b","from":"a","message":"x","conversation_id":"c","type":"file"}`)},
			wantErr: models.ErrUnimplemented,
		},
		{
			name:    "text message with unknown type",
			frame:   InboundFrame{Event: EventTextMessage, Data: json.RawMessage(`{"to":"b","from":"a","message":"x","conversation_id":"c","type":"gif"}`)},
			wantErr: models.ErrValidation,
		},
		{
			name:    "blank message",
			frame:   InboundFrame{Event: EventTextMessage, Data: json.RawMessage(`{"to":"b","from":"a","message":"  ","conversation_id":"c"}`)},
			wantErr: models.ErrValidation,
		},
		{
			name:  "end without user",
			frame: InboundFrame{Event: EventEnd},
			want:  &EndEvent{},
		},
		{
			name:    "payload of wrong shape",
			frame:   InboundFrame{Event: EventAcceptRequest, Data: json.RawMessage(`[1,2]`)},
			wantErr: models.ErrValidation,
		},
		{
			name:  "callback with ack id",
			frame: InboundFrame{Event: EventGetDirectConversations, AckID: "7", Data: json.RawMessage(`{"user_id":"a"}`)},
			want:  &GetDirectConversationsEvent{UserID: "a"},
		},
		{
			name:    "start conversation with self",
			frame:   InboundFrame{Event: EventStartConversation, Data: json.RawMessage(`{"to":"a","from":"a"}`)},
			wantErr: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(tt.frame)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
