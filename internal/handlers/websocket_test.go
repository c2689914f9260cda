package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"chatterbox-backend/internal/models"
	"chatterbox-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Event string            `json:"event"`
	AckID string            `json:"ack_id"`
	Data  json.RawMessage   `json:"data"`
	Error *services.WSError `json:"error"`
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws?user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// an ack proves the session is bound
	send(t, conn, services.EventGetDirectConversations, "ready", map[string]string{"user_id": userID})
	expect(t, conn, services.EventAck)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event services.EventKind, ackID string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(services.InboundFrame{Event: event, AckID: ackID, Data: payload}))
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// expect reads frames until one of the given event arrives
func expect(t *testing.T, conn *websocket.Conn, event string) received {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.Event == event {
			return msg
		}
	}
}

func TestWebSocket_HandshakeRejectsUnknownUser(t *testing.T) {
	srv := newTestServer(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	for _, url := range []string{base, base + "?user_id=ghost"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestWebSocket_IsOnlineBroadcast(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	srv.addUser(t, "bob")

	alice := srv.dial(t, "alice")
	srv.dial(t, "bob")

	msg := expect(t, alice, services.EventIsOnline)
	assert.JSONEq(t, `{"user_id":"bob"}`, string(msg.Data))
}

func TestWebSocket_FriendRequestToOfflineUser(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	srv.addUser(t, "bob")
	alice := srv.dial(t, "alice")

	send(t, alice, services.EventFriendRequest, "", map[string]string{"to": "bob", "from": "alice"})
	msg := read(t, alice)
	assert.Equal(t, services.EventRequestSent, msg.Event)

	// the request is persisted for bob to fetch later
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/user/get-friend-requests", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+srv.token(t, "bob"))
	resp := srv.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []models.FriendRequestView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "alice", body.Data[0].Sender.ID)
}

func TestWebSocket_ConversationFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	srv.addUser(t, "bob")
	alice := srv.dial(t, "alice")
	bob := srv.dial(t, "bob")

	send(t, alice, services.EventStartConversation, "", map[string]string{"to": "bob", "from": "alice"})
	first := expect(t, alice, services.EventStartChat)
	send(t, alice, services.EventStartConversation, "", map[string]string{"to": "bob", "from": "alice"})
	second := expect(t, alice, services.EventStartChat)

	var c1, c2 models.Conversation
	require.NoError(t, json.Unmarshal(first.Data, &c1))
	require.NoError(t, json.Unmarshal(second.Data, &c2))
	require.NotEmpty(t, c1.ID)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Len(t, c1.Participants, 2)

	send(t, alice, services.EventTextMessage, "", map[string]string{
		"to": "bob", "from": "alice", "message": "hi bob", "conversation_id": c1.ID, "type": "text",
	})
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := expect(t, conn, services.EventNewMessage)
		var data struct {
			ConversationID string         `json:"conversation_id"`
			Message        models.Message `json:"message"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, c1.ID, data.ConversationID)
		assert.Equal(t, "hi bob", data.Message.Text)
		assert.Equal(t, "alice", data.Message.SenderID)
	}

	send(t, bob, services.EventGetMessages, "m1", map[string]string{"conversation_id": c1.ID})
	ack := expect(t, bob, services.EventAck)
	assert.Equal(t, "m1", ack.AckID)
	var msgs []models.Message
	require.NoError(t, json.Unmarshal(ack.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].Seq)
}

func TestWebSocket_TextMessageUnknownConversation(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	srv.addUser(t, "bob")
	alice := srv.dial(t, "alice")

	send(t, alice, services.EventTextMessage, "", map[string]string{
		"to": "bob", "from": "alice", "message": "hi", "conversation_id": "missing",
	})
	msg := expect(t, alice, services.EventError)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "not_found", msg.Error.Code)

	convs, err := srv.conversations.FindConversations(t.Context(), "alice")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestWebSocket_EndClosesConnection(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	alice := srv.dial(t, "alice")

	send(t, alice, services.EventEnd, "", map[string]string{"user_id": "alice"})

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := alice.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	user, err := srv.store.Users().GetByID(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, user.Status)
	assert.False(t, srv.hub.IsOnline("alice"))
}

func TestWebSocket_ReconnectReplacesPreviousConnection(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser(t, "alice")
	first := srv.dial(t, "alice")
	second := srv.dial(t, "alice")

	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	send(t, second, services.EventGetDirectConversations, "still-here", map[string]string{"user_id": "alice"})
	ack := expect(t, second, services.EventAck)
	assert.Equal(t, "still-here", ack.AckID)
	assert.True(t, srv.hub.IsOnline("alice"))
}
