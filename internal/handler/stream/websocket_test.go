package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartwise/backend/internal/analysis/emotion"
	chatService "github.com/zhouzirui/heartwise/backend/internal/service/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
)

func setupServer(t *testing.T) (*httptest.Server, *chatService.Engine) {
	t.Helper()
	engine := chatService.NewEngine(chatService.NewStore(chatService.StoreConfig{}), chatService.EngineConfig{
		Generator: reply.NewGenerator(reply.FixedPicker{}),
	})

	r := chi.NewRouter()
	New(engine, zerolog.Nop(), 1024).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, engine
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/" + sessionID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg InboundMessage) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	var out OutboundMessage
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWebSocketConversation(t *testing.T) {
	srv, engine := setupServer(t)
	created, err := engine.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, created.SessionID)

	out := roundTrip(t, conn, InboundMessage{Type: "message", Text: "I feel so lonely"})
	sad, _ := reply.FixedReply(emotion.Sad)
	assert.Equal(t, "reply", out.Type)
	assert.Equal(t, created.SessionID, out.SessionID)
	assert.Equal(t, sad, out.Reply)
	assert.False(t, out.Flagged)

	out = roundTrip(t, conn, InboundMessage{Type: "message", Text: "I want to die"})
	assert.Equal(t, "reply", out.Type)
	assert.Equal(t, reply.CrisisScript, out.Reply)
	assert.True(t, out.Flagged)

	transcript, err := engine.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, transcript.Messages, 5)
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	srv, engine := setupServer(t)
	created, err := engine.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, created.SessionID)

	out := roundTrip(t, conn, InboundMessage{Type: "message", Text: "   "})
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, http.StatusBadRequest, out.Status)

	out = roundTrip(t, conn, InboundMessage{Type: "audio"})
	assert.Equal(t, "error", out.Type)
	assert.Contains(t, out.Error, "unsupported message type")

	// the connection stays usable after an error frame
	out = roundTrip(t, conn, InboundMessage{Type: "message", Text: "hello"})
	assert.Equal(t, "reply", out.Type)

	transcript, err := engine.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, transcript.Messages, 3)
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := setupServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/missing/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketClosesOnOversizedFrame(t *testing.T) {
	srv, engine := setupServer(t)
	created, err := engine.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, created.SessionID)
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: strings.Repeat("a", 4096)}))

	var out OutboundMessage
	err = conn.ReadJSON(&out)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "unexpected error: %v", err)

	transcript, err := engine.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, transcript.Messages, 1)
}
