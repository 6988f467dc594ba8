package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	chatHandler "github.com/zhouzirui/heartwise/backend/internal/handler/chat"
	"github.com/zhouzirui/heartwise/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second

	// DefaultMaxFrameBytes caps an inbound frame when New is given no limit.
	DefaultMaxFrameBytes = 32 * 1024
)

// Handler serves a conversation over a WebSocket, one turn per inbound
// message.
type Handler struct {
	engine        chatHandler.Engine
	logger        zerolog.Logger
	upgrader      websocket.Upgrader
	maxFrameBytes int64
}

// New creates the WebSocket chat handler. Inbound frames larger than
// maxFrameBytes close the connection.
func New(engine chatHandler.Engine, logger zerolog.Logger, maxFrameBytes int64) *Handler {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Handler{
		engine:        engine,
		logger:        logger,
		maxFrameBytes: maxFrameBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

// InboundMessage is a client frame.
type InboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutboundMessage is a server frame. Type is "reply" or "error".
type OutboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Flagged   bool   `json:"flagged"`
	Error     string `json:"error,omitempty"`
	Status    int    `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.engine.GetSession(r.Context(), sessionID); err != nil {
		status := chatHandler.StatusFor(err)
		if status == http.StatusNotFound {
			utils.RespondError(w, status, "session not found")
			return
		}
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("websocket session lookup failed")
		utils.RespondError(w, status, "internal error")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("session_id", sessionID).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(h.maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				h.logger.Warn().Str("session_id", sessionID).Int64("limit", h.maxFrameBytes).Msg("websocket frame too large")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !h.handleMessage(ctx, conn, sessionID, msg) {
			return
		}
	}
}

// handleMessage answers one frame. It reports false when the connection
// should be closed.
func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg InboundMessage) bool {
	if msg.Type != "message" {
		return h.send(conn, OutboundMessage{
			Type:   "error",
			Error:  "unsupported message type: " + msg.Type,
			Status: http.StatusBadRequest,
		})
	}

	result, err := h.engine.PostMessage(ctx, sessionID, msg.Text)
	if err != nil {
		status := chatHandler.StatusFor(err)
		text := err.Error()
		switch status {
		case http.StatusNotFound:
			text = "session not found"
		case http.StatusInternalServerError:
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("websocket turn failed")
			text = "internal error"
		}
		if !h.send(conn, OutboundMessage{Type: "error", Error: text, Status: status}) {
			return false
		}
		// the session is gone, nothing more can be said on this connection
		return status != http.StatusNotFound
	}

	return h.send(conn, OutboundMessage{
		Type:      "reply",
		SessionID: sessionID,
		Reply:     result.Reply,
		Flagged:   result.Flagged,
	})
}

func (h *Handler) send(conn *websocket.Conn, msg OutboundMessage) bool {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("websocket write failed")
		return false
	}
	return true
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
