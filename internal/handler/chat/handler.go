package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
	chatService "github.com/zhouzirui/heartwise/backend/internal/service/chat"
	"github.com/zhouzirui/heartwise/backend/pkg/utils"
)

// Engine is the session engine surface the HTTP layer needs.
type Engine interface {
	CreateSession(ctx context.Context) (chat.Transcript, error)
	GetSession(ctx context.Context, sessionID string) (chat.Transcript, error)
	PostMessage(ctx context.Context, sessionID, text string) (chatService.PostResult, error)
	Stats(ctx context.Context, sessionID string) (chat.Stats, error)
}

// Handler serves the chat session REST endpoints.
type Handler struct {
	engine Engine
	logger zerolog.Logger
}

// New creates the chat handler.
func New(engine Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/message", h.handlePostMessage)
	r.Get("/session/{sessionID}/stats", h.handleStats)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.engine.CreateSession(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, transcript)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.engine.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcript)
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var payload postMessageRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.PostMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Text)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, stats)
}

// respondServiceError maps engine errors onto HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch status := StatusFor(err); status {
	case http.StatusNotFound:
		utils.RespondError(w, status, "session not found")
	case http.StatusBadRequest:
		utils.RespondError(w, status, err.Error())
	default:
		h.logger.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("chat request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

// StatusFor maps an engine error to the HTTP status the API reports for it.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
