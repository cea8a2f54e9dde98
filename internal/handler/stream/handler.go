package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
	chatService "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
	"github.com/zhouzirui/z-tavern/parlor/pkg/utils"
)

// Handler manages streaming chat replies via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
	delay   time.Duration
	logger  zerolog.Logger
}

// New creates a new stream handler. delay paces the chunks sent to the client.
func New(chatSvc *chatService.Service, delay time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		delay:   delay,
		logger:  logger.With().Str("component", "handler.stream").Logger(),
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string       `json:"event"`
	Content   string       `json:"content,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Turn      *model.Turn  `json:"turn,omitempty"`
	Stats     *model.Stats `json:"stats,omitempty"`
	Finished  bool         `json:"finished,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// RegisterRoutes 注册流式回复路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if !h.chatSvc.CompletionAvailable() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		h.logger.Warn().Err(err).Str("session", sessionID).Msg("stream request failed")
	}
}

// HandleStreamRequest submits the user message and replays the assistant turn
// as paced SSE deltas.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		return err
	}

	p, err := h.chatSvc.Persona(ctx, sessionID)
	if err != nil {
		h.sendError(sse, sessionID, fmt.Sprintf("failed to get session persona: %v", err))
		return err
	}

	h.send(sse, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   p.Name,
	})

	turn, err := h.chatSvc.Submit(ctx, sessionID, userMessage)
	if err != nil {
		if errors.Is(err, chatService.ErrCompletionFailed) {
			h.acknowledge(ctx, sessionID)
		}
		h.sendError(sse, sessionID, err.Error())
		return err
	}

	err = chatService.Pace(ctx, chatService.Stream(turn.Content), h.delay, func(chunk string) error {
		return sse.Send(StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   chunk,
		})
	})
	if err != nil {
		// The turn is already recorded; the client can reload the transcript.
		return fmt.Errorf("stream interrupted: %w", err)
	}

	h.send(sse, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   turn.Content,
		Turn:      &turn,
	})

	if manager, err := h.chatSvc.Manager(ctx, sessionID); err == nil {
		stats := manager.Stats()
		h.send(sse, StreamResponse{
			Event:     "stats",
			SessionID: sessionID,
			Stats:     &stats,
		})
	}

	h.send(sse, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	h.logger.Info().Str("session", sessionID).Str("persona", p.ID).Msg("stream completed")
	return nil
}

func (h *Handler) acknowledge(ctx context.Context, sessionID string) {
	if manager, err := h.chatSvc.Manager(ctx, sessionID); err == nil {
		manager.Acknowledge()
	}
}

func (h *Handler) send(sse *utils.SSEWriter, response StreamResponse) {
	if err := sse.Send(response); err != nil {
		h.logger.Warn().Err(err).Str("event", response.Event).Msg("failed to send sse event")
	}
}

func (h *Handler) sendError(sse *utils.SSEWriter, sessionID, message string) {
	h.send(sse, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     message,
	})
}
