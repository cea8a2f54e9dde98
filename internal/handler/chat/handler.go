package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
	chatService "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
	"github.com/zhouzirui/z-tavern/parlor/pkg/utils"
)

const retryHint = "The assistant could not answer. Your message was kept, please try again."

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  zerolog.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.With().Str("component", "handler.chat").Logger(),
	}
}

// SessionView 是会话连同完整对话记录的展示结构
type SessionView struct {
	model.Session
	State string       `json:"state"`
	Turns []model.Turn `json:"turns"`
	Stats model.Stats  `json:"stats"`
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleCloseSession)
		sr.Post("/messages", h.handleSubmit)
		sr.Post("/reset", h.handleReset)
		sr.Put("/persona", h.handleSwitchPersona)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
		Welcome   *bool  `json:"welcome"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	welcome := true
	if payload.Welcome != nil {
		welcome = *payload.Welcome
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID, welcome)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	h.respondSession(r.Context(), w, http.StatusCreated, session.ID)
}

// handleGetSession 返回会话与对话记录
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.respondSession(r.Context(), w, http.StatusOK, chi.URLParam(r, "sessionID"))
}

// handleSubmit 提交一条用户消息并返回助手回复
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.chatSvc.CompletionAvailable() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai completion unavailable")
		return
	}

	turn, err := h.chatSvc.Submit(r.Context(), sessionID, payload.Content)
	if err != nil {
		if errors.Is(err, chatService.ErrCompletionFailed) {
			h.acknowledge(r.Context(), sessionID)
			utils.RespondJSON(w, http.StatusBadGateway, map[string]string{
				"error": err.Error(),
				"hint":  retryHint,
			})
			return
		}
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	manager, err := h.chatSvc.Manager(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"turn":  turn,
		"stats": manager.Stats(),
	})
}

// handleReset 清空会话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.ResetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	h.respondSession(r.Context(), w, http.StatusOK, sessionID)
}

// handleSwitchPersona 切换会话角色，只影响后续回复
func (h *Handler) handleSwitchPersona(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		PersonaID string `json:"personaId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.chatSvc.SwitchPersona(r.Context(), sessionID, payload.PersonaID); err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	h.respondSession(r.Context(), w, http.StatusOK, sessionID)
}

// handleCloseSession 删除会话
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondSession(ctx context.Context, w http.ResponseWriter, status int, sessionID string) {
	view, err := BuildSessionView(ctx, h.chatSvc, sessionID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, status, view)
}

func (h *Handler) acknowledge(ctx context.Context, sessionID string) {
	manager, err := h.chatSvc.Manager(ctx, sessionID)
	if err != nil {
		h.logger.Warn().Err(err).Str("session", sessionID).Msg("failed to acknowledge completion error")
		return
	}
	manager.Acknowledge()
}

// BuildSessionView 组装会话展示结构
func BuildSessionView(ctx context.Context, svc *chatService.Service, sessionID string) (SessionView, error) {
	session, err := svc.GetSession(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	manager, err := svc.Manager(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{
		Session: session,
		State:   manager.State().String(),
		Turns:   manager.Turns(),
		Stats:   manager.Stats(),
	}, nil
}

// StatusFor 将服务层错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrPersonaNotFound), errors.Is(err, chatService.ErrPersonaRequired):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrInvalidTurn):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chatService.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, chatService.ErrCompletionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
