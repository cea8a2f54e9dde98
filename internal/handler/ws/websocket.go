package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	chatService "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket聊天处理器
type Handler struct {
	chatSvc  *chatService.Service
	delay    time.Duration
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, delay time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		delay:   delay,
		logger:  logger.With().Str("component", "handler.ws").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// InboundMessage 客户端发来的消息
type InboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	PersonaID string `json:"personaId,omitempty"`
}

// OutgoingMessage 服务端推送的消息
type OutgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session", sessionID).Logger()
	logger.Info().Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.sendSession(ctx, conn, sessionID, "connected")

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, sessionID, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg InboundMessage) {
	switch msg.Type {
	case "message":
		h.handleUserText(ctx, conn, sessionID, msg.Content)
	case "reset":
		if err := h.chatSvc.ResetSession(ctx, sessionID); err != nil {
			h.sendError(conn, sessionID, err.Error())
			return
		}
		h.sendSession(ctx, conn, sessionID, "reset")
	case "persona":
		if _, err := h.chatSvc.SwitchPersona(ctx, sessionID, msg.PersonaID); err != nil {
			h.sendError(conn, sessionID, err.Error())
			return
		}
		h.sendSession(ctx, conn, sessionID, "persona")
	case "history":
		h.sendSession(ctx, conn, sessionID, "history")
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
	}
}

// handleUserText 提交用户文本，并以分块方式推送助手回复
func (h *Handler) handleUserText(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	if !h.chatSvc.CompletionAvailable() {
		h.sendError(conn, sessionID, "ai completion unavailable")
		return
	}

	h.send(conn, sessionID, "start", nil)

	turn, err := h.chatSvc.Submit(ctx, sessionID, text)
	if err != nil {
		if errors.Is(err, chatService.ErrCompletionFailed) {
			if manager, mErr := h.chatSvc.Manager(ctx, sessionID); mErr == nil {
				manager.Acknowledge()
			}
		}
		h.sendError(conn, sessionID, err.Error())
		return
	}

	err = chatService.Pace(ctx, chatService.Stream(turn.Content), h.delay, func(chunk string) error {
		return h.write(conn, OutgoingMessage{
			Type:      "delta",
			SessionID: sessionID,
			Data:      map[string]string{"content": chunk},
			Timestamp: time.Now().Unix(),
		})
	})
	if err != nil {
		h.logger.Debug().Err(err).Str("session", sessionID).Msg("delta stream interrupted")
		return
	}

	h.send(conn, sessionID, "message", turn)
}

func (h *Handler) sendSession(ctx context.Context, conn *websocket.Conn, sessionID, msgType string) {
	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}
	manager, err := h.chatSvc.Manager(ctx, sessionID)
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}
	h.send(conn, sessionID, msgType, map[string]any{
		"personaId": session.PersonaID,
		"state":     manager.State().String(),
		"turns":     manager.Turns(),
		"stats":     manager.Stats(),
	})
}

func (h *Handler) send(conn *websocket.Conn, sessionID, msgType string, data any) {
	msg := OutgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := h.write(conn, msg); err != nil {
		h.logger.Warn().Err(err).Str("type", msgType).Msg("write failed")
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message})
}

func (h *Handler) write(conn *websocket.Conn, msg OutgoingMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
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
