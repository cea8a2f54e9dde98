package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/parlor/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/parlor/internal/handler/persona"
	"github.com/zhouzirui/z-tavern/parlor/internal/handler/stream"
	"github.com/zhouzirui/z-tavern/parlor/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-tavern/parlor/internal/middleware"
	personaModel "github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
	chatService "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
	"github.com/zhouzirui/z-tavern/parlor/pkg/utils"
)

// Deps collects the services the HTTP surface is built on.
type Deps struct {
	Personas    personaModel.Store
	Chat        *chatService.Service
	StreamDelay time.Duration
	Logger      zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(deps.Personas)
	chatHandler := chat.New(deps.Chat, deps.Logger)
	streamHandler := stream.New(deps.Chat, deps.StreamDelay, deps.Logger)
	wsHandler := ws.New(deps.Chat, deps.StreamDelay, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":     "ok",
				"completion": deps.Chat.CompletionAvailable(),
				"sessions":   deps.Chat.Stats(),
			})
		})

		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
