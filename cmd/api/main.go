package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/zhouzirui/z-tavern/parlor/internal/config"
	"github.com/zhouzirui/z-tavern/parlor/internal/handler"
	"github.com/zhouzirui/z-tavern/parlor/internal/logging"
	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/ai"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New(config.LogConfig{Level: "info"})
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("no .env file loaded, continuing with system environment variables only")
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	if _, ok := personaStore.FindByID(cfg.Chat.DefaultPersona); !ok {
		logger.Fatal().Str("persona", cfg.Chat.DefaultPersona).Msg("default persona not found")
	}
	prompts := ai.NewPersonaPromptManager()

	completer := newCompleter(ctx, cfg.AI, logger)

	chatService := chat.NewService(personaStore, prompts, completer, chat.Config{
		CompletionTimeout: cfg.Chat.CompletionTimeout,
		SessionTTL:        cfg.Chat.SessionTTL,
		DefaultPersona:    cfg.Chat.DefaultPersona,
	}, logger)
	cleanup := chat.NewCleanupService(chatService, cfg.Chat.CleanupInterval, logger)

	router := handler.NewRouter(handler.Deps{
		Personas:    personaStore,
		Chat:        chatService,
		StreamDelay: cfg.Chat.StreamDelay,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		logger.Info().Str("addr", srv.Addr).Msg("parlor listening")
		if err := runServer(ctx, srv); err != nil {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	})
	wg.Go(func() {
		cleanup.Run(ctx)
	})
	wg.Wait()

	logger.Info().Msg("shutdown complete")
}

// newCompleter returns nil when no model is configured so the chat routes
// report the completion service as unavailable.
func newCompleter(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) chat.Completer {
	if !cfg.Enabled() {
		logger.Warn().Msg("Ark credentials not configured, running without completions")
		return nil
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize chat model, running without completions")
		return nil
	}

	completer, err := ai.NewCompleter(ctx, chatModel, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize completer, running without completions")
		return nil
	}
	logger.Info().Str("model", cfg.Model).Bool("stream", cfg.Stream).Msg("completion service initialized")

	if cfg.Stream {
		return ai.StreamingCompleter{Completer: completer}
	}
	return completer
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
