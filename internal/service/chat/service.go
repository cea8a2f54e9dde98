package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
)

// InstructionBuilder turns a persona into the instruction placed at the top of
// every prompt.
type InstructionBuilder interface {
	BuildInstruction(p *persona.Persona) string
}

// Config tunes the session registry.
type Config struct {
	// CompletionTimeout bounds each completion call. Zero means no bound.
	CompletionTimeout time.Duration
	// SessionTTL expires sessions idle for longer. Zero disables expiry.
	SessionTTL time.Duration
	// DefaultPersona is used when a session is created without a persona.
	DefaultPersona string
}

type entry struct {
	session    model.Session
	manager    *Manager
	lastActive time.Time
}

// Service keeps one Manager per anonymous session.
type Service struct {
	mu        sync.RWMutex
	sessions  map[string]*entry
	personas  persona.Store
	prompts   InstructionBuilder
	completer Completer
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService bootstraps the in-memory session registry. completer may be nil,
// in which case every submission fails with a CompletionServiceError.
func NewService(personas persona.Store, prompts InstructionBuilder, completer Completer, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		sessions:  make(map[string]*entry),
		personas:  personas,
		prompts:   prompts,
		completer: completer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "chat").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CompletionAvailable reports whether a completion service is wired.
func (s *Service) CompletionAvailable() bool {
	return s.completer != nil
}

// CreateSession provisions a session bound to a persona. With welcome set the
// log starts with the persona's opening line.
func (s *Service) CreateSession(_ context.Context, personaID string, welcome bool) (model.Session, error) {
	if personaID == "" {
		personaID = s.cfg.DefaultPersona
	}
	p, ok := persona.Resolve(s.personas, personaID)
	if !ok {
		return model.Session{}, ErrPersonaNotFound
	}

	opts := []Option{WithCompletionTimeout(s.cfg.CompletionTimeout)}
	if welcome {
		opts = append(opts, WithWelcome(p.OpeningLine))
	}
	manager := NewManager(s.completer, opts...)
	manager.SwitchPersona(s.instruction(&p))

	now := s.now()
	session := model.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		Welcome:   welcome,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, manager: manager, lastActive: now}
	s.mu.Unlock()

	s.logger.Info().Str("session", session.ID).Str("persona", p.ID).Bool("welcome", welcome).Msg("session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Manager returns the conversation manager of a session and marks it active.
func (s *Service) Manager(_ context.Context, sessionID string) (*Manager, error) {
	e, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	return e.manager, nil
}

// Persona returns the persona a session is currently bound to.
func (s *Service) Persona(ctx context.Context, sessionID string) (persona.Persona, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return persona.Persona{}, err
	}
	p, ok := s.personas.FindByID(session.PersonaID)
	if !ok {
		return persona.Persona{}, ErrPersonaNotFound
	}
	return p, nil
}

// LoadTranscript returns the turns of a session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]model.Turn, error) {
	manager, err := s.Manager(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return manager.Turns(), nil
}

// Submit runs one user turn through the session's manager. A completion
// failure is reported to the caller and leaves the manager in StateFailed.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (model.Turn, error) {
	manager, err := s.Manager(ctx, sessionID)
	if err != nil {
		return model.Turn{}, err
	}

	start := s.now()
	turn, err := manager.Submit(ctx, text)
	if err != nil {
		var completionErr *CompletionServiceError
		if errors.As(err, &completionErr) {
			s.logger.Warn().Str("session", sessionID).Str("reason", completionErr.Reason).Msg("completion failed")
		}
		return model.Turn{}, err
	}

	s.logger.Info().
		Str("session", sessionID).
		Int("turn", turn.SequenceIndex).
		Int("length", len(turn.Content)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("assistant turn recorded")
	return turn, nil
}

// SwitchPersona rebinds a session to another persona. Existing turns are kept;
// only future prompts and welcome turns change.
func (s *Service) SwitchPersona(ctx context.Context, sessionID, personaID string) (model.Session, error) {
	if personaID == "" {
		return model.Session{}, ErrPersonaRequired
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return model.Session{}, ErrPersonaNotFound
	}

	e, err := s.touch(sessionID)
	if err != nil {
		return model.Session{}, err
	}

	e.manager.SwitchPersona(s.instruction(&p))

	s.mu.Lock()
	e.session.PersonaID = p.ID
	session := e.session
	s.mu.Unlock()

	if session.Welcome {
		e.manager.SetWelcome(p.OpeningLine)
	}

	s.logger.Info().Str("session", sessionID).Str("persona", p.ID).Msg("persona switched")
	return session, nil
}

// ResetSession clears a session's conversation, reseeding the welcome turn
// when the session was created with one.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	manager, err := s.Manager(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := manager.ResetToWelcome(); err != nil {
		return err
	}
	s.logger.Info().Str("session", sessionID).Msg("session reset")
	return nil
}

// CloseSession discards a session.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// CleanupExpired drops sessions idle for longer than SessionTTL and returns
// how many were removed. Sessions waiting on a completion are kept.
func (s *Service) CleanupExpired() int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if e.lastActive.After(cutoff) {
			continue
		}
		if e.manager.State() == StateAwaitingCompletion {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// Stats counts sessions by manager state.
func (s *Service) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{"total": len(s.sessions)}
	for _, e := range s.sessions {
		stats[e.manager.State().String()]++
	}
	return stats
}

func (s *Service) touch(sessionID string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastActive = s.now()
	return e, nil
}

func (s *Service) instruction(p *persona.Persona) string {
	if s.prompts == nil {
		return p.Instruction
	}
	return s.prompts.BuildInstruction(p)
}
