package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateIdle State = iota
	StateAwaitingCompletion
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCompletion:
		return "awaiting completion"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Completer is the external completion service: one flattened prompt in, one
// response out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var errCompleterUnavailable = errors.New("completion service unavailable")

// Option configures a Manager.
type Option func(*Manager)

// WithCompletionTimeout bounds every completion call. Zero disables the bound.
func WithCompletionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithDefaultPersona sets the instruction used while the log has none.
func WithDefaultPersona(instruction string) Option {
	return func(m *Manager) {
		m.defaultPersona = instruction
	}
}

// WithWelcome seeds the log with an assistant welcome turn.
func WithWelcome(content string) Option {
	return func(m *Manager) {
		m.welcome = content
	}
}

// Manager drives one conversation: Idle -> AwaitingCompletion -> Idle on
// success, or -> Failed -> Idle (via Acknowledge) on a completion error.
// Completion failures are never retried and never roll back the user turn.
type Manager struct {
	mu             sync.Mutex
	log            *Log
	completer      Completer
	state          State
	timeout        time.Duration
	defaultPersona string
	welcome        string
	lastPrompt     string
}

// NewManager creates a manager in the Idle state.
func NewManager(completer Completer, opts ...Option) *Manager {
	m := &Manager{
		log:       NewLog(),
		completer: completer,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if strings.TrimSpace(m.welcome) != "" {
		seed := m.welcomeTurn()
		_ = m.log.Reset(&seed)
	}
	return m
}

// Submit records text as a user turn, asks the completer for a reply with the
// whole conversation as context and records the reply as an assistant turn.
func (m *Manager) Submit(ctx context.Context, text string) (model.Turn, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return model.Turn{}, &InvalidStateError{Op: "submit", State: state}
	}
	if _, err := m.log.Append(model.RoleUser, text); err != nil {
		m.mu.Unlock()
		return model.Turn{}, err
	}
	prompt := Render(m.log.turns, m.personaLocked())
	m.lastPrompt = prompt
	m.state = StateAwaitingCompletion
	m.mu.Unlock()

	response, err := m.complete(ctx, prompt)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = StateFailed
		return model.Turn{}, &CompletionServiceError{Reason: err.Error(), Err: err}
	}

	turn, err := m.log.Append(model.RoleAssistant, response)
	if err != nil {
		m.state = StateFailed
		return model.Turn{}, &CompletionServiceError{Reason: "empty response", Err: err}
	}
	m.state = StateIdle
	return turn, nil
}

func (m *Manager) complete(ctx context.Context, prompt string) (string, error) {
	if m.completer == nil {
		return "", errCompleterUnavailable
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.completer.Complete(ctx, prompt)
}

// Acknowledge returns a Failed manager to Idle. It is a no-op otherwise.
func (m *Manager) Acknowledge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailed {
		m.state = StateIdle
	}
}

// Reset clears the conversation, optionally leaving seed as the only turn.
func (m *Manager) Reset(seed *model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return &InvalidStateError{Op: "reset", State: m.state}
	}
	m.lastPrompt = ""
	return m.log.Reset(seed)
}

// ResetToWelcome resets to the configured welcome turn, or to an empty log
// when the manager has none.
func (m *Manager) ResetToWelcome() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return &InvalidStateError{Op: "reset", State: m.state}
	}
	m.lastPrompt = ""
	if strings.TrimSpace(m.welcome) == "" {
		return m.log.Reset(nil)
	}
	seed := m.welcomeTurn()
	return m.log.Reset(&seed)
}

// SwitchPersona changes the instruction used for future prompts only.
func (m *Manager) SwitchPersona(instruction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.SetPersona(instruction)
}

// SetWelcome replaces the welcome turn used by ResetToWelcome.
func (m *Manager) SetWelcome(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome = content
}

// Persona returns the instruction currently used for prompts.
func (m *Manager) Persona() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.personaLocked()
}

func (m *Manager) personaLocked() string {
	if p := m.log.Persona(); p != "" {
		return p
	}
	return m.defaultPersona
}

// Turns returns a snapshot of the conversation.
func (m *Manager) Turns() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.AllTurns()
}

// CountByRole counts turns produced by role.
func (m *Manager) CountByRole(role model.Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.CountByRole(role)
}

// Stats summarizes the conversation for display counters.
func (m *Manager) Stats() model.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Stats()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastPrompt returns the prompt sent with the most recent submission.
func (m *Manager) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

func (m *Manager) welcomeTurn() model.Turn {
	return model.Turn{Role: model.RoleAssistant, Content: m.welcome}
}
