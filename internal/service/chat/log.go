package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
)

// Log is the authoritative, ordered turn history of one conversation.
// It is append-only apart from Reset.
type Log struct {
	turns   []model.Turn
	persona string
	now     func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{
		turns: make([]model.Turn, 0, 16),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append adds a turn with the next sequence index. A rejected turn leaves the
// log untouched.
func (l *Log) Append(role model.Role, content string) (model.Turn, error) {
	if err := validateTurn(role, content); err != nil {
		return model.Turn{}, err
	}

	turn := model.Turn{
		ID:            uuid.NewString(),
		Role:          role,
		Content:       content,
		SequenceIndex: len(l.turns),
		CreatedAt:     l.now(),
	}
	l.turns = append(l.turns, turn)
	return turn, nil
}

// AllTurns returns a copy of the turns in insertion order.
func (l *Log) AllTurns() []model.Turn {
	out := make([]model.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// CountByRole counts the turns produced by role.
func (l *Log) CountByRole(role model.Role) int {
	n := 0
	for _, turn := range l.turns {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// Len returns the number of turns.
func (l *Log) Len() int {
	return len(l.turns)
}

// Stats summarizes the log for display counters.
func (l *Log) Stats() model.Stats {
	return model.Stats{
		Total:     len(l.turns),
		User:      l.CountByRole(model.RoleUser),
		Assistant: l.CountByRole(model.RoleAssistant),
	}
}

// Reset discards every turn. When seed is non-nil it becomes the only turn,
// with sequence index 0.
func (l *Log) Reset(seed *model.Turn) error {
	if seed == nil {
		l.turns = l.turns[:0:0]
		return nil
	}
	if err := validateTurn(seed.Role, seed.Content); err != nil {
		return err
	}

	l.turns = make([]model.Turn, 0, 16)
	_, err := l.Append(seed.Role, seed.Content)
	return err
}

// Persona returns the persona instruction used for future context rendering.
func (l *Log) Persona() string {
	return l.persona
}

// SetPersona replaces the persona instruction. Existing turns are unaffected.
func (l *Log) SetPersona(instruction string) {
	l.persona = instruction
}

// Render flattens the log with its own persona instruction.
func (l *Log) Render() string {
	return Render(l.turns, l.persona)
}

func validateTurn(role model.Role, content string) error {
	if !role.Valid() {
		return &InvalidTurnError{Reason: fmt.Sprintf("unrecognized role %q", string(role))}
	}
	if strings.TrimSpace(content) == "" {
		return &InvalidTurnError{Reason: "content is empty"}
	}
	return nil
}
