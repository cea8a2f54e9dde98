package chat_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
	chat "github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

func TestLogAppendAssignsGapFreeIndexes(t *testing.T) {
	log := chat.NewLog()
	roles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleUser, model.RoleAssistant}

	for i, role := range roles {
		turn, err := log.Append(role, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, turn.SequenceIndex)
		assert.NotEmpty(t, turn.ID)
		assert.False(t, turn.CreatedAt.IsZero())
	}

	turns := log.AllTurns()
	require.Len(t, turns, len(roles))
	for i, turn := range turns {
		assert.Equal(t, i, turn.SequenceIndex)
		assert.Equal(t, roles[i], turn.Role)
		assert.Equal(t, fmt.Sprintf("message %d", i), turn.Content)
	}
}

func TestLogAppendRejectsInvalidTurns(t *testing.T) {
	log := chat.NewLog()
	_, err := log.Append(model.RoleUser, "hello")
	require.NoError(t, err)
	before := log.AllTurns()

	cases := []struct {
		name    string
		role    model.Role
		content string
	}{
		{"empty role", "", "x"},
		{"unknown role", "narrator", "x"},
		{"empty content", model.RoleUser, ""},
		{"blank content", model.RoleAssistant, " \n\t "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := log.Append(tc.role, tc.content)
			require.Error(t, err)

			var invalid *chat.InvalidTurnError
			assert.True(t, errors.As(err, &invalid))
			assert.ErrorIs(t, err, chat.ErrInvalidTurn)
			assert.Equal(t, before, log.AllTurns())
		})
	}

	next, err := log.Append(model.RoleAssistant, "still counting")
	require.NoError(t, err)
	assert.Equal(t, 1, next.SequenceIndex)
}

func TestLogAllTurnsReturnsSnapshot(t *testing.T) {
	log := chat.NewLog()
	_, err := log.Append(model.RoleUser, "original")
	require.NoError(t, err)

	snapshot := log.AllTurns()
	snapshot[0].Content = "mutated"
	snapshot = append(snapshot, model.Turn{Role: model.RoleUser, Content: "extra"})

	turns := log.AllTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, "original", turns[0].Content)
}

func TestLogCountByRole(t *testing.T) {
	log := chat.NewLog()
	for _, role := range []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleSystem, model.RoleUser} {
		_, err := log.Append(role, "content")
		require.NoError(t, err)
	}

	assert.Equal(t, 3, log.CountByRole(model.RoleUser))
	assert.Equal(t, 1, log.CountByRole(model.RoleAssistant))
	assert.Equal(t, 1, log.CountByRole(model.RoleSystem))
	assert.Equal(t, model.Stats{Total: 5, User: 3, Assistant: 1}, log.Stats())
}

func TestLogReset(t *testing.T) {
	log := chat.NewLog()
	for i := 0; i < 3; i++ {
		_, err := log.Append(model.RoleUser, "hi")
		require.NoError(t, err)
	}

	require.NoError(t, log.Reset(nil))
	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.AllTurns())

	turn, err := log.Append(model.RoleUser, "after reset")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.SequenceIndex)

	seed := model.Turn{Role: model.RoleAssistant, Content: "Welcome!", SequenceIndex: 42}
	require.NoError(t, log.Reset(&seed))
	turns := log.AllTurns()
	require.Len(t, turns, 1)
	assert.Equal(t, 0, turns[0].SequenceIndex)
	assert.Equal(t, model.RoleAssistant, turns[0].Role)
	assert.Equal(t, "Welcome!", turns[0].Content)
}

func TestLogResetRejectsInvalidSeed(t *testing.T) {
	log := chat.NewLog()
	_, err := log.Append(model.RoleUser, "keep me")
	require.NoError(t, err)

	err = log.Reset(&model.Turn{Role: model.RoleAssistant, Content: "  "})
	assert.ErrorIs(t, err, chat.ErrInvalidTurn)
	assert.Equal(t, 1, log.Len())
}

func TestLogPersonaDoesNotTouchTurns(t *testing.T) {
	log := chat.NewLog()
	_, err := log.Append(model.RoleUser, "Ahoy?")
	require.NoError(t, err)
	before := log.AllTurns()

	log.SetPersona("You are a pirate.")
	assert.Equal(t, "You are a pirate.", log.Persona())
	assert.Equal(t, before, log.AllTurns())
	assert.Equal(t, "You are a pirate.\n\nUser: Ahoy?\n\nAssistant:", log.Render())
}
