package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
)

func seedPersona(t *testing.T, id string) persona.Persona {
	t.Helper()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(id)
	require.True(t, ok, id)
	return p
}

func TestBuildInstructionWithTemplate(t *testing.T) {
	pm := NewPersonaPromptManager()
	p := seedPersona(t, "pirate")

	got := pm.BuildInstruction(&p)
	assert.True(t, strings.HasPrefix(got, p.Instruction))
	assert.Contains(t, got, "Keep your tone "+p.Tone+".")
	assert.Contains(t, got, "Style hints:\n- ")
	assert.Contains(t, got, "Conversation rules:\n- Stay factually correct")
}

func TestBuildInstructionFallsBackWithoutTemplate(t *testing.T) {
	pm := NewPersonaPromptManager()
	p := seedPersona(t, persona.DefaultID)

	got := pm.BuildInstruction(&p)
	assert.Equal(t, p.Instruction+" Keep your tone "+p.Tone+".", got)
	assert.NotContains(t, got, "Style hints:")
}

func TestBuildInstructionDerivesFromProfile(t *testing.T) {
	pm := NewPersonaPromptManager()
	p := persona.Persona{ID: "librarian", Name: "Marian", Title: "Quiet Librarian"}

	assert.Equal(t, "You are Marian, quiet librarian.", pm.BuildInstruction(&p))
	assert.Empty(t, pm.BuildInstruction(nil))
}

func TestRegisterTemplate(t *testing.T) {
	pm := NewPersonaPromptManager()
	_, err := pm.GetPromptTemplate("librarian")
	require.Error(t, err)

	pm.Register("librarian", PromptTemplate{Rules: []string{"Whisper"}})
	p := persona.Persona{ID: "librarian", Instruction: "You are a librarian."}
	assert.Equal(t, "You are a librarian.\nConversation rules:\n- Whisper", pm.BuildInstruction(&p))
}
