package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("pirate")
	require.True(t, ok)
	assert.Equal(t, "Captain Cortex", got.Name)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())

	list := store.List()
	list[0].Name = "mutated"

	again := store.List()
	assert.NotEqual(t, "mutated", again[0].Name)
	assert.Len(t, again, len(Seed()))
}

func TestSeedContainsDefault(t *testing.T) {
	store := NewMemoryStore(Seed())
	p, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.NotEmpty(t, p.Instruction)
	assert.NotEmpty(t, p.OpeningLine)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := Resolve(store, "")
	require.True(t, ok)
	assert.Equal(t, DefaultID, p.ID)

	p, ok = Resolve(store, "teacher")
	require.True(t, ok)
	assert.Equal(t, "teacher", p.ID)
}
