package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-tavern/parlor/internal/config"
)

func TestNewWithWriterHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LogConfig{Level: "warn"}, &buf)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("component", "test").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriterDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LogConfig{Level: "loud"}, &buf)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestNewWithWriterPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LogConfig{Level: "info", Pretty: true}, &buf)
	logger.Info().Msg("hello console")
	assert.Contains(t, buf.String(), "hello console")
	assert.False(t, json.Valid(buf.Bytes()))
}
