package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	cases := map[string]struct {
		want Role
		ok   bool
	}{
		"user":        {RoleUser, true},
		" Assistant ": {RoleAssistant, true},
		"SYSTEM":      {RoleSystem, true},
		"":            {"", false},
		"bot":         {"", false},
	}

	for raw, tc := range cases {
		got, ok := ParseRole(raw)
		assert.Equal(t, tc.ok, ok, raw)
		assert.Equal(t, tc.want, got, raw)
	}
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", RoleUser.Label())
	assert.Equal(t, "Assistant", RoleAssistant.Label())
	assert.Empty(t, Role("narrator").Label())
	assert.False(t, Role("narrator").Valid())
}
