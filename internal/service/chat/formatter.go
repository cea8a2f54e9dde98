package chat

import (
	"strings"

	model "github.com/zhouzirui/z-tavern/parlor/internal/model/chat"
)

const (
	blockSeparator = "\n\n"
	assistantCue   = "Assistant:"
)

// Render flattens a transcript into the single prompt string sent to a
// stateless completion service. The whole history is included so follow-up
// questions can be resolved; system turns are left out.
//
//	<persona>
//
//	User: ...
//
//	Assistant: ...
//
//	Assistant:
func Render(turns []model.Turn, personaInstruction string) string {
	blocks := make([]string, 0, len(turns)+2)
	if personaInstruction != "" {
		blocks = append(blocks, personaInstruction)
	}
	for _, turn := range turns {
		switch turn.Role {
		case model.RoleUser, model.RoleAssistant:
			blocks = append(blocks, turn.Role.Label()+": "+turn.Content)
		}
	}
	blocks = append(blocks, assistantCue)
	return strings.Join(blocks, blockSeparator)
}
