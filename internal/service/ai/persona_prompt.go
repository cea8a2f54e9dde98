package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
)

// PromptTemplate refines a persona's instruction with style hints and rules.
type PromptTemplate struct {
	Hints []string
	Rules []string
}

// PersonaPromptManager builds the persona instruction placed at the top of
// every prompt.
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a manager with the built-in templates.
func NewPersonaPromptManager() *PersonaPromptManager {
	pm := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	pm.loadDefaultTemplates()
	return pm
}

// Register adds or replaces the template of a persona.
func (pm *PersonaPromptManager) Register(personaID string, tmpl PromptTemplate) {
	pm.templates[personaID] = &tmpl
}

// GetPromptTemplate returns the template registered for a persona.
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	tmpl, ok := pm.templates[personaID]
	if !ok {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return tmpl, nil
}

// BuildInstruction returns the instruction text for p. Personas without a
// template get a basic instruction derived from their profile.
func (pm *PersonaPromptManager) BuildInstruction(p *persona.Persona) string {
	if p == nil {
		return ""
	}

	base := pm.basicInstruction(p)
	tmpl, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return base
	}

	var builder strings.Builder
	builder.WriteString(base)
	writeSection(&builder, "Style hints:", tmpl.Hints)
	writeSection(&builder, "Conversation rules:", tmpl.Rules)
	return builder.String()
}

func (pm *PersonaPromptManager) basicInstruction(p *persona.Persona) string {
	instruction := strings.TrimSpace(p.Instruction)
	if instruction == "" {
		instruction = fmt.Sprintf("You are %s, %s.", p.Name, strings.ToLower(p.Title))
	}
	if tone := strings.TrimSpace(p.Tone); tone != "" {
		instruction += fmt.Sprintf(" Keep your tone %s.", tone)
	}
	return instruction
}

func writeSection(builder *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	builder.WriteString("\n")
	builder.WriteString(title)
	for _, line := range lines {
		builder.WriteString("\n- ")
		builder.WriteString(line)
	}
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["pirate"] = &PromptTemplate{
		Hints: []string{
			"Use pirate expressions such as \"ahoy\" and \"matey\"",
			"Reach for sailing and treasure metaphors",
		},
		Rules: []string{
			"Stay factually correct underneath the accent",
			"Keep answers short enough to read aloud on deck",
		},
	}
	pm.templates["teacher"] = &PromptTemplate{
		Hints: []string{
			"Break explanations into numbered steps",
			"Use everyday examples before formal definitions",
		},
		Rules: []string{
			"End with one short question that checks understanding",
			"Refer back to what the learner said earlier in the conversation",
		},
	}
	pm.templates["chef"] = &PromptTemplate{
		Hints: []string{
			"Describe flavours and textures",
			"Offer a quick recipe when it fits the question",
		},
		Rules: []string{
			"Mention food safety when it matters",
		},
	}
}
