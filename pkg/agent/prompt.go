package agent

import (
	"context"
	"strings"

	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/persona"
	"persona-rag-be/pkg/rag/search"
)

// PromptBuilder assembles the agent system prompt: persona definition,
// optional voice samples, and tool-use guidance.
type PromptBuilder struct {
	personas  *persona.Store
	stylePack *StylePackSource
	log       logger.ILogger
}

// StylePackSource gates style pack injection.
type StylePackSource struct {
	Builder *search.StylePackBuilder
	Enabled bool
}

func NewPromptBuilder(personas *persona.Store, stylePack *StylePackSource, log logger.ILogger) *PromptBuilder {
	return &PromptBuilder{
		personas:  personas,
		stylePack: stylePack,
		log:       log,
	}
}

// Build loads the persona prompt file and appends the style pack and
// tool guidance sections.
func (b *PromptBuilder) Build(ctx context.Context, persona string) (string, error) {
	base, err := b.personas.Load(persona)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(base)

	if b.stylePack != nil && b.stylePack.Enabled {
		pack, err := b.stylePack.Builder.Build(ctx, persona)
		if err != nil {
			// Voice samples are an enhancement; proceed without them.
			b.log.Warn("agent", "style pack unavailable", map[string]interface{}{
				"persona": persona,
				"error":   err.Error(),
			})
		} else if rendered := b.stylePack.Builder.Render(pack); rendered != "" {
			sb.WriteString("\n\n")
			sb.WriteString(rendered)
		}
	}

	sb.WriteString("\n\n## Working method\n")
	sb.WriteString("Search your corpus before answering substantive questions. ")
	sb.WriteString("Ground claims in retrieved material and answer in your own voice. ")
	sb.WriteString("When retrieval returns nothing relevant, say so plainly instead of inventing positions.")

	return sb.String(), nil
}
