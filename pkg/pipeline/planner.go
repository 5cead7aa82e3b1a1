package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/utils"
)

// Planner turns a user query into a structured search plan. A backend
// without native tool calling can still drive retrieval this way: the
// model emits JSON, the engine executes it.
type Planner struct {
	provider llm.CompletionProvider
	maxK     int
	log      logger.ILogger
}

func NewPlanner(provider llm.CompletionProvider, maxK int, log logger.ILogger) *Planner {
	if maxK <= 0 {
		maxK = 20
	}
	return &Planner{provider: provider, maxK: maxK, log: log}
}

type searchPlan struct {
	Searches []entity.SearchSpec `json:"searches"`
}

// Plan asks the model for searches. A malformed plan falls back to a
// deterministic default rather than failing the request.
func (p *Planner) Plan(ctx context.Context, persona, query string, history []entity.AgentTurn) []entity.SearchSpec {
	prompt := p.composePrompt(persona, query, history)

	response, err := p.provider.Generate(ctx, prompt, llm.WithTemperature(0.2))
	if err != nil {
		p.log.Warn("planner", "plan generation failed, using default plan", map[string]interface{}{
			"error": err.Error(),
		})
		return p.defaultPlan(query)
	}

	var plan searchPlan
	if err := llm.UnmarshalResponse(response, &plan); err != nil {
		p.log.Warn("planner", "plan unparseable, using default plan", map[string]interface{}{
			"error": err.Error(),
		})
		return p.defaultPlan(query)
	}

	specs := p.sanitize(plan.Searches)
	if len(specs) == 0 {
		return p.defaultPlan(query)
	}
	return specs
}

func (p *Planner) sanitize(specs []entity.SearchSpec) []entity.SearchSpec {
	out := make([]entity.SearchSpec, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Query) == "" {
			continue
		}
		if spec.K <= 0 {
			spec.K = 5
		}
		if spec.K > p.maxK {
			spec.K = p.maxK
		}
		switch spec.Purpose {
		case entity.PurposeContent, entity.PurposeStyle, entity.PurposeQuality,
			entity.PurposeDirect, entity.PurposeRelated:
		default:
			spec.Purpose = entity.PurposeContent
		}
		out = append(out, spec)
	}
	return out
}

// defaultPlan keeps the pipeline moving when planning fails: one direct
// search on the query itself plus a style sweep.
func (p *Planner) defaultPlan(query string) []entity.SearchSpec {
	return []entity.SearchSpec{
		{Query: query, Purpose: entity.PurposeDirect, K: 8, Reason: "direct lookup of the user's question"},
		{Query: query, Purpose: entity.PurposeStyle, K: 5, Reason: "voice samples for the answer"},
	}
}

func (p *Planner) composePrompt(persona, query string, history []entity.AgentTurn) string {
	var sb strings.Builder

	sb.WriteString("You plan corpus searches for an author emulation engine.\n")
	sb.WriteString(fmt.Sprintf("The persona being emulated is %q. The corpus contains only this persona's own writing.\n\n", persona))

	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		start := len(history) - 4
		if start < 0 {
			start = 0
		}
		for _, turn := range history[start:] {
			content := utils.TruncateRunes(turn.Content, 200)
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("User question:\n%s\n\n", query))

	sb.WriteString("Design 3-6 searches over the persona's corpus. Each search has a purpose:\n")
	sb.WriteString("- direct: material answering the question head-on\n")
	sb.WriteString("- content: supporting ideas and arguments\n")
	sb.WriteString("- related: adjacent themes worth drawing in\n")
	sb.WriteString("- style: passages showing how the persona writes about this\n")
	sb.WriteString("- quality: the persona's best writing for calibration\n\n")

	sb.WriteString("Respond with ONLY a JSON object:\n")
	sb.WriteString(`{"searches": [{"query": "...", "purpose": "direct", "k": 8, "reason": "..."}]}`)
	sb.WriteString(fmt.Sprintf("\n\nk must be between 1 and %d.", p.maxK))

	return sb.String()
}
