package pipeline

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
)

// Worldview categories drive broad corpus coverage before a critique.
var worldviewCategories = []string{
	"core_positions",
	"key_arguments",
	"critiques",
	"values",
	"methodology",
	"themes",
}

const minWorldviewQueries = 8

// WorldviewPlanner maps a document's topic onto the persona's belief
// structure: what must be retrieved so the critic reads the document
// the way the persona would.
type WorldviewPlanner struct {
	provider llm.CompletionProvider
	maxK     int
	log      logger.ILogger
}

func NewWorldviewPlanner(provider llm.CompletionProvider, maxK int, log logger.ILogger) *WorldviewPlanner {
	if maxK <= 0 {
		maxK = 40
	}
	return &WorldviewPlanner{provider: provider, maxK: maxK, log: log}
}

type worldviewPlan struct {
	Searches []worldviewSearch `json:"searches"`
}

type worldviewSearch struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	K        int    `json:"k"`
}

// Plan returns category-tagged searches for the document's topic. The
// category travels in SearchSpec.Reason so downstream formatting can
// group by it.
func (w *WorldviewPlanner) Plan(ctx context.Context, persona, topicHint string) []entity.SearchSpec {
	prompt := w.composePrompt(persona, topicHint)

	response, err := w.provider.Generate(ctx, prompt, llm.WithTemperature(0.3))
	if err != nil {
		w.log.Warn("worldview", "plan generation failed, using default queries", map[string]interface{}{
			"error": err.Error(),
		})
		return w.defaultQueries(topicHint)
	}

	var plan worldviewPlan
	if err := llm.UnmarshalResponse(response, &plan); err != nil {
		w.log.Warn("worldview", "plan unparseable, using default queries", map[string]interface{}{
			"error": err.Error(),
		})
		return w.defaultQueries(topicHint)
	}

	specs := make([]entity.SearchSpec, 0, len(plan.Searches))
	for _, s := range plan.Searches {
		if strings.TrimSpace(s.Query) == "" {
			continue
		}
		k := s.K
		if k <= 0 {
			k = 5
		}
		if k > w.maxK {
			k = w.maxK
		}
		category := s.Category
		if !validCategory(category) {
			category = "themes"
		}
		specs = append(specs, entity.SearchSpec{
			Query:   s.Query,
			Purpose: entity.PurposeContent,
			K:       k,
			Reason:  category,
		})
	}

	// A thin plan misses worldview coverage; top it up with defaults.
	if len(specs) < minWorldviewQueries {
		for _, d := range w.defaultQueries(topicHint) {
			if len(specs) >= minWorldviewQueries {
				break
			}
			specs = append(specs, d)
		}
	}

	return specs
}

func validCategory(c string) bool {
	for _, cat := range worldviewCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// defaultQueries is the hand-authored sweep used when planning fails:
// broad enough to reconstruct a worldview for any topic.
func (w *WorldviewPlanner) defaultQueries(topicHint string) []entity.SearchSpec {
	topic := strings.TrimSpace(topicHint)
	if topic == "" {
		topic = "the subject at hand"
	}
	queries := []struct {
		q   string
		cat string
	}{
		{fmt.Sprintf("my position on %s", topic), "core_positions"},
		{fmt.Sprintf("arguments about %s", topic), "key_arguments"},
		{fmt.Sprintf("criticism of common views on %s", topic), "critiques"},
		{"what I value most in good work", "values"},
		{"how I approach difficult problems", "methodology"},
		{fmt.Sprintf("themes connected to %s", topic), "themes"},
		{"mistakes people make in reasoning", "critiques"},
		{"principles I keep returning to", "core_positions"},
		{"how ideas should be tested", "methodology"},
		{fmt.Sprintf("examples and stories about %s", topic), "themes"},
	}

	specs := make([]entity.SearchSpec, len(queries))
	for i, q := range queries {
		specs[i] = entity.SearchSpec{
			Query:   q.q,
			Purpose: entity.PurposeContent,
			K:       5,
			Reason:  q.cat,
		}
	}
	return specs
}

func (w *WorldviewPlanner) composePrompt(persona, topicHint string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("A document about the following topic will be critiqued in the voice of %q:\n\n", persona))
	sb.WriteString(topicHint)
	sb.WriteString("\n\nDesign 8-14 searches over the persona's corpus that reconstruct their worldview on this topic. Tag each with a category:\n")
	for _, cat := range worldviewCategories {
		sb.WriteString(fmt.Sprintf("- %s\n", cat))
	}
	sb.WriteString("\nRespond with ONLY a JSON object:\n")
	sb.WriteString(`{"searches": [{"query": "...", "category": "core_positions", "k": 5}]}`)
	sb.WriteString(fmt.Sprintf("\n\nk must be between 1 and %d.", w.maxK))

	return sb.String()
}
