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

const maxAdditionalSearches = 3

// Evaluator judges whether a retrieval loop gathered enough material.
// The first loop is judged strictly; later loops leniently, so the
// pipeline converges instead of chasing perfect coverage.
type Evaluator struct {
	provider      llm.CompletionProvider
	maxK          int
	fallbackScore float64
	log           logger.ILogger
}

func NewEvaluator(provider llm.CompletionProvider, maxK int, fallbackScore float64, log logger.ILogger) *Evaluator {
	if maxK <= 0 {
		maxK = 20
	}
	if fallbackScore <= 0 {
		fallbackScore = 0.6
	}
	return &Evaluator{
		provider:      provider,
		maxK:          maxK,
		fallbackScore: fallbackScore,
		log:           log,
	}
}

// Evaluate judges the state after the given loop (1-based). Parse or
// endpoint failures fall back by loop: loop 1 assumes insufficiency and
// proposes default follow-ups, later loops accept what's there.
func (e *Evaluator) Evaluate(ctx context.Context, query string, state *entity.RetrievalState, loop int) entity.Evaluation {
	prompt := e.composePrompt(query, state, loop)

	response, err := e.provider.Generate(ctx, prompt, llm.WithTemperature(0.1))
	if err != nil {
		e.log.Warn("evaluator", "evaluation failed, using loop fallback", map[string]interface{}{
			"loop":  loop,
			"error": err.Error(),
		})
		return e.fallback(query, loop)
	}

	var eval entity.Evaluation
	if err := llm.UnmarshalResponse(response, &eval); err != nil {
		e.log.Warn("evaluator", "evaluation unparseable, using loop fallback", map[string]interface{}{
			"loop":  loop,
			"error": err.Error(),
		})
		return e.fallback(query, loop)
	}

	e.sanitize(&eval)
	return eval
}

func (e *Evaluator) sanitize(eval *entity.Evaluation) {
	if len(eval.AdditionalSearches) > maxAdditionalSearches {
		eval.AdditionalSearches = eval.AdditionalSearches[:maxAdditionalSearches]
	}
	sane := eval.AdditionalSearches[:0]
	for _, spec := range eval.AdditionalSearches {
		if strings.TrimSpace(spec.Query) == "" {
			continue
		}
		if spec.K <= 0 {
			spec.K = 5
		}
		if spec.K > e.maxK {
			spec.K = e.maxK
		}
		if spec.Purpose == "" {
			spec.Purpose = entity.PurposeContent
		}
		sane = append(sane, spec)
	}
	eval.AdditionalSearches = sane

	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	eval.ContentScore = clamp(eval.ContentScore)
	eval.StyleScore = clamp(eval.StyleScore)
	eval.GroundingScore = clamp(eval.GroundingScore)
}

// fallback degrades by loop: a first loop that can't be judged
// retries with default follow-ups; later loops accept the state with
// middling scores rather than loop forever.
func (e *Evaluator) fallback(query string, loop int) entity.Evaluation {
	if loop <= 1 {
		return entity.Evaluation{
			Sufficient: false,
			Gaps:       []string{"evaluation unavailable on first pass"},
			AdditionalSearches: []entity.SearchSpec{
				{Query: query, Purpose: entity.PurposeContent, K: 8, Reason: "retry broad content sweep"},
				{Query: query, Purpose: entity.PurposeRelated, K: 5, Reason: "retry adjacent themes"},
			},
		}
	}
	return entity.Evaluation{
		Sufficient:     true,
		ContentScore:   e.fallbackScore,
		StyleScore:     e.fallbackScore,
		GroundingScore: e.fallbackScore,
	}
}

func (e *Evaluator) composePrompt(query string, state *entity.RetrievalState, loop int) string {
	var sb strings.Builder

	sb.WriteString("You judge whether retrieved corpus material is enough to answer in the persona's voice.\n\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n\n", query))

	sb.WriteString("Retrieved so far:\n")
	for _, res := range state.Results {
		if res.Failed() {
			sb.WriteString(fmt.Sprintf("- [%s] %q FAILED: %s\n", res.Spec.Purpose, res.Spec.Query, res.Err))
			continue
		}
		sb.WriteString(fmt.Sprintf("- [%s] %q returned %d fragments\n", res.Spec.Purpose, res.Spec.Query, len(res.Fragments)))
		for i, frag := range res.Fragments {
			if i == 3 {
				break
			}
			excerpt := utils.TruncateRunes(frag.Content, 150)
			sb.WriteString(fmt.Sprintf("    · %s\n", excerpt))
		}
	}

	if loop <= 1 {
		sb.WriteString("\nBe strict: thin or tangential coverage is NOT sufficient on a first pass.\n")
	} else {
		sb.WriteString(fmt.Sprintf("\nThis is pass %d. Be lenient: accept the material unless something essential is clearly missing.\n", loop))
	}

	sb.WriteString("\nRespond with ONLY a JSON object:\n")
	sb.WriteString(`{"sufficient": true/false, "content_score": 0.0-1.0, "style_score": 0.0-1.0, "grounding_score": 0.0-1.0, "gaps": ["..."], "additional_searches": [{"query": "...", "purpose": "content", "k": 5, "reason": "..."}]}`)
	sb.WriteString(fmt.Sprintf("\n\nPropose at most %d additional searches, and only when not sufficient.", maxAdditionalSearches))

	return sb.String()
}
