package reason

import (
	"context"
	"fmt"
	"strings"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/utils"
)

// Searcher finds corpus concepts related to a reasoning step.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filters entity.SearchFilters) ([]entity.Fragment, error)
}

// Verdict is the model's judgement on whether a reasoning step has
// drifted away from what the corpus supports.
type Verdict struct {
	IsOOD      bool    `json:"is_ood"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// CheckResult is the structured outcome of one reasoning check, the
// shape the agent receives serialized in the tool result.
type CheckResult struct {
	IsOOD          bool     `json:"is_ood"`
	Confidence     float64  `json:"confidence"`
	Guidance       string   `json:"guidance,omitempty"`
	CorpusConcepts []string `json:"corpus_concepts,omitempty"`
}

// Checker implements the incremental reasoning guard: mid-generation,
// the agent can submit a reasoning step and get back grounding guidance
// when the step is out of the corpus's distribution.
type Checker struct {
	searcher    Searcher
	provider    llm.CompletionProvider
	checkModel  string
	maxConcepts int
	log         logger.ILogger
}

func NewChecker(searcher Searcher, provider llm.CompletionProvider, checkModel string, maxConcepts int, log logger.ILogger) *Checker {
	if maxConcepts <= 0 {
		maxConcepts = 5
	}
	return &Checker{
		searcher:    searcher,
		provider:    provider,
		checkModel:  checkModel,
		maxConcepts: maxConcepts,
		log:         log,
	}
}

// CheckAndGuide evaluates one reasoning step against related corpus
// concepts and returns the structured verdict with guidance.
func (c *Checker) CheckAndGuide(ctx context.Context, persona, reasoningStep string) (*CheckResult, error) {
	related, err := c.searcher.Search(ctx, reasoningStep, c.maxConcepts, entity.SearchFilters{Persona: persona})
	if err != nil {
		return nil, fmt.Errorf("find related concepts: %w", err)
	}

	verdict, err := c.judge(ctx, reasoningStep, related)
	if err != nil {
		// An unusable verdict should not stall the agent; pass the
		// step with a neutral note.
		c.log.Warn("reason", "verdict unavailable, passing step", map[string]interface{}{
			"error": err.Error(),
		})
		return &CheckResult{
			Guidance:       "Could not verify this step against your corpus. Proceed, but prefer claims you can ground in retrieved material.",
			CorpusConcepts: renderConcepts(related, 200),
		}, nil
	}

	return &CheckResult{
		IsOOD:          verdict.IsOOD,
		Confidence:     verdict.Confidence,
		Guidance:       renderGuidance(verdict),
		CorpusConcepts: renderConcepts(related, 200),
	}, nil
}

func (c *Checker) judge(ctx context.Context, step string, related []entity.Fragment) (*Verdict, error) {
	var concepts strings.Builder
	for i, frag := range related {
		excerpt := utils.TruncateRunes(frag.Content, 400)
		concepts.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, frag.SourceFile, excerpt))
	}
	if concepts.Len() == 0 {
		concepts.WriteString("(no related corpus material found)\n")
	}

	prompt := fmt.Sprintf(`You are checking whether a reasoning step stays within what a writer's corpus supports.

Reasoning step:
%s

Most related corpus concepts:
%s
Respond with ONLY a JSON object:
{"is_ood": true/false, "confidence": 0.0-1.0, "reasoning": "one sentence"}

is_ood is true when the step asserts positions or facts the corpus does not support.`, step, concepts.String())

	opts := []llm.Option{llm.WithTemperature(0.0)}
	if c.checkModel != "" {
		opts = append(opts, llm.WithModel(c.checkModel))
	}

	response, err := c.provider.Generate(ctx, prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("verdict generation: %w", err)
	}

	var verdict Verdict
	if err := llm.UnmarshalResponse(response, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func renderGuidance(verdict *Verdict) string {
	if verdict.IsOOD {
		return fmt.Sprintf("CAUTION: this step drifts from your corpus. %s Reframe it around material you have actually written.", verdict.Reasoning)
	}
	return "This step is consistent with your corpus."
}

func renderConcepts(related []entity.Fragment, excerptLen int) []string {
	concepts := make([]string, 0, len(related))
	for _, frag := range related {
		concepts = append(concepts, fmt.Sprintf("[%s] %s", frag.SourceFile, utils.TruncateRunes(frag.Content, excerptLen)))
	}
	return concepts
}
