package pipeline

import (
	"context"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFallbackIsStrictOnFirstLoop(t *testing.T) {
	provider := &scriptedProvider{generates: []string{"prose, not json"}}
	evaluator := NewEvaluator(provider, 20, 0.6, logger.NewTestLogger())

	eval := evaluator.Evaluate(context.Background(), "the question", &entity.RetrievalState{}, 1)

	assert.False(t, eval.Sufficient)
	require.Len(t, eval.AdditionalSearches, 2)
	assert.Equal(t, "the question", eval.AdditionalSearches[0].Query)
	assert.Equal(t, entity.PurposeContent, eval.AdditionalSearches[0].Purpose)
	assert.Equal(t, entity.PurposeRelated, eval.AdditionalSearches[1].Purpose)
}

func TestEvaluateFallbackIsLenientOnLaterLoops(t *testing.T) {
	provider := &scriptedProvider{generates: []string{"still not json"}}
	evaluator := NewEvaluator(provider, 20, 0.6, logger.NewTestLogger())

	eval := evaluator.Evaluate(context.Background(), "q", &entity.RetrievalState{}, 2)

	assert.True(t, eval.Sufficient)
	assert.Empty(t, eval.AdditionalSearches)
	assert.InDelta(t, 0.6, eval.ContentScore, 1e-9)
	assert.InDelta(t, 0.6, eval.StyleScore, 1e-9)
	assert.InDelta(t, 0.6, eval.GroundingScore, 1e-9)
}

func TestEvaluateSanitizesAdditionalSearches(t *testing.T) {
	provider := &scriptedProvider{generates: []string{
		`{"sufficient": false, "content_score": 1.4, "style_score": -0.2, "grounding_score": 0.5,
		  "additional_searches": [
			{"query": "a", "k": 50},
			{"query": "b", "purpose": "style", "k": 3},
			{"query": "c", "k": 2},
			{"query": "d", "k": 2}
		]}`,
	}}
	evaluator := NewEvaluator(provider, 20, 0.6, logger.NewTestLogger())

	eval := evaluator.Evaluate(context.Background(), "q", &entity.RetrievalState{}, 1)

	// Capped at three follow-ups, all clamped and typed.
	require.Len(t, eval.AdditionalSearches, 3)
	assert.Equal(t, 20, eval.AdditionalSearches[0].K)
	assert.Equal(t, entity.PurposeContent, eval.AdditionalSearches[0].Purpose)
	assert.Equal(t, entity.PurposeStyle, eval.AdditionalSearches[1].Purpose)
	assert.Equal(t, 1.0, eval.ContentScore)
	assert.Equal(t, 0.0, eval.StyleScore)
}
