package pipeline

import (
	"context"
	"testing"

	"persona-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldviewPlanTopsUpThinPlans(t *testing.T) {
	provider := &scriptedProvider{generates: []string{
		`{"searches": [
			{"query": "position on testing", "category": "core_positions", "k": 5},
			{"query": "weird tag", "category": "astrology", "k": 80}
		]}`,
	}}
	planner := NewWorldviewPlanner(provider, 40, logger.NewTestLogger())

	specs := planner.Plan(context.Background(), "mentor", "a document about testing")

	require.GreaterOrEqual(t, len(specs), minWorldviewQueries)
	assert.Equal(t, "core_positions", specs[0].Reason)
	// Unknown categories are folded into themes, k clamped to ceiling.
	assert.Equal(t, "themes", specs[1].Reason)
	assert.Equal(t, 40, specs[1].K)
}

func TestWorldviewPlanMalformedUsesDefaults(t *testing.T) {
	provider := &scriptedProvider{generates: []string{"no json here"}}
	planner := NewWorldviewPlanner(provider, 40, logger.NewTestLogger())

	specs := planner.Plan(context.Background(), "mentor", "gardening")

	require.Len(t, specs, 10)
	categories := make(map[string]bool)
	for _, spec := range specs {
		assert.NotEmpty(t, spec.Query)
		categories[spec.Reason] = true
	}
	for _, cat := range worldviewCategories {
		assert.True(t, categories[cat], "missing category %s", cat)
	}
}
