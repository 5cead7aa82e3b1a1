package pipeline

import (
	"context"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSanitizesModelOutput(t *testing.T) {
	provider := &scriptedProvider{generates: []string{
		`{"searches": [
			{"query": "good one", "purpose": "direct", "k": 99},
			{"query": "odd purpose", "purpose": "banana", "k": 0},
			{"query": "   ", "purpose": "content", "k": 5}
		]}`,
	}}
	planner := NewPlanner(provider, 20, logger.NewTestLogger())

	specs := planner.Plan(context.Background(), "mentor", "question", nil)

	require.Len(t, specs, 2)
	assert.Equal(t, 20, specs[0].K)
	assert.Equal(t, entity.PurposeDirect, specs[0].Purpose)
	assert.Equal(t, entity.PurposeContent, specs[1].Purpose)
	assert.Equal(t, 5, specs[1].K)
}

func TestPlanMalformedFallsBackToDefault(t *testing.T) {
	provider := &scriptedProvider{generates: []string{"I would rather chat than emit JSON"}}
	planner := NewPlanner(provider, 20, logger.NewTestLogger())

	specs := planner.Plan(context.Background(), "mentor", "what is good prose?", nil)

	require.Len(t, specs, 2)
	assert.Equal(t, entity.PurposeDirect, specs[0].Purpose)
	assert.Equal(t, 8, specs[0].K)
	assert.Equal(t, entity.PurposeStyle, specs[1].Purpose)
	assert.Equal(t, 5, specs[1].K)
	assert.Equal(t, "what is good prose?", specs[0].Query)
}

func TestPlanAllSpecsInvalidFallsBackToDefault(t *testing.T) {
	provider := &scriptedProvider{generates: []string{`{"searches": [{"query": "", "purpose": "content", "k": 5}]}`}}
	planner := NewPlanner(provider, 20, logger.NewTestLogger())

	specs := planner.Plan(context.Background(), "mentor", "q", nil)

	require.Len(t, specs, 2)
	assert.Equal(t, entity.PurposeDirect, specs[0].Purpose)
}
