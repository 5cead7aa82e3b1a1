package agent

import (
	"testing"
	"time"

	"persona-rag-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchFiltersTimeRange(t *testing.T) {
	filters := parseSearchFilters("mentor", map[string]interface{}{
		"query": "drafts about revision",
		"time_range": map[string]interface{}{
			"start": "2024-01-01T00:00:00Z",
			"end":   "2024-06-30",
		},
	})

	assert.Equal(t, "mentor", filters.Persona)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), filters.TimeRange.Start)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), filters.TimeRange.End)
	assert.False(t, filters.TimeRange.IsZero())
}

func TestParseSearchFiltersSourceFilter(t *testing.T) {
	filters := parseSearchFilters("mentor", map[string]interface{}{
		"source_filter": []interface{}{"essay", "dialogue", "podcast", 42},
	})

	// Unknown types and non-strings are dropped, valid ones kept.
	assert.Equal(t, []entity.SourceType{entity.SourceEssay, entity.SourceDialogue}, filters.SourceTypes)
}

func TestParseSearchFiltersAbsent(t *testing.T) {
	filters := parseSearchFilters("mentor", map[string]interface{}{"query": "q"})

	assert.Equal(t, "mentor", filters.Persona)
	assert.Empty(t, filters.SourceTypes)
	assert.True(t, filters.TimeRange.IsZero())
}

func TestParseSearchFiltersBadTimestamps(t *testing.T) {
	filters := parseSearchFilters("mentor", map[string]interface{}{
		"time_range": map[string]interface{}{
			"start": "last tuesday",
			"end":   "",
		},
	})

	assert.True(t, filters.TimeRange.IsZero())
}

func TestSearchCorpusSchemaExposesFilters(t *testing.T) {
	schema := NewSearchCorpusTool(nil).Schema()

	props, ok := schema.Parameters["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "time_range")
	assert.Contains(t, props, "source_filter")
	assert.Equal(t, []string{"query"}, schema.Parameters["required"])
}
