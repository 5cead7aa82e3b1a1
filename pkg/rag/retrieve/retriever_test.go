package retrieve

import (
	"context"
	"errors"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubSearcher struct {
	calls   []string
	failOn  map[string]error
	returns map[string][]entity.Fragment
}

func (s *stubSearcher) SearchBroad(ctx context.Context, query string, k, ceiling int, filters entity.SearchFilters) ([]entity.Fragment, error) {
	s.calls = append(s.calls, query)
	if err, ok := s.failOn[query]; ok {
		return nil, err
	}
	return s.returns[query], nil
}

func newFragment(content string) entity.Fragment {
	return entity.Fragment{Id: uuid.New(), Content: content, SourceFile: "essays/one.md"}
}

func TestExecuteRunsSpecsInOrder(t *testing.T) {
	searcher := &stubSearcher{
		returns: map[string][]entity.Fragment{
			"first":  {newFragment("a")},
			"second": {newFragment("b")},
			"third":  {newFragment("c")},
		},
	}
	r := NewRetriever(searcher, 20, logger.NewTestLogger())

	specs := []entity.SearchSpec{
		{Query: "first", Purpose: entity.PurposeDirect, K: 5},
		{Query: "second", Purpose: entity.PurposeContent, K: 5},
		{Query: "third", Purpose: entity.PurposeStyle, K: 5},
	}

	results := r.Execute(context.Background(), "mentor", specs)

	assert.Equal(t, []string{"first", "second", "third"}, searcher.calls)
	assert.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, specs[i].Query, res.Spec.Query)
	}
}

func TestExecuteRecordsFailureWithoutAborting(t *testing.T) {
	searcher := &stubSearcher{
		failOn: map[string]error{
			"broken": errors.New("index unavailable"),
		},
		returns: map[string][]entity.Fragment{
			"fine": {newFragment("ok")},
		},
	}
	r := NewRetriever(searcher, 20, logger.NewTestLogger())

	results := r.Execute(context.Background(), "mentor", []entity.SearchSpec{
		{Query: "broken", K: 5},
		{Query: "fine", K: 5},
	})

	assert.Len(t, results, 2)
	assert.True(t, results[0].Failed())
	assert.Empty(t, results[0].Fragments)
	assert.Contains(t, results[0].Err, "index unavailable")

	assert.False(t, results[1].Failed())
	assert.Len(t, results[1].Fragments, 1)
}

func TestExecuteDeduplicatesWithinResult(t *testing.T) {
	dup := newFragment("dup")
	searcher := &stubSearcher{
		returns: map[string][]entity.Fragment{
			"q": {dup, dup, newFragment("other")},
		},
	}
	r := NewRetriever(searcher, 20, logger.NewTestLogger())

	results := r.Execute(context.Background(), "mentor", []entity.SearchSpec{{Query: "q", K: 5}})

	assert.Len(t, results[0].Fragments, 2)
}

func TestFormatByPurposeGroupsAndBudgets(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}

	results := []entity.SearchResult{
		{
			Spec:      entity.SearchSpec{Query: "a", Purpose: entity.PurposeContent},
			Fragments: []entity.Fragment{newFragment(string(long))},
		},
		{
			Spec:      entity.SearchSpec{Query: "b", Purpose: entity.PurposeStyle},
			Fragments: []entity.Fragment{newFragment("style sample")},
		},
	}

	out := FormatByPurpose(results, map[entity.SearchPurpose]int{
		entity.PurposeContent: 1000,
		entity.PurposeStyle:   1000,
	})

	assert.Contains(t, out, "## Retrieved for content")
	assert.Contains(t, out, "## Retrieved for style")
	assert.Contains(t, out, "style sample")
	assert.Less(t, len(out), 3000, "content group must respect its budget")
}
