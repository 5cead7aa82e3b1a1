package reason

import (
	"context"
	"strings"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	response string
}

func (p *fixedProvider) Generate(_ context.Context, _ string, _ ...llm.Option) (string, error) {
	return p.response, nil
}

func (p *fixedProvider) Complete(_ context.Context, _ llm.CompletionRequest, _ ...llm.Option) (*llm.Completion, error) {
	return &llm.Completion{Text: p.response, FinishReason: "stop"}, nil
}

func (p *fixedProvider) SupportsTools() bool { return false }

type fixedSearcher struct {
	fragments []entity.Fragment
}

func (s *fixedSearcher) Search(_ context.Context, _ string, _ int, _ entity.SearchFilters) ([]entity.Fragment, error) {
	return s.fragments, nil
}

func conceptFragment(sourceFile, content string) entity.Fragment {
	return entity.Fragment{
		Id:         uuid.New(),
		Persona:    "mentor",
		Content:    content,
		SourceFile: sourceFile,
	}
}

func TestCheckAndGuideReturnsStructuredVerdict(t *testing.T) {
	provider := &fixedProvider{response: `{"is_ood": true, "confidence": 0.82, "reasoning": "the corpus never argues this"}`}
	searcher := &fixedSearcher{fragments: []entity.Fragment{
		conceptFragment("essays/craft.md", "Revision is where the real writing happens."),
		conceptFragment("essays/voice.md", "Voice comes from constraint, not freedom."),
	}}

	checker := NewChecker(searcher, provider, "", 5, logger.NewTestLogger())
	result, err := checker.CheckAndGuide(context.Background(), "mentor", "Therefore all drafts are disposable.")
	require.NoError(t, err)

	assert.True(t, result.IsOOD)
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.Contains(t, result.Guidance, "drifts from your corpus")
	require.Len(t, result.CorpusConcepts, 2)
	assert.Contains(t, result.CorpusConcepts[0], "[essays/craft.md]")
}

func TestCheckAndGuideInDistribution(t *testing.T) {
	provider := &fixedProvider{response: `{"is_ood": false, "confidence": 0.9, "reasoning": "well supported"}`}
	searcher := &fixedSearcher{fragments: []entity.Fragment{
		conceptFragment("essays/craft.md", "Revision is where the real writing happens."),
	}}

	checker := NewChecker(searcher, provider, "", 5, logger.NewTestLogger())
	result, err := checker.CheckAndGuide(context.Background(), "mentor", "Revision matters more than drafting.")
	require.NoError(t, err)

	assert.False(t, result.IsOOD)
	assert.Contains(t, result.Guidance, "consistent with your corpus")
}

func TestCheckAndGuideUnparseableVerdictPassesStep(t *testing.T) {
	provider := &fixedProvider{response: "I cannot answer in JSON today."}
	searcher := &fixedSearcher{fragments: []entity.Fragment{
		conceptFragment("essays/craft.md", "Revision is where the real writing happens."),
	}}

	checker := NewChecker(searcher, provider, "", 5, logger.NewTestLogger())
	result, err := checker.CheckAndGuide(context.Background(), "mentor", "A step.")
	require.NoError(t, err)

	assert.False(t, result.IsOOD)
	assert.Contains(t, result.Guidance, "Could not verify")
	assert.Len(t, result.CorpusConcepts, 1)
}

func TestCheckAndGuideTruncatesConceptExcerpts(t *testing.T) {
	provider := &fixedProvider{response: `{"is_ood": false, "confidence": 0.9, "reasoning": "fine"}`}
	long := strings.Repeat("é", 500)
	searcher := &fixedSearcher{fragments: []entity.Fragment{
		conceptFragment("essays/long.md", long),
	}}

	checker := NewChecker(searcher, provider, "", 5, logger.NewTestLogger())
	result, err := checker.CheckAndGuide(context.Background(), "mentor", "A step.")
	require.NoError(t, err)

	require.Len(t, result.CorpusConcepts, 1)
	assert.Less(t, len([]rune(result.CorpusConcepts[0])), 250)
}
