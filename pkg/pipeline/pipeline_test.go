package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/persona"
	"persona-rag-be/pkg/rag/retrieve"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned Generate responses in order and
// returns a fixed Complete text.
type scriptedProvider struct {
	generates    []string
	genCalls     int
	completeText string
	completeErr  error
}

func (s *scriptedProvider) Generate(_ context.Context, _ string, _ ...llm.Option) (string, error) {
	if s.genCalls >= len(s.generates) {
		s.genCalls++
		return "out of script", nil
	}
	response := s.generates[s.genCalls]
	s.genCalls++
	return response, nil
}

func (s *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest, _ ...llm.Option) (*llm.Completion, error) {
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return &llm.Completion{Text: s.completeText, FinishReason: "stop"}, nil
}

func (s *scriptedProvider) SupportsTools() bool { return false }

// stubSearcher returns the configured fragments for every search.
type stubSearcher struct {
	fragments []entity.Fragment
	calls     int
}

func (s *stubSearcher) SearchBroad(_ context.Context, _ string, _, _ int, _ entity.SearchFilters) ([]entity.Fragment, error) {
	s.calls++
	return s.fragments, nil
}

func corpusFragment(sourceFile string) entity.Fragment {
	return entity.Fragment{
		Id:         uuid.New(),
		Persona:    "mentor",
		Content:    strings.Repeat("A long enough passage showing real style. ", 5),
		SourceType: entity.SourceEssay,
		SourceFile: sourceFile,
	}
}

func newTestPipeline(t *testing.T, provider *scriptedProvider, searcher *stubSearcher, cfg Config) *Pipeline {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mentor.md"), []byte("You are a thoughtful mentor."), 0o644))

	log := logger.NewTestLogger()
	return New(
		NewPlanner(provider, 20, log),
		retrieve.NewRetriever(searcher, 20, log),
		NewEvaluator(provider, 20, 0.6, log),
		NewSynthesizer(provider, 8000, 4000, log),
		NewWorldviewPlanner(provider, 40, log),
		NewStyleExtractor(provider, DefaultStyleConfig(), log),
		NewCriticReader(provider, 25, log),
		persona.NewStore(dir),
		nil,
		cfg,
		log,
	)
}

const insufficientEval = `{"sufficient": false, "content_score": 0.2, "style_score": 0.2, "grounding_score": 0.2, "gaps": ["more needed"], "additional_searches": [{"query": "follow up", "purpose": "content", "k": 5}]}`

const sufficientEval = `{"sufficient": true, "content_score": 0.9, "style_score": 0.8, "grounding_score": 0.9, "gaps": [], "additional_searches": []}`

func TestRespondStopsAtLoopCeiling(t *testing.T) {
	provider := &scriptedProvider{
		generates: []string{
			`{"searches": [{"query": "start", "purpose": "direct", "k": 5}]}`,
			insufficientEval,
			insufficientEval,
			insufficientEval,
		},
		completeText: "Here is my considered answer.",
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{MaxRetrievalLoops: 3})

	result := p.Respond(context.Background(), "mentor", "what matters in writing?", nil)

	assert.False(t, result.Degraded)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, "Here is my considered answer.", result.Response)
	// plan + one evaluation per loop
	assert.Equal(t, 4, provider.genCalls)
}

func TestRespondStopsWhenSufficient(t *testing.T) {
	provider := &scriptedProvider{
		generates: []string{
			`{"searches": [{"query": "start", "purpose": "direct", "k": 5}]}`,
			sufficientEval,
		},
		completeText: "Short and done.",
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{MaxRetrievalLoops: 3})

	result := p.Respond(context.Background(), "mentor", "quick one", nil)

	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, "Short and done.", result.Response)
}

func TestRespondSynthesisFailureDegrades(t *testing.T) {
	provider := &scriptedProvider{
		generates: []string{
			`{"searches": [{"query": "start", "purpose": "direct", "k": 5}]}`,
			sufficientEval,
		},
		completeErr: llm.ErrEndpointFault,
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{MaxRetrievalLoops: 3})

	result := p.Respond(context.Background(), "mentor", "query", nil)

	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Err)
	assert.NotEmpty(t, result.Response)
}

func TestRespondUnknownPersona(t *testing.T) {
	provider := &scriptedProvider{}
	searcher := &stubSearcher{}
	p := newTestPipeline(t, provider, searcher, Config{})

	result := p.Respond(context.Background(), "nobody", "query", nil)

	assert.True(t, result.Degraded)
	assert.Zero(t, provider.genCalls)
	assert.Zero(t, searcher.calls)
}

func TestRespondStreamEmitsTerminalResult(t *testing.T) {
	provider := &scriptedProvider{
		generates: []string{
			`{"searches": [{"query": "start", "purpose": "direct", "k": 5}]}`,
			sufficientEval,
		},
		completeText: "Streamed answer.",
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{MaxRetrievalLoops: 3})

	var sawText, sawResult bool
	for event := range p.RespondStream(context.Background(), "mentor", "query", nil) {
		switch event.Type {
		case "text":
			sawText = true
		case "result":
			sawResult = true
			require.NotNil(t, event.Result)
			assert.Equal(t, "Streamed answer.", event.Result.Response)
		}
	}
	assert.True(t, sawText)
	assert.True(t, sawResult)
}

func TestCritiqueMapsIssuesToFeedback(t *testing.T) {
	criticReadJSON := `{"issues": [
		{"type": "contest", "claim_or_passage": "writing is easy", "position_start": 0, "position_end": 5000, "your_reaction": "I disagree sharply", "severity": "high", "evidence_search": {"query": "writing is hard", "k": 5}},
		{"type": "craft", "claim_or_passage": "flabby opening", "position_start": 10, "position_end": 40, "your_reaction": "tighten this", "evidence_search": {"query": "openings", "k": 5}}
	]}`
	feedback := `{"feedback": [
		{"type": "issue", "category": "contest", "title": "Easy is the wrong word", "content": "Everything I have written says otherwise.", "severity": "high", "confidence": 0.9, "corpus_sources": ["essays/one.md", "never-retrieved.md"]},
		{"type": "suggestion", "category": "craft", "title": "Cut the opening", "content": "Start at the second paragraph.", "severity": "medium", "confidence": 0.7, "corpus_sources": ["essays/one.md"]}
	]}`

	provider := &scriptedProvider{
		generates: []string{
			"A document claiming writing is easy.", // topic hint
			"not json, fall back to defaults",      // worldview plan
			"also not json",                        // style profile
			criticReadJSON,
			feedback,
		},
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{MaxRetrievalLoops: 3, WorldviewMaxK: 40, EvidenceMaxK: 25})

	document := "Writing is easy. Anyone can do it well on the first try."
	result := p.Critique(context.Background(), "mentor", document)

	assert.False(t, result.Degraded)
	assert.Equal(t, "critic", result.Mode)
	require.Len(t, result.Feedback, 2)

	first := result.Feedback[0]
	assert.Equal(t, "issue", first.Type)
	// Sources not actually retrieved are dropped.
	assert.Equal(t, []string{"essays/one.md"}, first.CorpusSources)
	// Positions clamped to document length.
	require.Len(t, first.TextPositions, 1)
	assert.LessOrEqual(t, first.TextPositions[0][1], len(document))

	second := result.Feedback[1]
	assert.Equal(t, "suggestion", second.Type)
	assert.Equal(t, [2]int{10, 40}, second.TextPositions[0])
}

func TestCritiqueFeedbackParseFailureDerivesFromIssues(t *testing.T) {
	criticReadJSON := `{"issues": [
		{"type": "gap", "claim_or_passage": "no mention of revision", "position_start": 0, "position_end": 10, "your_reaction": "revision is where writing happens", "evidence_search": {"query": "revision", "k": 5}}
	]}`

	provider := &scriptedProvider{
		generates: []string{
			"About writing.",
			"not json",
			"not json",
			criticReadJSON,
			"the feedback response is not json either",
		},
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{})

	result := p.Critique(context.Background(), "mentor", "A short draft about writing.")

	require.Len(t, result.Feedback, 1)
	item := result.Feedback[0]
	assert.Equal(t, "issue", item.Type)
	assert.Equal(t, "revision is where writing happens", item.Content)
	assert.Equal(t, "medium", item.Severity)
	// Evidence retrieval still grounds the derived item.
	assert.Equal(t, []string{"essays/one.md"}, item.CorpusSources)
}

func TestCritiqueNoIssuesFallsBackToGenericRead(t *testing.T) {
	provider := &scriptedProvider{
		generates: []string{
			"About writing.",
			"not json",
			"not json",
			"the critic read came back as prose, not json",
			"My overall reaction: this draft has promise but no spine.",
		},
	}
	searcher := &stubSearcher{fragments: []entity.Fragment{corpusFragment("essays/one.md")}}
	p := newTestPipeline(t, provider, searcher, Config{})

	result := p.Critique(context.Background(), "mentor", "A short draft.")

	assert.True(t, result.Degraded)
	assert.Equal(t, "critic", result.Mode)
	assert.Contains(t, result.Response, "promise")
	require.Len(t, result.Feedback, 1)
	assert.Equal(t, "question", result.Feedback[0].Type)
}

func TestCritiqueUnknownPersona(t *testing.T) {
	provider := &scriptedProvider{}
	p := newTestPipeline(t, provider, &stubSearcher{}, Config{})

	result := p.Critique(context.Background(), "nobody", "doc")

	assert.True(t, result.Degraded)
	assert.Zero(t, provider.genCalls)
}
