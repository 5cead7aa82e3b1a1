package pipeline

import (
	"context"
	"strings"
	"testing"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func styleFragment(sourceFile string, chunk int) entity.Fragment {
	return entity.Fragment{
		Id:         uuid.New(),
		SourceFile: sourceFile,
		ChunkIndex: chunk,
		Content:    strings.Repeat("Sentences with enough length to count as style. ", 4),
	}
}

func TestSelectSamplesRoundRobinsAcrossSources(t *testing.T) {
	extractor := NewStyleExtractor(nil, StyleConfig{MaxSamples: 4, MaxSampleChars: 30000, MinChunkChars: 100}, logger.NewTestLogger())

	fragments := []entity.Fragment{
		styleFragment("a.md", 0),
		styleFragment("a.md", 1),
		styleFragment("a.md", 2),
		styleFragment("b.md", 0),
		styleFragment("b.md", 1),
		styleFragment("c.md", 0),
	}

	samples := extractor.selectSamples(fragments)

	require.Len(t, samples, 4)
	// First round covers every source before any source repeats.
	assert.Equal(t, "a.md", samples[0].SourceFile)
	assert.Equal(t, "b.md", samples[1].SourceFile)
	assert.Equal(t, "c.md", samples[2].SourceFile)
	assert.Equal(t, "a.md", samples[3].SourceFile)
	assert.Equal(t, 1, samples[3].ChunkIndex)
}

func TestSelectSamplesSkipsShortChunks(t *testing.T) {
	extractor := NewStyleExtractor(nil, DefaultStyleConfig(), logger.NewTestLogger())

	fragments := []entity.Fragment{
		{Id: uuid.New(), SourceFile: "a.md", Content: "too short"},
		styleFragment("a.md", 1),
	}

	samples := extractor.selectSamples(fragments)

	require.Len(t, samples, 1)
	assert.Equal(t, 1, samples[0].ChunkIndex)
}

func TestExtractNoSamplesYieldsDefaultProfile(t *testing.T) {
	extractor := NewStyleExtractor(&scriptedProvider{}, DefaultStyleConfig(), logger.NewTestLogger())

	profile := extractor.Extract(context.Background(), "mentor", nil)

	assert.NotEmpty(t, profile.StyleSummary)
	assert.NotEmpty(t, profile.Tone)
	assert.NotEmpty(t, profile.SentencePatterns)
}

func TestExtractPartialParseGetsFieldDefaults(t *testing.T) {
	provider := &scriptedProvider{generates: []string{
		`{"tone": ["wry"], "style_summary": "Dry and precise."}`,
	}}
	extractor := NewStyleExtractor(provider, DefaultStyleConfig(), logger.NewTestLogger())

	profile := extractor.Extract(context.Background(), "mentor", []entity.Fragment{styleFragment("a.md", 0)})

	assert.Equal(t, []string{"wry"}, profile.Tone)
	assert.Equal(t, "Dry and precise.", profile.StyleSummary)
	// Missing fields still get workable defaults.
	assert.NotEmpty(t, profile.Vocabulary)
	assert.NotEmpty(t, profile.RhetoricalMoves)
}
