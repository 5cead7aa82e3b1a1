package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// stylePackSeedQuery is deliberately bland: with a low similarity bar
// it pulls a wide slice of the corpus to sample voice from.
const stylePackSeedQuery = "the"

const maxSampleChars = 1000

// StylePackBuilder assembles diverse corpus excerpts that show the
// persona's voice, for injection into agent system prompts. Packs are
// cached per persona since the corpus is static between ingests.
type StylePackBuilder struct {
	tool  *CorpusSearchTool
	size  int
	cache *gocache.Cache
	log   logger.ILogger
}

func NewStylePackBuilder(tool *CorpusSearchTool, size int, ttl time.Duration, log logger.ILogger) *StylePackBuilder {
	if size <= 0 {
		size = 10
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StylePackBuilder{
		tool:  tool,
		size:  size,
		cache: gocache.New(ttl, 2*ttl),
		log:   log,
	}
}

// Build returns up to size fragments, round-robined across distinct
// source files so no single document dominates the pack.
func (b *StylePackBuilder) Build(ctx context.Context, persona string) ([]entity.Fragment, error) {
	if cached, found := b.cache.Get(persona); found {
		return cached.([]entity.Fragment), nil
	}

	// Over-fetch so diversity selection has something to choose from.
	candidates, err := b.tool.SearchBroad(ctx, stylePackSeedQuery, b.size*5, b.size*5, entity.SearchFilters{Persona: persona})
	if err != nil {
		return nil, fmt.Errorf("style pack retrieval: %w", err)
	}

	pack := selectDiverse(candidates, b.size)

	b.cache.Set(persona, pack, gocache.DefaultExpiration)
	b.log.Debug("stylepack", "style pack built", map[string]interface{}{
		"persona":    persona,
		"candidates": len(candidates),
		"selected":   len(pack),
	})
	return pack, nil
}

// Render formats a pack as a system prompt section.
func (b *StylePackBuilder) Render(pack []entity.Fragment) string {
	if len(pack) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Voice samples from your own writing\n\n")
	sb.WriteString("These excerpts show how you write. Match their voice; never quote them directly.\n\n")
	for i, frag := range pack {
		sample := frag.Content
		if len(sample) > maxSampleChars {
			sample = sample[:maxSampleChars]
		}
		sb.WriteString(fmt.Sprintf("### Sample %d (%s)\n%s\n\n", i+1, frag.SourceFile, sample))
	}
	return sb.String()
}

// selectDiverse round-robins across source files: first fragment of
// each file, then second of each, until size is reached.
func selectDiverse(candidates []entity.Fragment, size int) []entity.Fragment {
	bySource := make(map[string][]entity.Fragment)
	var order []string
	for _, frag := range candidates {
		key := frag.SourceFile
		if _, seen := bySource[key]; !seen {
			order = append(order, key)
		}
		bySource[key] = append(bySource[key], frag)
	}

	var pack []entity.Fragment
	for depth := 0; len(pack) < size; depth++ {
		progressed := false
		for _, key := range order {
			frags := bySource[key]
			if depth >= len(frags) {
				continue
			}
			pack = append(pack, frags[depth])
			progressed = true
			if len(pack) == size {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return pack
}
