package search

import (
	"context"
	"fmt"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/internal/repository/contract"
	"persona-rag-be/pkg/embedding"
	"persona-rag-be/pkg/llm"
	"persona-rag-be/pkg/rag/rank"
)

// Config tunes hybrid corpus search.
type Config struct {
	DefaultK            int
	MaxK                int
	SimilarityThreshold float64
	Rank                rank.Config
}

func DefaultConfig() Config {
	return Config{
		DefaultK:            5,
		MaxK:                20,
		SimilarityThreshold: 0.7,
		Rank:                rank.DefaultConfig(),
	}
}

// CorpusSearchTool runs hybrid search over the persona corpus: a
// semantic arm (pgvector cosine) and a lexical arm (content
// containment), merged by rank fusion.
type CorpusSearchTool struct {
	repo     contract.FragmentRepository
	embedder embedding.EmbeddingProvider
	fuser    *rank.Fuser
	cfg      Config
	log      logger.ILogger
}

func NewCorpusSearchTool(
	repo contract.FragmentRepository,
	embedder embedding.EmbeddingProvider,
	cfg Config,
	log logger.ILogger,
) *CorpusSearchTool {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = 20
	}
	return &CorpusSearchTool{
		repo:     repo,
		embedder: embedder,
		fuser:    rank.NewFuser(cfg.Rank),
		cfg:      cfg,
		log:      log,
	}
}

// ClampK normalizes a requested k into [1, MaxK], with the default for
// zero or negative values.
func (t *CorpusSearchTool) ClampK(k int) int {
	if k <= 0 {
		return t.cfg.DefaultK
	}
	if k > t.cfg.MaxK {
		return t.cfg.MaxK
	}
	return k
}

// ClampKWithCeiling is ClampK against a caller-specific ceiling, used
// by stages allowed a broader sweep than the standard MaxK.
func (t *CorpusSearchTool) ClampKWithCeiling(k, ceiling int) int {
	if ceiling <= 0 {
		return t.ClampK(k)
	}
	if k <= 0 {
		return t.cfg.DefaultK
	}
	if k > ceiling {
		return ceiling
	}
	return k
}

// Search runs one hybrid query. Both arms fetch 2k candidates so the
// fusion has enough overlap to work with.
func (t *CorpusSearchTool) Search(ctx context.Context, query string, k int, filters entity.SearchFilters) ([]entity.Fragment, error) {
	k = t.ClampK(k)
	return t.search(ctx, query, k, filters)
}

// SearchBroad is Search with a stage-specific k ceiling.
func (t *CorpusSearchTool) SearchBroad(ctx context.Context, query string, k, ceiling int, filters entity.SearchFilters) ([]entity.Fragment, error) {
	k = t.ClampKWithCeiling(k, ceiling)
	return t.search(ctx, query, k, filters)
}

func (t *CorpusSearchTool) search(ctx context.Context, query string, k int, filters entity.SearchFilters) ([]entity.Fragment, error) {
	vector, err := t.embedder.Embed(ctx, query, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", llm.ErrRetrievalFault, err)
	}

	fetchDepth := 2 * k

	scored, err := t.repo.SearchSimilarWithScore(ctx, vector, fetchDepth, t.cfg.SimilarityThreshold, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic arm: %v", llm.ErrRetrievalFault, err)
	}
	semantic := make([]entity.Fragment, len(scored))
	for i, s := range scored {
		semantic[i] = *s.Fragment
	}

	lexFrags, err := t.repo.SearchLexical(ctx, query, fetchDepth, filters)
	if err != nil {
		// The lexical arm is an enhancement; losing it degrades to
		// semantic-only rather than failing the search.
		t.log.Warn("search", "lexical arm failed, using semantic only", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		lexFrags = nil
	}
	lexical := make([]entity.Fragment, len(lexFrags))
	for i, f := range lexFrags {
		lexical[i] = *f
	}

	fused := t.fuser.Fuse(semantic, lexical, k)

	t.log.Debug("search", "hybrid search completed", map[string]interface{}{
		"query":    query,
		"k":        k,
		"semantic": len(semantic),
		"lexical":  len(lexical),
		"returned": len(fused),
	})

	return fused, nil
}
