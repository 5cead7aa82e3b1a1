package contract

import (
	"context"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredFragment pairs a fragment with its cosine similarity to a query.
type ScoredFragment struct {
	Fragment   *entity.Fragment
	Similarity float64
}

// SourceCount reports how many fragments a source file contributed.
type SourceCount struct {
	SourceFile string
	Count      int64
}

type FragmentRepository interface {
	CreateBulk(ctx context.Context, fragments []*entity.Fragment, embeddings [][]float32) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Fragment, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Fragment, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// SearchSimilarWithScore runs the semantic arm: cosine similarity over
	// pgvector, highest first, filtered by threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, filters entity.SearchFilters) ([]*ScoredFragment, error)

	// SearchLexical runs the lexical arm: case-insensitive containment
	// over fragment content, ordered by source file and chunk order.
	SearchLexical(ctx context.Context, query string, limit int, filters entity.SearchFilters) ([]*entity.Fragment, error)

	// CountBySource groups fragment counts per source file for one persona.
	CountBySource(ctx context.Context, persona string) ([]SourceCount, error)
}
