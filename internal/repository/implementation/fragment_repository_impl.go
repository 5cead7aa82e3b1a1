package implementation

import (
	"context"
	"errors"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/mapper"
	"persona-rag-be/internal/model"
	"persona-rag-be/internal/repository/contract"
	"persona-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type FragmentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.FragmentMapper
}

func NewFragmentRepository(db *gorm.DB) contract.FragmentRepository {
	return &FragmentRepositoryImpl{
		db:     db,
		mapper: mapper.NewFragmentMapper(),
	}
}

func (r *FragmentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *FragmentRepositoryImpl) applyFilters(db *gorm.DB, filters entity.SearchFilters) *gorm.DB {
	if filters.Persona != "" {
		db = db.Where("persona = ?", filters.Persona)
	}
	if len(filters.SourceTypes) > 0 {
		types := make([]string, len(filters.SourceTypes))
		for i, t := range filters.SourceTypes {
			types[i] = string(t)
		}
		db = db.Where("source_type IN ?", types)
	}
	if filters.SourceFile != "" {
		db = db.Where("source_file = ?", filters.SourceFile)
	}
	if !filters.TimeRange.Start.IsZero() {
		db = db.Where("created_at >= ?", filters.TimeRange.Start)
	}
	if !filters.TimeRange.End.IsZero() {
		db = db.Where("created_at <= ?", filters.TimeRange.End)
	}
	return db
}

func (r *FragmentRepositoryImpl) CreateBulk(ctx context.Context, fragments []*entity.Fragment, embeddings [][]float32) error {
	if len(fragments) != len(embeddings) {
		return errors.New("fragments and embeddings length mismatch")
	}
	models := make([]*model.Fragment, len(fragments))
	for i, f := range fragments {
		m := r.mapper.ToModel(f)
		m.EmbeddingValue = pgvector.NewVector(embeddings[i])
		models[i] = m
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*fragments[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *FragmentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Fragment{}, id).Error
}

func (r *FragmentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Fragment, error) {
	var m model.Fragment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *FragmentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Fragment, error) {
	var models []*model.Fragment
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *FragmentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Fragment{}).Count(&count).Error
	return count, err
}

// SearchSimilarWithScore returns fragments with similarity scores, filtered by threshold.
func (r *FragmentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, filters entity.SearchFilters) ([]*contract.ScoredFragment, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query_vector) recovers the similarity.
	type result struct {
		model.Fragment
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("fragments").
		Select("fragments.*, 1 - (embedding_value <=> ?) as similarity", queryVector)
	query = r.applyFilters(query, filters)

	err := query.
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredFragment, len(results))
	for i, res := range results {
		e := r.mapper.ToEntity(&res.Fragment)
		e.Similarity = res.Similarity
		scored[i] = &contract.ScoredFragment{
			Fragment:   e,
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *FragmentRepositoryImpl) SearchLexical(ctx context.Context, term string, limit int, filters entity.SearchFilters) ([]*entity.Fragment, error) {
	if limit <= 0 {
		limit = 5
	}
	var models []*model.Fragment

	query := r.applyFilters(r.db.WithContext(ctx), filters)
	err := query.
		Where("content ILIKE ?", "%"+term+"%").
		Order("source_file ASC, chunk_index ASC").
		Limit(limit).
		Find(&models).Error

	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *FragmentRepositoryImpl) CountBySource(ctx context.Context, persona string) ([]contract.SourceCount, error) {
	var counts []contract.SourceCount
	err := r.db.WithContext(ctx).
		Model(&model.Fragment{}).
		Select("source_file, count(*) as count").
		Where("persona = ?", persona).
		Group("source_file").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
