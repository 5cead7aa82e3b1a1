package mapper

import (
	"time"

	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/model"

	"gorm.io/datatypes"
)

type FragmentMapper struct{}

func NewFragmentMapper() *FragmentMapper {
	return &FragmentMapper{}
}

func (m *FragmentMapper) ToEntity(f *model.Fragment) *entity.Fragment {
	if f == nil {
		return nil
	}

	var updatedAt *time.Time
	if !f.UpdatedAt.IsZero() {
		t := f.UpdatedAt
		updatedAt = &t
	}

	return &entity.Fragment{
		Id:         f.Id,
		Persona:    f.Persona,
		Content:    f.Content,
		SourceType: entity.SourceType(f.SourceType),
		SourceFile: f.SourceFile,
		ChunkIndex: f.ChunkIndex,
		Metadata:   map[string]interface{}(f.Metadata),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func (m *FragmentMapper) ToModel(f *entity.Fragment) *model.Fragment {
	if f == nil {
		return nil
	}

	var updatedAt time.Time
	if f.UpdatedAt != nil {
		updatedAt = *f.UpdatedAt
	}

	return &model.Fragment{
		Id:         f.Id,
		Persona:    f.Persona,
		Content:    f.Content,
		SourceType: string(f.SourceType),
		SourceFile: f.SourceFile,
		ChunkIndex: f.ChunkIndex,
		Metadata:   datatypes.JSONMap(f.Metadata),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  updatedAt,
	}
}

func (m *FragmentMapper) ToEntities(fragments []*model.Fragment) []*entity.Fragment {
	entities := make([]*entity.Fragment, len(fragments))
	for i, f := range fragments {
		entities[i] = m.ToEntity(f)
	}
	return entities
}
