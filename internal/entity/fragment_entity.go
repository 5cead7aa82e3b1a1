package entity

import (
	"time"

	"github.com/google/uuid"
)

// SourceType classifies where a corpus fragment was chunked from.
type SourceType string

const (
	SourceEssay    SourceType = "essay"
	SourceBook     SourceType = "book"
	SourceDialogue SourceType = "dialogue"
	SourceNote     SourceType = "note"
)

// Fragment is one retrievable chunk of the persona corpus.
type Fragment struct {
	Id         uuid.UUID
	Persona    string
	Content    string
	SourceType SourceType
	SourceFile string
	ChunkIndex int
	Metadata   map[string]interface{}
	// Similarity is populated by searches: raw cosine similarity for
	// semantic-only results, fused score after rank fusion.
	Similarity float64
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// TimeRange bounds a search to fragments created within it. A zero
// bound leaves that side open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// SearchFilters narrows corpus searches.
type SearchFilters struct {
	Persona     string
	SourceTypes []SourceType
	SourceFile  string
	TimeRange   TimeRange
}
