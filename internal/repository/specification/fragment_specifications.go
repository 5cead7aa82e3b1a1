package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type ByIDs struct {
	IDs []uuid.UUID
}

func (s ByIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN ?", s.IDs)
}

type ByPersona struct {
	Persona string
}

func (s ByPersona) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("persona = ?", s.Persona)
}

type BySourceTypes struct {
	SourceTypes []string
}

func (s BySourceTypes) Apply(db *gorm.DB) *gorm.DB {
	if len(s.SourceTypes) == 0 {
		return db
	}
	return db.Where("source_type IN ?", s.SourceTypes)
}

type BySourceFile struct {
	SourceFile string
}

func (s BySourceFile) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_file = ?", s.SourceFile)
}

type ContentContains struct {
	Term string
}

func (s ContentContains) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("content ILIKE ?", "%"+s.Term+"%")
}
