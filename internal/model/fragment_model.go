package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Fragment struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Persona        string            `gorm:"type:varchar(64);not null;index"`
	Content        string            `gorm:"type:text"`
	SourceType     string            `gorm:"type:varchar(32);index"`
	SourceFile     string            `gorm:"type:varchar(512);index"`
	ChunkIndex     int               `gorm:"default:0"` // 0-based index for ordering
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	EmbeddingValue pgvector.Vector   `gorm:"type:vector(768)"`
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime"`
}

func (Fragment) TableName() string {
	return "fragments"
}
