package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunRunning   string = "RUNNING"
	RunCompleted string = "COMPLETED"
	RunSkipped   string = "SKIPPED"
	RunFailed    string = "FAILED"
)

type PredictionRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ModelArtifact string
	ModelFormat   string `gorm:"size:20"`
	Status        string `gorm:"size:20;not null"`

	InputFileCount   int `gorm:"default:0"`
	SkippedFileCount int `gorm:"default:0"`
	RowCount         int `gorm:"default:0"`

	OutputKey sql.NullString
	Columns   datatypes.JSON
	Error     sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime

	SkippedFiles []SkippedFile `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type SkippedFile struct {
	RunId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileName string    `gorm:"primaryKey"`
	Reason   string
}
