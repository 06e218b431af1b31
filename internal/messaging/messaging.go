package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	PredictionsReadyQueue = "predictions_ready"
	RetryDelay            = 5 * time.Second
	MaxConnectRetry       = 5
)

// PredictionsReadyPayload announces a finished prediction file.
type PredictionsReadyPayload struct {
	RunId         uuid.UUID `json:"run_id"`
	ModelArtifact string    `json:"model_artifact"`
	Bucket        string    `json:"bucket,omitempty"`
	OutputKey     string    `json:"output_key"`
	RowCount      int       `json:"row_count"`
	SkippedFiles  int       `json:"skipped_files"`
	CreatedAt     time.Time `json:"created_at"`
}

type Publisher interface {
	PublishPredictionsReady(ctx context.Context, payload PredictionsReadyPayload) error

	Close()
}
