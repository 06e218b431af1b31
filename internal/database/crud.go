package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func CreateRun(ctx context.Context, db *gorm.DB, modelArtifact, modelFormat string) (*PredictionRun, error) {
	run := &PredictionRun{
		Id:            uuid.New(),
		ModelArtifact: modelArtifact,
		ModelFormat:   modelFormat,
		Status:        RunRunning,
		CreationTime:  time.Now().UTC(),
	}

	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		slog.Error("error creating prediction run", "model", modelArtifact, "error", err)
		return nil, fmt.Errorf("error creating prediction run: %w", err)
	}
	return run, nil
}

type RunOutcome struct {
	Status         string
	InputFileCount int
	SkippedFiles   map[string]string
	RowCount       int
	OutputKey      string
	Columns        []string
	Err            error
}

// FinishRun records the final state of a run together with the input files
// that were rejected while loading.
func FinishRun(ctx context.Context, db *gorm.DB, runId uuid.UUID, outcome RunOutcome) error {
	updates := map[string]any{
		"status":             outcome.Status,
		"input_file_count":   outcome.InputFileCount,
		"skipped_file_count": len(outcome.SkippedFiles),
		"row_count":          outcome.RowCount,
		"completion_time":    time.Now().UTC(),
	}
	if outcome.OutputKey != "" {
		updates["output_key"] = sql.NullString{String: outcome.OutputKey, Valid: true}
	}
	if outcome.Columns != nil {
		columns, err := json.Marshal(outcome.Columns)
		if err != nil {
			return fmt.Errorf("error encoding run columns: %w", err)
		}
		updates["columns"] = datatypes.JSON(columns)
	}
	if outcome.Err != nil {
		updates["error"] = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}

	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Model(&PredictionRun{Id: runId}).Updates(updates).Error; err != nil {
			slog.Error("error updating prediction run", "run_id", runId, "status", outcome.Status, "error", err)
			return fmt.Errorf("error updating prediction run: %w", err)
		}

		if len(outcome.SkippedFiles) == 0 {
			return nil
		}

		skipped := make([]SkippedFile, 0, len(outcome.SkippedFiles))
		for name, reason := range outcome.SkippedFiles {
			skipped = append(skipped, SkippedFile{RunId: runId, FileName: name, Reason: reason})
		}
		if err := txn.CreateInBatches(skipped, 100).Error; err != nil {
			return fmt.Errorf("error saving skipped files: %w", err)
		}
		return nil
	})
}

func GetRun(ctx context.Context, db *gorm.DB, runId uuid.UUID) (*PredictionRun, error) {
	var run PredictionRun
	if err := db.WithContext(ctx).Preload("SkippedFiles").First(&run, "id = ?", runId).Error; err != nil {
		return nil, fmt.Errorf("error getting prediction run %s: %w", runId, err)
	}
	return &run, nil
}

func ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]PredictionRun, error) {
	var runs []PredictionRun
	query := db.WithContext(ctx).Order("creation_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing prediction runs: %w", err)
	}
	return runs, nil
}
