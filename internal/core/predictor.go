package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"batch-predict/internal/core/types"
	"batch-predict/internal/core/utils"
	"batch-predict/internal/database"
	"batch-predict/internal/messaging"
	"batch-predict/internal/metrics"
	"batch-predict/internal/storage"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gorm.io/gorm"
)

// Settings describes where a run finds its inputs and how it names its output.
type Settings struct {
	Bucket         string
	ModelsDir      string
	InputsDir      string
	PredictionsDir string

	ModelSuffix      string
	InputSuffix      string
	OutputPrefix     string
	PredictionColumn string

	LoaderWorkers int
	ShowProgress  bool
}

// BatchPredictor selects the newest model artifact, scores every input record
// with it and writes the scored table. The run ledger, publisher and metrics
// are optional and may be nil.
type BatchPredictor struct {
	storage      storage.Provider
	settings     Settings
	modelLoaders map[ModelFormat]ModelLoader

	db        *gorm.DB
	publisher messaging.Publisher
	metrics   *metrics.RunMetrics

	now func() time.Time
}

func NewBatchPredictor(storage storage.Provider, settings Settings, modelLoaders map[ModelFormat]ModelLoader, db *gorm.DB, publisher messaging.Publisher, metrics *metrics.RunMetrics) *BatchPredictor {
	if settings.LoaderWorkers < 1 {
		settings.LoaderWorkers = 1
	}
	return &BatchPredictor{
		storage:      storage,
		settings:     settings,
		modelLoaders: modelLoaders,
		db:           db,
		publisher:    publisher,
		metrics:      metrics,
		now:          time.Now,
	}
}

// LoadReport summarises the input files seen by LoadRecords.
type LoadReport struct {
	Files   []string
	Loaded  int
	Skipped map[string]string
}

type RunResult struct {
	RunId         uuid.UUID
	ModelArtifact string
	ModelFormat   ModelFormat
	Status        string
	Load          LoadReport
	Rows          int
	Columns       []string
	OutputKey     string
}

func (p *BatchPredictor) SelectBestModel(ctx context.Context) (string, error) {
	objs, err := p.storage.ListObjects(ctx, p.settings.Bucket, p.settings.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("error listing model artifacts: %w", err)
	}

	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		names = append(names, obj.Name)
	}

	best, err := SelectBestArtifact(names, p.settings.ModelSuffix)
	if err != nil {
		return "", fmt.Errorf("%w in %s", err, p.settings.ModelsDir)
	}
	return best, nil
}

// LoadBestModel selects the newest artifact and deserializes it with the
// loader registered for its format.
func (p *BatchPredictor) LoadBestModel(ctx context.Context) (Model, string, ModelFormat, error) {
	key, err := p.SelectBestModel(ctx)
	if err != nil {
		return nil, "", "", err
	}

	data, err := p.storage.GetObject(ctx, p.settings.Bucket, key)
	if err != nil {
		return nil, key, "", fmt.Errorf("error reading model artifact: %w", err)
	}

	model, format, err := loadModel(p.modelLoaders, key, data)
	if err != nil {
		return nil, key, format, err
	}

	slog.Info("loaded model", "artifact", key, "format", format)
	return model, key, format, nil
}

type loadedRecord struct {
	record types.Record
	keys   []string
}

// LoadRecords parses every input file into one row each. Files that cannot be
// read or parsed are logged and skipped. An empty frame is not an error.
func (p *BatchPredictor) LoadRecords(ctx context.Context) (*types.Frame, LoadReport, error) {
	report := LoadReport{Skipped: map[string]string{}}

	for obj, err := range p.storage.IterObjects(ctx, p.settings.Bucket, p.settings.InputsDir) {
		if err != nil {
			return nil, report, fmt.Errorf("error listing input files: %w", err)
		}
		if strings.HasSuffix(obj.BaseName(), p.settings.InputSuffix) {
			report.Files = append(report.Files, obj.Name)
		}
	}
	sort.Strings(report.Files)

	frame := types.NewFrame()
	if len(report.Files) == 0 {
		slog.Warn("no input files found", "dir", p.settings.InputsDir)
		return frame, report, nil
	}

	var bar *progressbar.ProgressBar
	if p.settings.ShowProgress {
		bar = progressbar.NewOptions(len(report.Files),
			progressbar.OptionSetDescription("loading records"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := utils.RunInPool(ctx, report.Files, func(ctx context.Context, key string) (loadedRecord, error) {
		data, err := p.storage.GetObject(ctx, p.settings.Bucket, key)
		if err != nil {
			return loadedRecord{}, err
		}
		record, keys, err := DecodeRecord(data)
		if err != nil {
			return loadedRecord{}, err
		}
		return loadedRecord{record: record, keys: keys}, nil
	}, p.settings.LoaderWorkers, func(utils.CompletedTask[loadedRecord]) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	for i, res := range results {
		key := report.Files[i]
		if res.Error != nil {
			slog.Error("error loading input file, skipping", "file", key, "error", res.Error)
			report.Skipped[key] = res.Error.Error()
			continue
		}
		frame.Append(res.Result.record, res.Result.keys)
		report.Loaded++
	}

	slog.Info("loaded input records", "files", len(report.Files), "rows", frame.Len(), "skipped", len(report.Skipped))
	return frame, report, nil
}

// Predict performs one full run. A run without usable input records writes
// nothing and returns a result with status SKIPPED.
func (p *BatchPredictor) Predict(ctx context.Context) (*RunResult, error) {
	start := p.now()
	result := &RunResult{}

	model, key, format, err := p.LoadBestModel(ctx)
	if err != nil {
		p.observe(result, database.RunFailed, start)
		return nil, err
	}
	defer model.Release()

	result.ModelArtifact = key
	result.ModelFormat = format
	p.startRun(ctx, result)

	err = p.predict(ctx, model, result)
	if err != nil {
		result.Status = database.RunFailed
	}
	p.finishRun(ctx, result, err)
	p.observe(result, result.Status, start)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *BatchPredictor) predict(ctx context.Context, model Model, result *RunResult) error {
	frame, report, err := p.LoadRecords(ctx)
	result.Load = report
	if err != nil {
		return err
	}

	if frame.Empty() {
		slog.Warn("no input records available, predictions are not made")
		result.Status = database.RunSkipped
		return nil
	}

	preds, err := model.Predict(ctx, frame)
	if err != nil {
		return fmt.Errorf("error running model prediction: %w", err)
	}
	if len(preds) != frame.Len() {
		return fmt.Errorf("model returned %d predictions for %d rows", len(preds), frame.Len())
	}
	frame.SetColumn(p.settings.PredictionColumn, preds)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, frame); err != nil {
		return fmt.Errorf("error encoding predictions: %w", err)
	}

	outputKey := storage.Key(p.settings.PredictionsDir, PredictionsFileName(p.settings.OutputPrefix, p.now()))
	if err := p.storage.PutObject(ctx, p.settings.Bucket, outputKey, &buf); err != nil {
		return fmt.Errorf("error saving predictions: %w", err)
	}

	result.Status = database.RunCompleted
	result.Rows = frame.Len()
	result.Columns = frame.Columns
	result.OutputKey = outputKey

	slog.Info("predictions saved", "output", outputKey, "rows", result.Rows)
	return nil
}

func (p *BatchPredictor) startRun(ctx context.Context, result *RunResult) {
	if p.db == nil {
		return
	}
	run, err := database.CreateRun(ctx, p.db, result.ModelArtifact, string(result.ModelFormat))
	if err != nil {
		slog.Error("run will not be recorded", "error", err)
		return
	}
	result.RunId = run.Id
}

func (p *BatchPredictor) finishRun(ctx context.Context, result *RunResult, runErr error) {
	if p.db != nil && result.RunId != uuid.Nil {
		err := database.FinishRun(ctx, p.db, result.RunId, database.RunOutcome{
			Status:         result.Status,
			InputFileCount: len(result.Load.Files),
			SkippedFiles:   result.Load.Skipped,
			RowCount:       result.Rows,
			OutputKey:      result.OutputKey,
			Columns:        result.Columns,
			Err:            runErr,
		})
		if err != nil {
			slog.Error("error recording run", "run_id", result.RunId, "error", err)
		}
	}

	if p.publisher != nil && result.Status == database.RunCompleted {
		err := p.publisher.PublishPredictionsReady(ctx, messaging.PredictionsReadyPayload{
			RunId:         result.RunId,
			ModelArtifact: result.ModelArtifact,
			Bucket:        p.settings.Bucket,
			OutputKey:     result.OutputKey,
			RowCount:      result.Rows,
			SkippedFiles:  len(result.Load.Skipped),
			CreatedAt:     p.now().UTC(),
		})
		if err != nil {
			slog.Error("error publishing predictions ready notification", "output", result.OutputKey, "error", err)
		}
	}
}

func (p *BatchPredictor) observe(result *RunResult, status string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.FilesLoaded.Add(float64(result.Load.Loaded))
	p.metrics.FilesSkipped.Add(float64(len(result.Load.Skipped)))
	p.metrics.RowsPredicted.Add(float64(result.Rows))
	finished := p.now()
	p.metrics.ObserveRun(status, finished.Sub(start), finished)
}
