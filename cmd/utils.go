package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"batch-predict/internal/config"
	"batch-predict/internal/core"
	"batch-predict/internal/database"
	"batch-predict/internal/messaging"
	"batch-predict/internal/metrics"
	"batch-predict/internal/storage"

	"gorm.io/gorm"
)

// LoadConfig loads the optional env file and then parses the environment.
func LoadConfig(envFile string) (*config.Config, error) {
	if envFile == "" {
		slog.Debug("no env file specified, using os.Environ only")
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.LoadConfig()
}

// SetupLogging installs the default slog logger. When LOG_FILE is set, output
// goes to both stderr and the file; the returned func closes the file.
func SetupLogging(cfg *config.Config) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), os.ModePerm); err != nil {
			return nil, fmt.Errorf("error creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		out = io.MultiWriter(f, os.Stderr)
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		closeFn()
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", cfg.LogFormat)
	}
	slog.SetDefault(slog.New(handler))

	return closeFn, nil
}

// CreateStorage returns the provider for the configured backend and the bucket
// that the project layout lives in.
func CreateStorage(ctx context.Context, cfg *config.Config) (storage.Provider, string, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		s3p, err := storage.NewS3Provider(ctx, &storage.S3ProviderConfig{
			S3EndpointURL:     cfg.S3EndpointURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3Region:          cfg.S3Region,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 provider: %w", err)
		}
		if cfg.CreateBucket {
			if err := s3p.CreateBucket(ctx, cfg.Bucket); err != nil {
				return nil, "", err
			}
		}
		return s3p, cfg.Bucket, nil
	default:
		return storage.NewLocalProvider(cfg.ProjectPath), "", nil
	}
}

// CreateLedger opens the run ledger, or returns nil when RECORD_RUNS is off.
func CreateLedger(cfg *config.Config) (*gorm.DB, error) {
	if !cfg.RecordRuns {
		return nil, nil
	}
	db, err := database.NewDatabase(cfg.LedgerDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	return db, nil
}

func CloseLedger(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Warn("error getting ledger connection", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Warn("error closing ledger", "error", err)
	}
}

// CreatePublisher connects to RabbitMQ. Without RABBITMQ_URL notifications are
// kept in an in-memory queue and only logged.
func CreatePublisher(cfg *config.Config) (messaging.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		return messaging.NewInMemoryQueue(), nil
	}
	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.NotifyQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq publisher: %w", err)
	}
	return publisher, nil
}

// PredictorSettings maps the config onto the predictor layout. The local
// provider is rooted at PROJECT_PATH; on S3, PROJECT_PATH is the key prefix of
// the project inside the bucket.
func PredictorSettings(cfg *config.Config, bucket string) core.Settings {
	dir := func(d string) string { return d }
	if cfg.StorageBackend == config.StorageS3 {
		prefix := strings.Trim(filepath.ToSlash(cfg.ProjectPath), "/")
		dir = func(d string) string { return path.Join(prefix, d) }
	}

	return core.Settings{
		Bucket:           bucket,
		ModelsDir:        dir(cfg.ModelsDir),
		InputsDir:        dir(cfg.InputsDir),
		PredictionsDir:   dir(cfg.PredictionsDir),
		ModelSuffix:      cfg.ModelSuffix,
		InputSuffix:      cfg.InputSuffix,
		OutputPrefix:     cfg.OutputPrefix,
		PredictionColumn: cfg.PredictionColumn,
		LoaderWorkers:    cfg.LoaderWorkers,
		ShowProgress:     cfg.ShowProgress,
	}
}

func ModelLoaders(cfg *config.Config) map[core.ModelFormat]core.ModelLoader {
	return core.NewModelLoaders(core.ModelLoaderOptions{
		OnnxRuntimeDylib: cfg.OnnxRuntimeDylib,
		OnnxInputName:    cfg.OnnxInputName,
		OnnxOutputName:   cfg.OnnxOutputName,
		OnnxFeatures:     cfg.OnnxFeatures,
	})
}

// PushMetrics sends run metrics to the Pushgateway if one is configured.
// Failures are logged and do not fail the run.
func PushMetrics(ctx context.Context, cfg *config.Config, m *metrics.RunMetrics) {
	if m == nil || cfg.PushgatewayURL == "" {
		return
	}
	if err := m.Push(ctx, cfg.PushgatewayURL, cfg.MetricsJob); err != nil {
		slog.Error("error pushing run metrics", "error", err)
		return
	}
	slog.Debug("pushed run metrics", "url", cfg.PushgatewayURL, "job", cfg.MetricsJob)
}
