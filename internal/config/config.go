package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	// Filesystem root for local storage, key prefix inside S3_BUCKET for s3.
	ProjectPath string `env:"PROJECT_PATH" envDefault:"."`

	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"local"`
	Bucket            string `env:"S3_BUCKET"`
	CreateBucket      bool   `env:"S3_CREATE_BUCKET" envDefault:"false"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	ModelsDir      string `env:"MODELS_DIR" envDefault:"data/models"`
	InputsDir      string `env:"TEST_DATA_DIR" envDefault:"data/test"`
	PredictionsDir string `env:"PREDICTIONS_DIR" envDefault:"data/predictions"`

	ModelSuffix      string `env:"MODEL_SUFFIX" envDefault:".model"`
	InputSuffix      string `env:"INPUT_SUFFIX" envDefault:".json"`
	OutputPrefix     string `env:"OUTPUT_PREFIX" envDefault:"predictions_"`
	PredictionColumn string `env:"PREDICTION_COLUMN" envDefault:"prediction"`

	LoaderWorkers int  `env:"LOADER_WORKERS" envDefault:"4"`
	ShowProgress  bool `env:"SHOW_PROGRESS" envDefault:"false"`

	RecordRuns  bool   `env:"RECORD_RUNS" envDefault:"true"`
	DatabaseURL string `env:"DATABASE_URL"`

	RabbitMQURL string `env:"RABBITMQ_URL"`
	NotifyQueue string `env:"NOTIFY_QUEUE" envDefault:"predictions_ready"`

	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
	MetricsJob     string `env:"METRICS_JOB" envDefault:"batch_predict"`

	OnnxRuntimeDylib string   `env:"ONNX_RUNTIME_DYLIB"`
	OnnxInputName    string   `env:"ONNX_INPUT_NAME" envDefault:"input"`
	OnnxOutputName   string   `env:"ONNX_OUTPUT_NAME" envDefault:"variable"`
	OnnxFeatures     []string `env:"ONNX_FEATURES" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// LoadEnvFile loads a dotenv file into the process environment. An empty path
// is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	slog.Info("loading env file", "path", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set when STORAGE_BACKEND is %q", StorageS3)
		}
		if c.S3EndpointURL != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
			slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q: must be %q or %q", c.StorageBackend, StorageLocal, StorageS3)
	}

	if c.ModelSuffix == "" {
		return fmt.Errorf("MODEL_SUFFIX must not be empty")
	}
	if c.PredictionColumn == "" {
		return fmt.Errorf("PREDICTION_COLUMN must not be empty")
	}
	if c.LoaderWorkers < 1 {
		slog.Warn("invalid LOADER_WORKERS, using 1", "value", c.LoaderWorkers)
		c.LoaderWorkers = 1
	}
	return nil
}

// LedgerDSN returns the database URL for the run ledger, defaulting to a
// sqlite file inside the project directory.
func (c *Config) LedgerDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.ProjectPath, "data", "runs.db")
}

func (c *Config) UsesPostgres() bool {
	dsn := c.LedgerDSN()
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
