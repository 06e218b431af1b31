package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.ProjectPath)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.Equal(t, "data/models", cfg.ModelsDir)
	assert.Equal(t, "data/test", cfg.InputsDir)
	assert.Equal(t, "data/predictions", cfg.PredictionsDir)
	assert.Equal(t, ".model", cfg.ModelSuffix)
	assert.Equal(t, ".json", cfg.InputSuffix)
	assert.Equal(t, "predictions_", cfg.OutputPrefix)
	assert.Equal(t, "prediction", cfg.PredictionColumn)
	assert.True(t, cfg.RecordRuns)
	assert.Equal(t, filepath.Join(".", "data", "runs.db"), cfg.LedgerDSN())
	assert.False(t, cfg.UsesPostgres())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PROJECT_PATH", "/srv/project")
	t.Setenv("MODEL_SUFFIX", ".onnx")
	t.Setenv("ONNX_FEATURES", "year,odometer")
	t.Setenv("LOADER_WORKERS", "0")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/runs")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/srv/project", cfg.ProjectPath)
	assert.Equal(t, ".onnx", cfg.ModelSuffix)
	assert.Equal(t, []string{"year", "odometer"}, cfg.OnnxFeatures)
	assert.Equal(t, 1, cfg.LoaderWorkers)
	assert.True(t, cfg.UsesPostgres())
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("unknown storage backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "ftp")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "s3")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("s3 with bucket", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "s3")
		t.Setenv("S3_BUCKET", "ml-data")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "ml-data", cfg.Bucket)
	})
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(""))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT_PREFIX=scores_\n"), 0o644))

	t.Setenv("OUTPUT_PREFIX", "")
	require.NoError(t, os.Unsetenv("OUTPUT_PREFIX"))

	require.NoError(t, LoadEnvFile(path))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "scores_", cfg.OutputPrefix)

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
