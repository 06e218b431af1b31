package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"batch-predict/internal/core"
	"batch-predict/internal/database"
	"batch-predict/internal/messaging"
	"batch-predict/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceArtifact = `
name: price_band
version: "2024-02-01"
features:
  - column: odometer
    type: numeric
    impute: 50000
    mean: 50000
    scale: 25000
  - column: fuel
    type: categorical
    categories: [diesel, gas]
estimator:
  type: logistic
  classes: [cheap, expensive]
  coefficients: [[-2, 0.5, 0]]
  intercepts: [0]
`

func TestPredictWorkflow(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)

	db, err := database.NewDatabase(setupPostgresContainer(t, ctx))
	require.NoError(t, err)

	amqpURL := setupRabbitMQContainer(t, ctx)
	publisher, err := messaging.NewRabbitMQPublisher(amqpURL, "")
	require.NoError(t, err)
	defer publisher.Close()
	deliveries := consumeQueue(t, amqpURL, messaging.PredictionsReadyQueue)

	runMetrics, err := metrics.NewRunMetrics()
	require.NoError(t, err)

	putObjects(t, ctx, provider, map[string]string{
		"project/data/models/price_20240101.model": "features: [",
		"project/data/models/price_20240201.model": priceArtifact,
		"project/data/test/car_1.json":             `{"id": 1, "odometer": 10000, "fuel": "diesel"}`,
		"project/data/test/car_2.json":             `{"id": 2, "odometer": 150000, "fuel": "gas"}`,
		"project/data/test/car_3.json":             `{"id": 3, "odometer": `,
	})

	settings := core.Settings{
		Bucket:           bucketName,
		ModelsDir:        "project/data/models",
		InputsDir:        "project/data/test",
		PredictionsDir:   "project/data/predictions",
		ModelSuffix:      ".model",
		InputSuffix:      ".json",
		OutputPrefix:     "predictions_",
		PredictionColumn: "prediction",
		LoaderWorkers:    2,
	}
	predictor := core.NewBatchPredictor(provider, settings, core.NewModelLoaders(core.ModelLoaderOptions{}), db, publisher, runMetrics)

	result, err := predictor.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.RunCompleted, result.Status)
	assert.Equal(t, "project/data/models/price_20240201.model", result.ModelArtifact)
	assert.Regexp(t, `^project/data/predictions/predictions_\d{12}\.csv$`, result.OutputKey)

	data, err := provider.GetObject(ctx, bucketName, result.OutputKey)
	require.NoError(t, err)
	assert.Equal(t, "id,odometer,fuel,prediction\n1,10000,diesel,expensive\n2,150000,gas,cheap\n", string(data))

	run, err := database.GetRun(ctx, db, result.RunId)
	require.NoError(t, err)
	assert.Equal(t, database.RunCompleted, run.Status)
	assert.Equal(t, 3, run.InputFileCount)
	require.Len(t, run.SkippedFiles, 1)
	assert.Equal(t, "project/data/test/car_3.json", run.SkippedFiles[0].FileName)

	select {
	case d := <-deliveries:
		var payload messaging.PredictionsReadyPayload
		require.NoError(t, json.Unmarshal(d.Body, &payload))
		assert.Equal(t, result.RunId, payload.RunId)
		assert.Equal(t, bucketName, payload.Bucket)
		assert.Equal(t, result.OutputKey, payload.OutputKey)
		assert.Equal(t, 2, payload.RowCount)
		require.NoError(t, d.Ack(false))
	case <-time.After(4 * time.Second):
		t.Fatal("Timed out waiting for predictions ready message")
	}
}

func TestPredictWorkflowWithoutInputs(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	provider := setupS3Provider(t, ctx)
	putObjects(t, ctx, provider, map[string]string{
		"data/models/price_20240201.model": priceArtifact,
	})

	settings := core.Settings{
		Bucket:           bucketName,
		ModelsDir:        "data/models",
		InputsDir:        "data/test",
		PredictionsDir:   "data/predictions",
		ModelSuffix:      ".model",
		InputSuffix:      ".json",
		OutputPrefix:     "predictions_",
		PredictionColumn: "prediction",
	}
	predictor := core.NewBatchPredictor(provider, settings, core.NewModelLoaders(core.ModelLoaderOptions{}), nil, nil, nil)

	result, err := predictor.Predict(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.RunSkipped, result.Status)

	objs, err := provider.ListObjects(ctx, bucketName, "data/predictions")
	require.NoError(t, err)
	assert.Empty(t, objs)
}
