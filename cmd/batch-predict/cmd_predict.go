package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"batch-predict/cmd"
	"batch-predict/internal/core"
	"batch-predict/internal/metrics"

	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score all input records with the newest model (default)",
	RunE:  runPredict,
}

func runPredict(c *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting batch prediction", "project_path", cfg.ProjectPath, "storage", cfg.StorageBackend, "models_dir", cfg.ModelsDir, "inputs_dir", cfg.InputsDir)

	provider, bucket, err := cmd.CreateStorage(ctx, cfg)
	if err != nil {
		return err
	}

	db, err := cmd.CreateLedger(cfg)
	if err != nil {
		return err
	}
	defer cmd.CloseLedger(db)

	publisher, err := cmd.CreatePublisher(cfg)
	if err != nil {
		slog.Error("predictions ready notifications disabled", "error", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	runMetrics, err := metrics.NewRunMetrics()
	if err != nil {
		return err
	}

	defer func() {
		if err := core.DestroyOnnxRuntime(); err != nil {
			slog.Warn("error destroying onnx env", "error", err)
		}
	}()

	predictor := core.NewBatchPredictor(provider, cmd.PredictorSettings(cfg, bucket), cmd.ModelLoaders(cfg), db, publisher, runMetrics)

	result, runErr := predictor.Predict(ctx)

	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd.PushMetrics(pushCtx, cfg, runMetrics)

	if runErr != nil {
		return runErr
	}

	if result.OutputKey != "" {
		fmt.Fprintln(c.OutOrStdout(), result.OutputKey)
	}
	return nil
}
