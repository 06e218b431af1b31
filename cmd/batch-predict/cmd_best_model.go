package main

import (
	"fmt"

	"batch-predict/cmd"
	"batch-predict/internal/core"

	"github.com/spf13/cobra"
)

var bestModelCmd = &cobra.Command{
	Use:   "best-model",
	Short: "Print the model artifact a prediction run would use",
	RunE:  runBestModel,
}

func runBestModel(c *cobra.Command, _ []string) error {
	provider, bucket, err := cmd.CreateStorage(c.Context(), cfg)
	if err != nil {
		return err
	}

	predictor := core.NewBatchPredictor(provider, cmd.PredictorSettings(cfg, bucket), cmd.ModelLoaders(cfg), nil, nil, nil)

	key, err := predictor.SelectBestModel(c.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), key)
	return nil
}
