// batch-predict scores every input record in a project with the newest model
// artifact and writes the results as a timestamped CSV.
//
// Usage:
//
//	batch-predict [predict] [--env <file>]
//	batch-predict best-model
//	batch-predict runs [--limit N]
package main

import (
	"fmt"
	"os"

	"batch-predict/cmd"
	"batch-predict/internal/config"

	"github.com/spf13/cobra"
)

var (
	envFile  string
	cfg      *config.Config
	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "batch-predict",
	Short: "Run batch predictions with the newest model artifact",
	Long: "batch-predict picks the newest model artifact under the models directory,\n" +
		"scores every JSON record under the input directory and writes the results\n" +
		"to a predictions CSV.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { closeLog() },
	RunE:              runPredict,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(bestModelCmd)
	rootCmd.AddCommand(runsCmd)
}

func setup(*cobra.Command, []string) error {
	var err error
	cfg, err = cmd.LoadConfig(envFile)
	if err != nil {
		return err
	}
	closeLog, err = cmd.SetupLogging(cfg)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
