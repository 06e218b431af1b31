package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"batch-predict/cmd"
	"batch-predict/internal/database"

	"github.com/spf13/cobra"
)

var runsFlags struct {
	limit int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded prediction runs, newest first",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "maximum number of runs to show")
}

func runRuns(c *cobra.Command, _ []string) error {
	if !cfg.RecordRuns {
		return fmt.Errorf("run ledger is disabled, set RECORD_RUNS=true")
	}

	db, err := cmd.CreateLedger(cfg)
	if err != nil {
		return err
	}
	defer cmd.CloseLedger(db)

	runs, err := database.ListRuns(c.Context(), db, runsFlags.limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tMODEL\tFILES\tSKIPPED\tROWS\tOUTPUT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.Id,
			run.CreationTime.Local().Format(time.DateTime),
			run.Status,
			run.ModelArtifact,
			run.InputFileCount,
			run.SkippedFileCount,
			run.RowCount,
			run.OutputKey.String,
		)
	}
	return w.Flush()
}
