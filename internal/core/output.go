package core

import (
	"encoding/csv"
	"io"
	"time"

	"batch-predict/internal/core/types"
)

const timestampLayout = "200601021504"

// PredictionsFileName names an output file after the minute it was written.
func PredictionsFileName(prefix string, t time.Time) string {
	return prefix + t.Format(timestampLayout) + ".csv"
}

// WriteCSV writes the frame with a header row and no index column.
func WriteCSV(w io.Writer, frame *types.Frame) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(frame.Columns); err != nil {
		return err
	}

	record := make([]string, len(frame.Columns))
	for _, row := range frame.Rows {
		for i, col := range frame.Columns {
			record[i] = types.String(row[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
