package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is one parsed input document. Values keep the shape produced by
// a json.Decoder with UseNumber: json.Number, string, bool, nil, []any and
// map[string]any.
type Record map[string]any

// Frame is an ordered table of records. Columns hold the union of record keys
// in order of first appearance.
type Frame struct {
	Columns []string
	Rows    []Record
}

func NewFrame() *Frame {
	return &Frame{}
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Append adds a record as a new row. keyOrder is the key order of the source
// document; keys not seen in earlier rows are appended to Columns in that order.
func (f *Frame) Append(record Record, keyOrder []string) {
	seen := make(map[string]struct{}, len(f.Columns))
	for _, c := range f.Columns {
		seen[c] = struct{}{}
	}

	for _, key := range keyOrder {
		if _, ok := seen[key]; ok {
			continue
		}
		if _, ok := record[key]; !ok {
			continue
		}
		seen[key] = struct{}{}
		f.Columns = append(f.Columns, key)
	}

	f.Rows = append(f.Rows, record)
}

func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// SetColumn sets a column value for every row. An existing column keeps its
// position; a new column is appended after the existing ones.
func (f *Frame) SetColumn(name string, values []any) {
	if !f.HasColumn(name) {
		f.Columns = append(f.Columns, name)
	}
	for i, row := range f.Rows {
		row[name] = values[i]
	}
}

// Float coerces a cell to a finite float64. JSON numbers, numeric strings and
// booleans convert; anything else, including NaN and infinities, reports false.
func Float(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String renders a cell the way it is written into the output table.
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// formatFloat writes the shortest representation, switching to exponent form
// below 1e-4 and from 1e16 up. NaN is an empty cell.
func formatFloat(x float64, bitSize int) string {
	switch {
	case math.IsNaN(x):
		return ""
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	abs := math.Abs(x)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(x, 'g', -1, bitSize)
	}
	return strconv.FormatFloat(x, 'f', -1, bitSize)
}
