package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"batch-predict/internal/core/types"
)

var ErrNotAnObject = errors.New("document is not a JSON object")

// DecodeRecord parses one input document. It returns the record and its keys
// in document order, which become the column order of the frame.
func DecodeRecord(data []byte) (types.Record, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("empty document")
		}
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrNotAnObject
	}

	record := types.Record{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, dup := record[key]; !dup {
			keys = append(keys, key)
		}
		record[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, fmt.Errorf("extra data after document")
	}

	return record, keys, nil
}
