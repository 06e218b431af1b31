package core

import (
	"encoding/json"
	"testing"

	"batch-predict/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	record, keys, err := DecodeRecord([]byte(`{"price": 12500, "model": "civic", "tags": ["a"], "meta": {"k": 1}, "sold": false, "notes": null}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"price", "model", "tags", "meta", "sold", "notes"}, keys)
	assert.Equal(t, json.Number("12500"), record["price"])
	assert.Equal(t, "civic", record["model"])
	assert.Equal(t, []any{"a"}, record["tags"])
	assert.Equal(t, map[string]any{"k": json.Number("1")}, record["meta"])
	assert.Equal(t, false, record["sold"])
	assert.Nil(t, record["notes"])
}

func TestDecodeRecordDuplicateKeys(t *testing.T) {
	record, keys, err := DecodeRecord([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, types.Record{"a": json.Number("3"), "b": json.Number("2")}, record)
}

func TestDecodeRecordEmptyObject(t *testing.T) {
	record, keys, err := DecodeRecord([]byte(" {} \n"))
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, record)
}

func TestDecodeRecordErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"truncated":  `{"a": 1`,
		"bad value":  `{"a": }`,
		"extra data": `{"a": 1} {"b": 2}`,
		"not json":   `hello`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeRecord([]byte(doc))
			assert.Error(t, err)
		})
	}

	for _, doc := range []string{`[{"a": 1}]`, `"text"`, `42`, `null`} {
		_, _, err := DecodeRecord([]byte(doc))
		assert.ErrorIs(t, err, ErrNotAnObject, doc)
	}
}
