package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"batch-predict/internal/database"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m, err := NewRunMetrics()
	require.NoError(t, err)

	m.FilesLoaded.Add(4)
	m.FilesSkipped.Add(1)
	m.RowsPredicted.Add(4)

	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.ObserveRun(database.RunCompleted, 1500*time.Millisecond, finished)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.FilesLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RowsPredicted))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.Duration))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastStatus.WithLabelValues(database.RunCompleted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastStatus.WithLabelValues(database.RunFailed)))
}

func TestObserveRunSkippedKeepsLastSuccess(t *testing.T) {
	m, err := NewRunMetrics()
	require.NoError(t, err)

	m.ObserveRun(database.RunSkipped, time.Second, time.Now())

	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastStatus.WithLabelValues(database.RunSkipped)))
}

func TestPush(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m, err := NewRunMetrics()
	require.NoError(t, err)
	m.RowsPredicted.Add(7)

	require.NoError(t, m.Push(context.Background(), server.URL, "batch_predict"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "PUT /metrics/job/batch_predict", paths[0])
	assert.NotEmpty(t, bodies[0])
}

func TestPushError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m, err := NewRunMetrics()
	require.NoError(t, err)

	err = m.Push(context.Background(), server.URL, "batch_predict")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), server.URL))
}
