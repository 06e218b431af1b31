package metrics

import (
	"context"
	"fmt"
	"time"

	"batch-predict/internal/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// RunMetrics holds the metrics of a single batch run. Batch jobs do not live
// long enough to be scraped, so the registry is pushed to a Pushgateway once
// the run ends.
type RunMetrics struct {
	registry *prometheus.Registry

	FilesLoaded   prometheus.Counter
	FilesSkipped  prometheus.Counter
	RowsPredicted prometheus.Counter
	Duration      prometheus.Gauge
	LastSuccess   prometheus.Gauge
	LastStatus    *prometheus.GaugeVec
}

func NewRunMetrics() (*RunMetrics, error) {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		FilesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_predict_input_files_loaded_total",
			Help: "Input files parsed into rows.",
		}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_predict_input_files_skipped_total",
			Help: "Input files skipped because they could not be parsed.",
		}),
		RowsPredicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_predict_rows_predicted_total",
			Help: "Rows written with a prediction.",
		}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_predict_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_predict_last_success_timestamp_seconds",
			Help: "Unix time of the last run that wrote predictions.",
		}),
		LastStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_predict_last_run_status",
			Help: "1 for the status of the last run, 0 for the others.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{m.FilesLoaded, m.FilesSkipped, m.RowsPredicted, m.Duration, m.LastSuccess, m.LastStatus} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

var runStatuses = []string{database.RunCompleted, database.RunSkipped, database.RunFailed}

// ObserveRun records the end state of a run. status is one of the run ledger
// statuses.
func (m *RunMetrics) ObserveRun(status string, elapsed time.Duration, finished time.Time) {
	m.Duration.Set(elapsed.Seconds())
	for _, s := range runStatuses {
		if s == status {
			m.LastStatus.WithLabelValues(s).Set(1)
		} else {
			m.LastStatus.WithLabelValues(s).Set(0)
		}
	}
	if status == database.RunCompleted {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
}

// Push sends the registry to the Pushgateway at url, replacing the metrics
// previously pushed under job.
func (m *RunMetrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
