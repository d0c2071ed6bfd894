package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	rowsIngestedCounter  prometheus.Counter
	batchesOkCounter     prometheus.Counter
	batchesFailedCounter prometheus.Counter
	submitRetryCounter   prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.rowsIngestedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermal_streamer_rows_ingested_count",
		Help: "The number of rows accepted by the ingestion service",
	})

	metrics.batchesOkCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermal_streamer_batches_ok_count",
		Help: "The number of batches accepted by the ingestion service",
	})

	metrics.batchesFailedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermal_streamer_batches_failed_count",
		Help: "The number of batches that failed permanently or exhausted retries",
	})

	metrics.submitRetryCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermal_streamer_submit_retry_count",
		Help: "The number of transient submit failures that were retried",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
