package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opGet    = "get"
	opMutate = "mutate"

	resultOK      = "ok"
	resultError   = "error"
	resultAborted = "aborted" // fn rejected the mutation
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziphub_store_operations_total",
		Help: "Collection store operations by collection, operation and result",
	}, []string{"collection", "op", "result"})

	// operationDuration includes the time spent waiting for the collection lock.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ziphub_store_operation_duration_seconds",
		Help:    "Collection store operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"collection", "op"})

	reinitialized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziphub_store_reinitialized_total",
		Help: "Collections reset to their default value because stored content was unusable",
	}, []string{"collection", "reason"})

	writesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ziphub_store_writes_skipped_total",
		Help: "Mutations that left the collection unchanged and were not written",
	}, []string{"collection"})
)

func observe(collection, op, result string, start time.Time) {
	operationsTotal.WithLabelValues(collection, op, result).Inc()
	operationDuration.WithLabelValues(collection, op).Observe(time.Since(start).Seconds())
}
