package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coin_tracker_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Ledger
	LedgerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coin_tracker_ledger_request_seconds",
			Help:    "Latency of ledger source requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	// Sync
	SyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coin_tracker_syncs_total",
			Help: "Sync calls by outcome",
		},
		[]string{"outcome"}, // ok|truncated|no_history|failed
	)
	TransactionsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coin_tracker_transactions_stored_total",
			Help: "Transaction records written by sync",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coin_tracker_worker_queue_depth",
			Help: "Current background sync queue depth",
		},
	)
)

// Handler serves /metrics
var Handler = promhttp.Handler

// Init registers every collector with the default registry
func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(LedgerRequestDuration)
	prometheus.MustRegister(SyncsTotal)
	prometheus.MustRegister(TransactionsStored)
	prometheus.MustRegister(WorkerQueueDepth)
}
