package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SalesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sales_recorded_total",
			Help: "Sales committed, by branch and status",
		},
		[]string{"branch", "status"},
	)

	SaleAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sale_amount_total",
			Help: "Sum of committed sale totals in base currency",
		},
		[]string{"branch"},
	)

	SaleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sale_failures_total",
			Help: "Rejected or failed sales, by reason",
		},
		[]string{"reason"},
	)

	SaleAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_sale_attempts_total",
			Help: "Atomic sale attempts, including retries",
		},
	)

	SaleRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_sale_retries_total",
			Help: "Sale attempts re-run after contention",
		},
	)

	SaleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_sale_duration_seconds",
			Help:    "End-to-end RecordSale latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	LedgerDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_ledger_deletions_total",
			Help: "Ledger transactions deleted with full debt recompute",
		},
		[]string{"branch"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_realtime_clients",
			Help: "Connected websocket terminals",
		},
	)
)
