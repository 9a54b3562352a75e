package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction metrics - Track state-changing ledger calls
var (
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_transactions_submitted_total",
			Help: "Total number of transactions submitted by action",
		},
		[]string{"action"},
	)

	TransactionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_transaction_failures_total",
			Help: "Total number of failed or rejected transactions by action",
		},
		[]string{"action"},
	)

	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zblog_posts_created_total",
		Help: "Total number of confirmed post creations",
	})

	UnknownPostIDs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zblog_unknown_post_ids_total",
		Help: "Confirmed creations whose PostCreated event could not be found",
	})
)

// Content cache metrics
var (
	ContentCacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_content_cache_operations_total",
			Help: "Content cache operations by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// Decryption metrics - Track sessions and decrypt round trips
var (
	SignatureRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_decryption_signature_requests_total",
			Help: "Decryption signature lookups by result (hit, miss, declined)",
		},
		[]string{"result"},
	)

	DecryptRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_decrypt_requests_total",
			Help: "Batched decrypt requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	DecryptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zblog_decrypt_duration_seconds",
		Help:    "Time taken by a batched decrypt round trip",
		Buckets: prometheus.DefBuckets,
	})
)

// Guard and read metrics
var (
	BusyRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zblog_busy_rejections_total",
			Help: "Calls dropped because the operation was already running",
		},
		[]string{"guard"},
	)

	PostLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zblog_post_load_failures_total",
		Help: "Posts skipped while listing because their metadata failed to load",
	})

	PostsListed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zblog_posts_listed",
		Help: "Number of posts returned by the last list operation",
	})
)
