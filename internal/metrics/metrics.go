package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "burn_relayer"

var (
	// Indexer
	IndexerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "requests_total",
		Help:      "Indexer API requests by action and outcome",
	}, []string{"action", "outcome"})

	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "retries_total",
		Help:      "Failed attempts that were retried, by operation",
	}, []string{"op"})

	// Reader
	BlocksRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "blocks_total",
		Help:      "Complete blocks yielded by the block-aligned reader",
	})

	ReaderRebases = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reader",
		Name:      "rebases_total",
		Help:      "Pagination restarts caused by the result window ceiling",
	})

	// Relay
	ClaimsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "claims_submitted_total",
		Help:      "Burn claims accepted by the destination ledger",
	})

	DuplicateSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "duplicate_submissions_total",
		Help:      "Submissions the destination ledger had already recorded",
	})

	Watermark = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "watermark_block",
		Help:      "Highest source block processed by the relay loop",
	})

	SourceHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "source_height_block",
		Help:      "Latest source chain height reported by the indexer",
	})

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "iteration_duration_seconds",
		Help:      "Relay loop iteration duration, excluding cooldown",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)
