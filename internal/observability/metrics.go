package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smartapply"

// Metrics holds the Prometheus collectors for pipeline runs.
type Metrics struct {
	JobsScraped    *prometheus.CounterVec
	SourceFailures *prometheus.CounterVec
	EmbeddingCalls *prometheus.CounterVec
	MatchesCreated prometheus.Counter
	EmailsSent     prometheus.Counter
	EmailFailures  prometheus.Counter
	PipelineRuns   *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	PagesFetched   *prometheus.CounterVec
	UsersProcessed prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg uses a private
// registry so callers that never expose metrics still get working counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_scraped_total",
			Help:      "Listings extracted per source before deduplication",
		}, []string{"source"}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources whose scrape ended with an error",
		}, []string{"source"}),
		EmbeddingCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_calls_total",
			Help:      "Embedding provider calls by outcome",
		}, []string{"kind", "result"}),
		MatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Match records persisted",
		}),
		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Alert emails delivered",
		}),
		EmailFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_failures_total",
			Help:      "Alert emails that failed to send",
		}),
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of pipeline runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Listing pages fetched per source",
		}, []string{"source"}),
		UsersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_processed_total",
			Help:      "Users considered by the match engine",
		}),
	}
}
