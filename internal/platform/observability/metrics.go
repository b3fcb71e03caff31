package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage metrics.
var (
	StageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_stage_runs_total",
		Help: "Pipeline stage runs by outcome",
	}, []string{"stage", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_stage_duration_seconds",
		Help:    "Duration of a full pipeline stage run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	StageLastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "digest_stage_last_success_timestamp_seconds",
		Help: "Unix time of the last successful stage run",
	}, []string{"stage"})
)

// Ingestion metrics.
var (
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_messages_ingested_total",
		Help: "Channel posts seen by ingestion, by result",
	}, []string{"result"})

	SourcesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_sources_ingested_total",
		Help: "Channels processed by ingestion, by status",
	}, []string{"status"})

	FloodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_flood_waits_total",
		Help: "Upstream flood-wait signals honoured by ingestion",
	})
)

// Relevance filter metrics.
var (
	FilterMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_filter_matches_total",
		Help: "New relevance matches stored by the filter",
	})

	FilterUsers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_filter_users_total",
		Help: "Users handled by the filter, by status",
	}, []string{"status"})
)

// Digest and delivery metrics.
var (
	DigestsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_generated_total",
		Help: "Digest generation outcomes by mode",
	}, []string{"mode", "status"})

	DigestWorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digest_workers_busy",
		Help: "Digest generation tasks currently in flight",
	})

	DigestsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_posts_total",
		Help: "Digest deliveries by status",
	}, []string{"status"})

	UsersBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digest_users_blocked_total",
		Help: "Users marked blocked after the bot was refused",
	})

	InactiveUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digest_users_inactive",
		Help: "Users past the inactivity threshold at the last sweep",
	})
)

// Vector index metrics.
var (
	VectorOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_vector_ops_total",
		Help: "Vector index operations by backend, operation and status",
	}, []string{"backend", "op", "status"})

	VectorsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_vectors_deleted_total",
		Help: "Vectors removed by retention cleanup",
	}, []string{"backend"})
)

// Embedding metrics.
var (
	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_embedding_requests_total",
		Help: "Embedding requests by provider and status",
	}, []string{"provider", "status"})

	EmbeddingTexts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_embedding_texts_total",
		Help: "Texts embedded by provider",
	}, []string{"provider"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_embedding_latency_seconds",
		Help:    "Embedding request latency by provider",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"})

	EmbeddingProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "digest_embedding_provider_available",
		Help: "Embedding provider availability (1=available, 0=unavailable)",
	}, []string{"provider"})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_embedding_fallbacks_total",
		Help: "Fallbacks from one embedding provider to another",
	}, []string{"from_provider", "to_provider"})
)

// Generation metrics.
var (
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_llm_requests_total",
		Help: "Generation requests by provider and status",
	}, []string{"provider", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_llm_request_duration_seconds",
		Help:    "Duration of generation requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	LLMProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "digest_llm_provider_available",
		Help: "Generation provider availability (1=available, 0=unavailable)",
	}, []string{"provider"})

	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_llm_fallbacks_total",
		Help: "Fallbacks from one generation provider to another",
	}, []string{"from_provider", "to_provider"})
)
