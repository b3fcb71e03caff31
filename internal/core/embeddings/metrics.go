package embeddings

import (
	"time"

	"github.com/lueurxax/channel-digest/internal/core/resilience"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
)

func observeRequest(provider string, took time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	observability.EmbeddingRequests.WithLabelValues(provider, status).Inc()
	observability.EmbeddingLatency.WithLabelValues(provider).Observe(took.Seconds())
}

func observeTexts(provider string, n int) {
	observability.EmbeddingTexts.WithLabelValues(provider).Add(float64(n))
}

func observeFallback(from, to string) {
	observability.EmbeddingFallbacks.WithLabelValues(from, to).Inc()
}

func setProviderAvailable(provider string, available bool) {
	v := 0.0
	if available {
		v = 1
	}

	observability.EmbeddingProviderAvailable.WithLabelValues(provider).Set(v)
}

func breakerChanged(name string, _, to resilience.State) {
	setProviderAvailable(name, to != resilience.StateOpen)
}
