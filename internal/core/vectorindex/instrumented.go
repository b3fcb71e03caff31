package vectorindex

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/channel-digest/internal/platform/observability"
)

const (
	opUpsert = "upsert"
	opSearch = "search"
	opDelete = "delete"

	statusSuccess = "success"
	statusError   = "error"
)

type instrumented struct {
	Index
}

// WithMetrics wraps idx so every call is counted by backend, operation and
// outcome.
func WithMetrics(idx Index) Index {
	return instrumented{Index: idx}
}

func (i instrumented) record(op string, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}

	observability.VectorOps.WithLabelValues(i.Backend(), op, status).Inc()
}

func (i instrumented) Upsert(ctx context.Context, points []Point) error {
	err := i.Index.Upsert(ctx, points)
	i.record(opUpsert, err)

	return err
}

func (i instrumented) Search(ctx context.Context, vector []float32, sourceIDs []uuid.UUID, topK int, minScore float32) ([]Hit, error) {
	hits, err := i.Index.Search(ctx, vector, sourceIDs, topK, minScore)
	i.record(opSearch, err)

	return hits, err
}

func (i instrumented) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	n, err := i.Index.DeleteOlderThan(ctx, cutoff, dryRun)
	i.record(opDelete, err)

	if err == nil && !dryRun {
		observability.VectorsDeleted.WithLabelValues(i.Backend()).Add(float64(n))
	}

	return n, err
}
