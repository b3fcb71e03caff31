// Package vectorindex stores one embedding per raw message and answers
// nearest-neighbour queries restricted to a set of sources.
//
// The index is a derived projection of the content store: losing it loses
// recall for already-ingested messages but never loses data.
package vectorindex

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Backend names.
const (
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// Point is a message vector with the payload used for filtering.
type Point struct {
	MessageID  uuid.UUID
	SourceID   uuid.UUID
	OccurredAt time.Time
	Vector     []float32
}

// Hit is a search result. Score is cosine similarity, higher is closer.
type Hit struct {
	MessageID uuid.UUID
	Score     float32
}

// Index is a similarity index over message vectors.
type Index interface {
	// Backend names the implementation for logs and metrics.
	Backend() string

	// EnsureCollection prepares storage for vectors of the given size.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert writes points, replacing existing vectors for the same message.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK hits among sourceIDs with score >= minScore,
	// best first. An empty source set yields no hits.
	Search(ctx context.Context, vector []float32, sourceIDs []uuid.UUID, topK int, minScore float32) ([]Hit, error)

	// DeleteOlderThan removes vectors of messages that occurred before cutoff
	// and reports how many were (or with dryRun, would be) removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}
