package vectorindex

import (
	"context"
	"time"

	"github.com/google/uuid"

	db "github.com/lueurxax/channel-digest/internal/storage"
)

// VectorStore is the part of the content store holding message_vectors.
type VectorStore interface {
	UpsertMessageVectors(ctx context.Context, vectors []db.MessageVector) error
	SearchMessageVectors(ctx context.Context, query []float32, sourceIDs []uuid.UUID, limit int, minScore float32) ([]db.VectorHit, error)
	DeleteMessageVectorsBefore(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// PgvectorIndex keeps vectors next to the messages in Postgres.
type PgvectorIndex struct {
	store VectorStore
}

func NewPgvectorIndex(store VectorStore) *PgvectorIndex {
	return &PgvectorIndex{store: store}
}

func (p *PgvectorIndex) Backend() string { return BackendPgvector }

// EnsureCollection is a no-op: the table is created by migrations.
func (p *PgvectorIndex) EnsureCollection(context.Context, int) error {
	return nil
}

func (p *PgvectorIndex) Upsert(ctx context.Context, points []Point) error {
	vectors := make([]db.MessageVector, len(points))
	for i, pt := range points {
		vectors[i] = db.MessageVector{
			MessageID:  pt.MessageID,
			SourceID:   pt.SourceID,
			OccurredAt: pt.OccurredAt,
			Embedding:  pt.Vector,
		}
	}

	return p.store.UpsertMessageVectors(ctx, vectors)
}

func (p *PgvectorIndex) Search(ctx context.Context, vector []float32, sourceIDs []uuid.UUID, topK int, minScore float32) ([]Hit, error) {
	rows, err := p.store.SearchMessageVectors(ctx, vector, sourceIDs, topK, minScore)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(rows))
	for i, r := range rows {
		hits[i] = Hit{MessageID: r.MessageID, Score: r.Score}
	}

	return hits, nil
}

func (p *PgvectorIndex) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	return p.store.DeleteMessageVectorsBefore(ctx, cutoff, dryRun)
}

var _ Index = (*PgvectorIndex)(nil)
