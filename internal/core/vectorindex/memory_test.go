package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_SearchFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	idx := WithMetrics(NewMemoryIndex())

	srcA, srcB := uuid.New(), uuid.New()
	close1, close2, far, otherSource := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	require.NoError(t, idx.Upsert(ctx, []Point{
		{MessageID: close1, SourceID: srcA, OccurredAt: now, Vector: []float32{1, 0}},
		{MessageID: close2, SourceID: srcA, OccurredAt: now, Vector: []float32{1, 0.2}},
		{MessageID: far, SourceID: srcA, OccurredAt: now, Vector: []float32{0, 1}},
		{MessageID: otherSource, SourceID: srcB, OccurredAt: now, Vector: []float32{1, 0}},
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, []uuid.UUID{srcA}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, close1, hits[0].MessageID)
	assert.Equal(t, close2, hits[1].MessageID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = idx.Search(ctx, []float32{1, 0}, []uuid.UUID{srcA, srcB}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Search(ctx, []float32{1, 0}, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	src, msg := uuid.New(), uuid.New()

	require.NoError(t, idx.Upsert(ctx, []Point{{MessageID: msg, SourceID: src, Vector: []float32{0, 1}}}))
	require.NoError(t, idx.Upsert(ctx, []Point{{MessageID: msg, SourceID: src, Vector: []float32{1, 0}}}))

	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0}, []uuid.UUID{src}, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestMemoryIndex_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	src := uuid.New()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, idx.Upsert(ctx, []Point{
		{MessageID: uuid.New(), SourceID: src, OccurredAt: cutoff.Add(-time.Second), Vector: []float32{1}},
		{MessageID: uuid.New(), SourceID: src, OccurredAt: cutoff, Vector: []float32{1}},
	}))

	n, err := idx.DeleteOlderThan(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, idx.Len(), "dry run keeps points")

	n, err = idx.DeleteOlderThan(ctx, cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, idx.Len())
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}
