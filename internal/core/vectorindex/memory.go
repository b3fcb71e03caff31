package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryIndex is a brute-force in-process index for tests and local runs.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[uuid.UUID]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[uuid.UUID]Point)}
}

func (m *MemoryIndex) Backend() string { return BackendMemory }

func (m *MemoryIndex) EnsureCollection(context.Context, int) error { return nil }

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		m.points[p.MessageID] = p
	}

	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, sourceIDs []uuid.UUID, topK int, minScore float32) ([]Hit, error) {
	if len(sourceIDs) == 0 || topK <= 0 {
		return nil, nil
	}

	allowed := make(map[uuid.UUID]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		allowed[id] = struct{}{}
	}

	m.mu.RLock()

	var hits []Hit

	for _, p := range m.points {
		if _, ok := allowed[p.SourceID]; !ok {
			continue
		}

		if score := Cosine(vector, p.Vector); score >= minScore {
			hits = append(hits, Hit{MessageID: p.MessageID, Score: score})
		}
	}

	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}

		return hits[i].MessageID.String() < hits[j].MessageID.String()
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	return hits, nil
}

func (m *MemoryIndex) DeleteOlderThan(_ context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64

	for id, p := range m.points {
		if !p.OccurredAt.Before(cutoff) {
			continue
		}

		n++

		if !dryRun {
			delete(m.points, id)
		}
	}

	return n, nil
}

// Len returns the number of stored points.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.points)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or their lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ Index = (*MemoryIndex)(nil)
