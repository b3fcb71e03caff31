package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

// Payload fields stored with each point.
const (
	payloadSourceID      = "source_id"
	payloadMessageDateTS = "message_date_ts"
)

// ErrBadPointID indicates a stored point id that is not a message uuid.
var ErrBadPointID = errors.New("qdrant point id is not a uuid")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantIndex stores vectors in a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	logger     *zerolog.Logger
}

func NewQdrantIndex(cfg QdrantConfig, logger *zerolog.Logger) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &QdrantIndex{client: client, collection: cfg.Collection, logger: logger}, nil
}

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error {
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("closing qdrant client: %w", err)
	}

	return nil
}

func (q *QdrantIndex) Backend() string { return BackendQdrant }

// EnsureCollection creates the cosine collection and payload indexes when
// the collection does not exist yet.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("checking qdrant collection: %w", err)
	}

	if exists {
		return nil
	}

	q.logger.Info().Str("collection", q.collection).Int("dimensions", dimensions).Msg("creating qdrant collection")

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions), //nolint:gosec // dimensions come from validated config
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating qdrant collection: %w", err)
	}

	wait := true

	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		Wait:           &wait,
		FieldName:      payloadSourceID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return fmt.Errorf("indexing %s: %w", payloadSourceID, err)
	}

	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		Wait:           &wait,
		FieldName:      payloadMessageDateTS,
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	}); err != nil {
		return fmt.Errorf("indexing %s: %w", payloadMessageDateTS, err)
	}

	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.MessageID.String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadSourceID:      p.SourceID.String(),
				payloadMessageDateTS: p.OccurredAt.Unix(),
			}),
		}
	}

	wait := true

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("upserting qdrant points: %w", err)
	}

	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, sourceIDs []uuid.UUID, topK int, minScore float32) ([]Hit, error) {
	if len(sourceIDs) == 0 || topK <= 0 {
		return nil, nil
	}

	keys := make([]string, len(sourceIDs))
	for i, id := range sourceIDs {
		keys[i] = id.String()
	}

	limit := uint64(topK) //nolint:gosec // topK checked positive above

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords(payloadSourceID, keys...)},
		},
		Limit:          &limit,
		ScoreThreshold: &minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("querying qdrant: %w", err)
	}

	hits := make([]Hit, 0, len(points))

	for _, p := range points {
		id, err := uuid.Parse(p.GetId().GetUuid())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadPointID, err)
		}

		hits = append(hits, Hit{MessageID: id, Score: p.GetScore()})
	}

	return hits, nil
}

func (q *QdrantIndex) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	lt := float64(cutoff.Unix())
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewRange(payloadMessageDateTS, &qdrant.Range{Lt: &lt})},
	}

	exact := true

	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting stale qdrant points: %w", err)
	}

	if dryRun || n == 0 {
		return int64(n), nil //nolint:gosec // point counts fit in int64
	}

	wait := true

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return 0, fmt.Errorf("deleting stale qdrant points: %w", err)
	}

	return int64(n), nil //nolint:gosec // point counts fit in int64
}

var _ Index = (*QdrantIndex)(nil)
