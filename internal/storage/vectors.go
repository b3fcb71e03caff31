package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// MessageVector is one indexed message embedding.
type MessageVector struct {
	MessageID  uuid.UUID
	SourceID   uuid.UUID
	OccurredAt time.Time
	Embedding  []float32
}

// VectorHit is a similarity search result.
type VectorHit struct {
	MessageID uuid.UUID
	Score     float32
}

// UpsertMessageVectors writes embeddings for messages, replacing existing ones.
func (db *DB) UpsertMessageVectors(ctx context.Context, vectors []MessageVector) error {
	if len(vectors) == 0 {
		return nil
	}

	return db.InTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		for _, v := range vectors {
			batch.Queue(`
				INSERT INTO message_vectors (message_id, source_id, message_date_ts, embedding)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (message_id) DO UPDATE SET
					source_id = EXCLUDED.source_id,
					message_date_ts = EXCLUDED.message_date_ts,
					embedding = EXCLUDED.embedding
			`, toUUID(v.MessageID), toUUID(v.SourceID), v.OccurredAt.Unix(), pgvector.NewVector(v.Embedding))
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert message vectors: %w", err)
		}

		return nil
	})
}

// SearchMessageVectors returns the closest messages among the given sources by
// cosine similarity, best first, dropping hits below minScore.
func (db *DB) SearchMessageVectors(ctx context.Context, query []float32, sourceIDs []uuid.UUID, limit int, minScore float32) ([]VectorHit, error) {
	if len(sourceIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	ids := make([]pgtype.UUID, len(sourceIDs))
	for i, id := range sourceIDs {
		ids[i] = toUUID(id)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT message_id, score FROM (
			SELECT message_id, 1 - (embedding <=> $1::vector) AS score
			FROM message_vectors
			WHERE source_id = ANY($2::uuid[])
			ORDER BY embedding <=> $1::vector
			LIMIT $3
		) ranked
		WHERE score >= $4
		ORDER BY score DESC
	`, pgvector.NewVector(query), ids, safeIntToInt32(limit), float64(minScore))
	if err != nil {
		return nil, fmt.Errorf("search message vectors: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit

	for rows.Next() {
		var (
			id    pgtype.UUID
			score float64
		)

		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}

		hits = append(hits, VectorHit{MessageID: fromUUID(id), Score: float32(score)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector hits: %w", err)
	}

	return hits, nil
}

// DeleteMessageVectorsBefore drops vectors of messages that occurred before cutoff.
// With dryRun set it only counts them.
func (db *DB) DeleteMessageVectorsBefore(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	if dryRun {
		var n int64
		if err := db.Pool.QueryRow(ctx, `
			SELECT count(*) FROM message_vectors WHERE message_date_ts < $1
		`, cutoff.Unix()).Scan(&n); err != nil {
			return 0, fmt.Errorf("count stale vectors: %w", err)
		}

		return n, nil
	}

	tag, err := db.Pool.Exec(ctx, `DELETE FROM message_vectors WHERE message_date_ts < $1`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete stale vectors: %w", err)
	}

	return tag.RowsAffected(), nil
}
