package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-digest/internal/core/domain"
)

// MatchExists reports whether the (user, message, topic) hit is already stored.
func (db *DB) MatchExists(ctx context.Context, userID int64, messageID uuid.UUID, topic string) (bool, error) {
	var exists bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM filtered_messages
			WHERE user_id = $1 AND raw_message_id = $2 AND topic = $3
		)
	`, userID, toUUID(messageID), topic).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check match exists: %w", err)
	}

	return exists, nil
}

// InsertMatch stores a relevance hit. It returns false without error when the
// hit already exists.
func (db *DB) InsertMatch(ctx context.Context, m domain.FilteredMatch) (bool, error) {
	var inserted bool

	err := db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO filtered_messages
				(user_id, raw_message_id, source_id, topic, content, similarity_score, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, raw_message_id, topic) DO NOTHING
		`, m.UserID, toUUID(m.RawMessageID), toUUID(m.SourceID), m.Topic,
			SanitizeUTF8(m.Content), m.SimilarityScore, toTimestamptz(m.OccurredAt))
		if err != nil {
			return fmt.Errorf("insert filtered message: %w", err)
		}

		inserted = tag.RowsAffected() == 1

		return nil
	})

	return inserted, err
}

// ListMatchesSince returns a user's hits at or after since, best score first
// and newest first among equal scores.
func (db *DB) ListMatchesSince(ctx context.Context, userID int64, since time.Time) ([]domain.FilteredMatch, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, raw_message_id, source_id, topic, content, similarity_score, occurred_at
		FROM filtered_messages
		WHERE user_id = $1 AND occurred_at >= $2
		ORDER BY similarity_score DESC, occurred_at DESC
		LIMIT $3
	`, userID, toTimestamptz(since), defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.FilteredMatch

	for rows.Next() {
		var (
			m                domain.FilteredMatch
			id, msgID, srcID pgtype.UUID
			occurredAt       pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &m.UserID, &msgID, &srcID, &m.Topic, &m.Content, &m.SimilarityScore, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}

		m.ID = fromUUID(id)
		m.RawMessageID = fromUUID(msgID)
		m.SourceID = fromUUID(srcID)
		m.OccurredAt = fromTimestamptz(occurredAt)

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return matches, nil
}
