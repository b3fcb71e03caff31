package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

const messageColumns = `id, source_id, external_id, content, occurred_at, collected_at`

func scanMessage(row pgx.Row) (domain.RawMessage, error) {
	var (
		m          domain.RawMessage
		id, srcID  pgtype.UUID
		occurredAt pgtype.Timestamptz
		collected  pgtype.Timestamptz
	)

	if err := row.Scan(&id, &srcID, &m.ExternalID, &m.Content, &occurredAt, &collected); err != nil {
		return domain.RawMessage{}, err
	}

	m.ID = fromUUID(id)
	m.SourceID = fromUUID(srcID)
	m.OccurredAt = fromTimestamptz(occurredAt)
	m.CollectedAt = fromTimestamptz(collected)

	return m, nil
}

func collectMessages(rows pgx.Rows) ([]domain.RawMessage, error) {
	defer rows.Close()

	var msgs []domain.RawMessage

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// InsertMessages stores a batch in one transaction. Rows whose
// (source_id, external_id) already exist are ignored; only the newly
// inserted rows are returned.
func (db *DB) InsertMessages(ctx context.Context, batch []domain.NewRawMessage) ([]domain.RawMessage, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	sourceIDs := make([]pgtype.UUID, len(batch))
	externalIDs := make([]int64, len(batch))
	contents := make([]string, len(batch))
	occurred := make([]pgtype.Timestamptz, len(batch))

	for i, m := range batch {
		sourceIDs[i] = toUUID(m.SourceID)
		externalIDs[i] = m.ExternalID
		contents[i] = SanitizeUTF8(m.Content)
		occurred[i] = toTimestamptz(m.OccurredAt)
	}

	var inserted []domain.RawMessage

	err := db.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			INSERT INTO raw_messages (source_id, external_id, content, occurred_at)
			SELECT * FROM unnest($1::uuid[], $2::bigint[], $3::text[], $4::timestamptz[])
			ON CONFLICT (source_id, external_id) DO NOTHING
			RETURNING `+messageColumns,
			sourceIDs, externalIDs, contents, occurred)
		if err != nil {
			return fmt.Errorf("insert raw messages: %w", err)
		}

		inserted, err = collectMessages(rows)

		return err
	})
	if err != nil {
		return nil, err
	}

	return inserted, nil
}

// GetMessage returns a raw message by id.
func (db *DB) GetMessage(ctx context.Context, id uuid.UUID) (domain.RawMessage, error) {
	m, err := scanMessage(db.Pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM raw_messages WHERE id = $1`, toUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RawMessage{}, fmt.Errorf("message %s: %w", id, coreerrors.ErrNotFound)
		}

		return domain.RawMessage{}, fmt.Errorf("get message: %w", err)
	}

	return m, nil
}

// ListSourceMessagesSince returns the newest messages of a source at or after since.
func (db *DB) ListSourceMessagesSince(ctx context.Context, sourceID uuid.UUID, since time.Time, limit int) ([]domain.RawMessage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM raw_messages
		WHERE source_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`, toUUID(sourceID), toTimestamptz(since), safeIntToInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("list source messages: %w", err)
	}

	return collectMessages(rows)
}
