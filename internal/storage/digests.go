package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

const digestColumns = `id, user_id, title, content, label, mode, created_at`

func scanDigest(row pgx.Row) (domain.Digest, error) {
	var (
		d         domain.Digest
		id        pgtype.UUID
		mode      string
		createdAt pgtype.Timestamptz
	)

	if err := row.Scan(&id, &d.UserID, &d.Title, &d.Content, &d.Label, &mode, &createdAt); err != nil {
		return domain.Digest{}, err
	}

	d.ID = fromUUID(id)
	d.Mode = domain.DigestMode(mode)
	d.CreatedAt = fromTimestamptz(createdAt)

	return d, nil
}

// SaveDigest stores a generated digest. Digests are never updated.
func (db *DB) SaveDigest(ctx context.Context, d domain.Digest) (domain.Digest, error) {
	var saved domain.Digest

	err := db.InTx(ctx, func(tx pgx.Tx) error {
		var err error

		saved, err = scanDigest(tx.QueryRow(ctx, `
			INSERT INTO digests (user_id, title, content, label, mode)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+digestColumns,
			d.UserID, SanitizeUTF8(d.Title), SanitizeUTF8(d.Content), SanitizeUTF8(d.Label), string(d.Mode)))
		if err != nil {
			return fmt.Errorf("insert digest: %w", err)
		}

		return nil
	})

	return saved, err
}

// ListDigests returns a user's digests created at or after since, newest first.
// An empty label matches every digest.
func (db *DB) ListDigests(ctx context.Context, userID int64, since time.Time, label string) ([]domain.Digest, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+digestColumns+`
		FROM digests
		WHERE user_id = $1 AND created_at >= $2 AND ($3::text IS NULL OR label = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, toTimestamptz(since), toText(label), defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer rows.Close()

	var digests []domain.Digest

	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}

		digests = append(digests, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}

	return digests, nil
}

// LatestDigest returns the newest digest created at or after since.
func (db *DB) LatestDigest(ctx context.Context, userID int64, since time.Time) (domain.Digest, error) {
	d, err := scanDigest(db.Pool.QueryRow(ctx, `
		SELECT `+digestColumns+`
		FROM digests
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, toTimestamptz(since)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Digest{}, fmt.Errorf("latest digest for %d: %w", userID, coreerrors.ErrNotFound)
		}

		return domain.Digest{}, fmt.Errorf("latest digest: %w", err)
	}

	return d, nil
}
