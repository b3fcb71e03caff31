package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

const sourceColumns = `s.id, s.display_title, s.canonical_handle`

func scanSource(row pgx.Row) (domain.Source, error) {
	var (
		s  domain.Source
		id pgtype.UUID
	)

	if err := row.Scan(&id, &s.DisplayTitle, &s.CanonicalHandle); err != nil {
		return domain.Source{}, err
	}

	s.ID = fromUUID(id)

	return s, nil
}

func collectSources(rows pgx.Rows) ([]domain.Source, error) {
	defer rows.Close()

	var sources []domain.Source

	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}

		sources = append(sources, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}

// ListUserSources returns the sources a user follows.
func (db *DB) ListUserSources(ctx context.Context, userID int64) ([]domain.Source, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+sourceColumns+`
		FROM sources s
		JOIN user_sources us ON us.source_id = s.id
		WHERE us.user_id = $1
		ORDER BY s.canonical_handle
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user sources: %w", err)
	}

	return collectSources(rows)
}

// GetSourceByHandle looks a source up by canonical handle.
func (db *DB) GetSourceByHandle(ctx context.Context, handle string) (domain.Source, error) {
	s, err := scanSource(db.Pool.QueryRow(ctx, `
		SELECT `+sourceColumns+` FROM sources s WHERE s.canonical_handle = $1
	`, domain.CanonicalHandle(handle)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Source{}, fmt.Errorf("source %q: %w", handle, coreerrors.ErrNotFound)
		}

		return domain.Source{}, fmt.Errorf("get source by handle: %w", err)
	}

	return s, nil
}

// SyncSource gets or creates the source known by lookupHandle and brings its
// title and handle in line with what upstream reports.
func (db *DB) SyncSource(ctx context.Context, lookupHandle, resolvedHandle, title string) (domain.Source, error) {
	lookupHandle = domain.CanonicalHandle(lookupHandle)

	resolvedHandle = domain.CanonicalHandle(resolvedHandle)
	if resolvedHandle == "" {
		resolvedHandle = lookupHandle
	}

	var src domain.Source

	err := db.InTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanSource(tx.QueryRow(ctx, `
			SELECT `+sourceColumns+` FROM sources s WHERE s.canonical_handle = $1 FOR UPDATE
		`, lookupHandle))

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			src, err = scanSource(tx.QueryRow(ctx, `
				INSERT INTO sources AS s (display_title, canonical_handle)
				VALUES ($1, $2)
				ON CONFLICT (canonical_handle) DO UPDATE SET
					display_title = EXCLUDED.display_title,
					updated_at = now()
				RETURNING `+sourceColumns,
				SanitizeUTF8(title), resolvedHandle))
			if err != nil {
				return fmt.Errorf("insert source: %w", err)
			}

			return nil
		case err != nil:
			return fmt.Errorf("select source: %w", err)
		}

		if existing.DisplayTitle == title && existing.CanonicalHandle == resolvedHandle {
			src = existing
			return nil
		}

		src, err = scanSource(tx.QueryRow(ctx, `
			UPDATE sources AS s SET display_title = $2, canonical_handle = $3, updated_at = now()
			WHERE s.id = $1
			RETURNING `+sourceColumns,
			toUUID(existing.ID), SanitizeUTF8(title), resolvedHandle))
		if err != nil {
			return fmt.Errorf("update source: %w", err)
		}

		return nil
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("sync source %q: %w", lookupHandle, err)
	}

	return src, nil
}

// FollowSource subscribes a user to a channel handle, creating the source row
// with an empty title when it is not known yet.
func (db *DB) FollowSource(ctx context.Context, userID int64, handle string) (domain.Source, error) {
	handle = domain.CanonicalHandle(handle)
	if handle == "" {
		return domain.Source{}, fmt.Errorf("follow source: %w", coreerrors.ErrInvalidInput)
	}

	var src domain.Source

	err := db.InTx(ctx, func(tx pgx.Tx) error {
		var err error

		src, err = scanSource(tx.QueryRow(ctx, `
			INSERT INTO sources AS s (canonical_handle) VALUES ($1)
			ON CONFLICT (canonical_handle) DO UPDATE SET canonical_handle = EXCLUDED.canonical_handle
			RETURNING `+sourceColumns, handle))
		if err != nil {
			return fmt.Errorf("ensure source: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_sources (user_id, source_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, toUUID(src.ID)); err != nil {
			return fmt.Errorf("insert follow: %w", err)
		}

		return nil
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("follow source: %w", err)
	}

	return src, nil
}
