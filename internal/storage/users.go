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

const userColumns = `id, COALESCE(username, ''), language, created_at, last_seen_at, blocked_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		createdAt pgtype.Timestamptz
		lastSeen  pgtype.Timestamptz
		blocked   pgtype.Timestamptz
	)

	if err := row.Scan(&u.ID, &u.Username, &u.Language, &createdAt, &lastSeen, &blocked); err != nil {
		return domain.User{}, err
	}

	u.CreatedAt = fromTimestamptz(createdAt)
	u.LastSeenAt = fromTimestamptzPtr(lastSeen)
	u.BlockedAt = fromTimestamptzPtr(blocked)

	return u, nil
}

// UpsertUser registers a subscriber or updates its username and language.
func (db *DB) UpsertUser(ctx context.Context, id int64, username, language string) (domain.User, error) {
	if language == "" {
		language = domain.LanguageEnglish
	}

	u, err := scanUser(db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, username, language)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			language = EXCLUDED.language
		RETURNING `+userColumns,
		id, toText(username), language))
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}

	return u, nil
}

// GetUser returns a user by Telegram id.
func (db *DB) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %d: %w", id, coreerrors.ErrNotFound)
		}

		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// ListUsers returns every registered user ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// TouchUser records user activity and clears a previous block.
func (db *DB) TouchUser(ctx context.Context, id int64, at time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE users SET last_seen_at = $2, blocked_at = NULL WHERE id = $1
	`, id, toTimestamptz(at)); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}

	return nil
}

// MarkUserBlocked records that the user blocked the delivery bot.
func (db *DB) MarkUserBlocked(ctx context.Context, id int64, at time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE users SET blocked_at = $2 WHERE id = $1 AND blocked_at IS NULL
	`, id, toTimestamptz(at)); err != nil {
		return fmt.Errorf("mark user blocked: %w", err)
	}

	return nil
}
