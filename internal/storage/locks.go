package db

import (
	"context"
	"errors"
	"fmt"
)

// ErrLockHeld is returned when another instance holds the advisory lock.
var ErrLockHeld = errors.New("advisory lock held by another session")

// WithAdvisoryLock runs fn while holding a session advisory lock on a dedicated
// connection. It returns ErrLockHeld without running fn when the lock is taken.
func (db *DB) WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("try acquire advisory lock: %w", err)
	}

	if !acquired {
		return ErrLockHeld
	}

	defer func() {
		//nolint:errcheck // lock is released with the session anyway
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockID)
	}()

	return fn(ctx)
}
