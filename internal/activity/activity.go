// Package activity answers whether a subscriber is still worth serving.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
)

// DefaultInactiveAfter is used when no threshold is configured.
const DefaultInactiveAfter = 7 * 24 * time.Hour

// Tracker is the read-only view the pipeline stages use.
type Tracker interface {
	IsActive(ctx context.Context, user domain.User) (bool, error)
	IsBlocked(ctx context.Context, user domain.User) (bool, error)
}

// StoreTracker judges activity from the last_seen_at and blocked_at columns.
type StoreTracker struct {
	inactiveAfter time.Duration
	now           func() time.Time
}

func NewTracker(inactiveAfter time.Duration, now func() time.Time) *StoreTracker {
	if inactiveAfter <= 0 {
		inactiveAfter = DefaultInactiveAfter
	}

	if now == nil {
		now = time.Now
	}

	return &StoreTracker{inactiveAfter: inactiveAfter, now: now}
}

// IsActive reports whether the user was seen within the inactivity window.
func (t *StoreTracker) IsActive(_ context.Context, user domain.User) (bool, error) {
	return t.now().Sub(user.LastSeen()) <= t.inactiveAfter, nil
}

func (t *StoreTracker) IsBlocked(_ context.Context, user domain.User) (bool, error) {
	return user.BlockedAt != nil, nil
}

// Eligible reports whether a user should receive pipeline work.
func Eligible(ctx context.Context, t Tracker, user domain.User) (bool, error) {
	blocked, err := t.IsBlocked(ctx, user)
	if err != nil {
		return false, fmt.Errorf("check blocked for user %d: %w", user.ID, err)
	}

	if blocked {
		return false, nil
	}

	active, err := t.IsActive(ctx, user)
	if err != nil {
		return false, fmt.Errorf("check activity for user %d: %w", user.ID, err)
	}

	return active, nil
}

// Recorder writes activity changes. Only the delivery side uses it.
type Recorder struct {
	users  ports.UserStore
	logger *zerolog.Logger
	now    func() time.Time
}

func NewRecorder(users ports.UserStore, logger *zerolog.Logger) *Recorder {
	return &Recorder{users: users, logger: logger, now: time.Now}
}

// Touch marks the user as seen now.
func (r *Recorder) Touch(ctx context.Context, userID int64) error {
	if err := r.users.TouchUser(ctx, userID, r.now()); err != nil {
		return fmt.Errorf("touch user %d: %w", userID, err)
	}

	return nil
}

// MarkBlocked records that the user blocked the bot.
func (r *Recorder) MarkBlocked(ctx context.Context, userID int64) error {
	if err := r.users.MarkUserBlocked(ctx, userID, r.now()); err != nil {
		return fmt.Errorf("mark user %d blocked: %w", userID, err)
	}

	observability.UsersBlocked.Inc()
	r.logger.Info().Int64("user_id", userID).Msg("user blocked the bot")

	return nil
}

// SweepResult summarizes an inactivity sweep.
type SweepResult struct {
	Total    int
	Active   int
	Inactive int
	Blocked  int
}

// Sweep classifies every user and logs the inactive ones.
func Sweep(ctx context.Context, users ports.UserStore, t Tracker, logger *zerolog.Logger) (SweepResult, error) {
	all, err := users.ListUsers(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list users: %w", err)
	}

	res := SweepResult{Total: len(all)}

	for _, u := range all {
		blocked, err := t.IsBlocked(ctx, u)
		if err != nil {
			return res, err
		}

		if blocked {
			res.Blocked++
			continue
		}

		active, err := t.IsActive(ctx, u)
		if err != nil {
			return res, err
		}

		if active {
			res.Active++
			continue
		}

		res.Inactive++

		logger.Debug().Int64("user_id", u.ID).Time("last_seen", u.LastSeen()).Msg("user inactive")
	}

	observability.InactiveUsers.Set(float64(res.Inactive))

	return res, nil
}
