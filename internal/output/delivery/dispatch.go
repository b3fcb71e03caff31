// Package delivery posts each user's latest digest through the Telegram bot.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/activity"
	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
	"github.com/lueurxax/channel-digest/internal/platform/runid"
	"github.com/lueurxax/channel-digest/internal/stats"
)

// Delivery statuses.
const (
	StatusSent    = "sent"
	StatusNotice  = "notice"
	StatusBlocked = "blocked"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Report summarizes one dispatch run.
type Report struct {
	RunID   string `json:"run_id"`
	Sent    int    `json:"sent"`
	Notices int    `json:"notices"`
	Blocked int    `json:"blocked"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

type Deps struct {
	Users    ports.UserStore
	Topics   ports.TopicStore
	Digests  ports.DigestStore
	Sender   Sender
	Tracker  activity.Tracker
	Recorder *activity.Recorder
	Ledger   *stats.Ledger
	Logger   *zerolog.Logger
}

// Dispatcher sends today's digest to every reachable user. Users with no
// digest today get the "nothing interesting" notice followed by their stats.
type Dispatcher struct {
	Deps
	now func() time.Time
}

func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{Deps: deps, now: time.Now}
}

func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: runid.New()}
	logger := d.Logger.With().Str("run_id", report.RunID).Logger()

	users, err := d.Users.ListUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		status := d.deliver(ctx, &logger, u)
		observability.DigestsDelivered.WithLabelValues(status).Inc()

		switch status {
		case StatusSent:
			report.Sent++
		case StatusNotice:
			report.Notices++
		case StatusBlocked:
			report.Blocked++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	logger.Info().
		Int("sent", report.Sent).
		Int("notices", report.Notices).
		Int("blocked", report.Blocked).
		Int("failed", report.Failed).
		Msg("Delivery completed")

	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, logger *zerolog.Logger, u domain.User) string {
	blocked, err := d.Tracker.IsBlocked(ctx, u)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", u.ID).Msg("blocked check failed")
		return StatusError
	}

	if blocked {
		return StatusSkipped
	}

	text, status, err := d.compose(ctx, u)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", u.ID).Msg("failed to compose delivery")
		return StatusError
	}

	if err := d.Sender.SendHTML(ctx, u.ID, text); err != nil {
		if errors.Is(err, ErrBotBlocked) {
			if markErr := d.Recorder.MarkBlocked(ctx, u.ID); markErr != nil {
				logger.Warn().Err(markErr).Int64("user_id", u.ID).Msg("failed to mark user blocked")
			}

			return StatusBlocked
		}

		logger.Error().Err(err).Int64("user_id", u.ID).Msg("failed to send digest")

		return StatusError
	}

	return status
}

func (d *Dispatcher) compose(ctx context.Context, u domain.User) (string, string, error) {
	now := d.now()

	latest, err := d.Digests.LatestDigest(ctx, u.ID, domain.DayKey(now))
	if err == nil {
		return latest.Content, StatusSent, nil
	}

	if !errors.Is(err, coreerrors.ErrNotFound) {
		return "", "", fmt.Errorf("latest digest: %w", err)
	}

	topics, err := d.Topics.ListUserTopics(ctx, u.ID)
	if err != nil {
		return "", "", fmt.Errorf("list topics: %w", err)
	}

	mode := domain.DigestModeSource
	if len(topics) > 0 {
		mode = domain.DigestModeTopic
	}

	day, err := d.Ledger.Get(ctx, u.ID, now)
	if err != nil {
		return "", "", err
	}

	return i18n.Text(u.Language, i18n.NothingInteresting) + "\n\n" + stats.Block(day, mode, u.Language), StatusNotice, nil
}
