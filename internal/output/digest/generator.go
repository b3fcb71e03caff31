// Package digest turns each user's recent matches (or, without topics, the
// raw posts of their sources) into one generated Telegram HTML summary.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/llm"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
	"github.com/lueurxax/channel-digest/internal/platform/runid"
	"github.com/lueurxax/channel-digest/internal/platform/worker"
	"github.com/lueurxax/channel-digest/internal/stats"
)

// Options tune one generation run.
type Options struct {
	DaysBack     int
	MinGroupSize int
	BatchSize    int
	SourceLimit  int
	// UserID restricts the run to one user when non-zero.
	UserID int64
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.DaysBack <= 0 {
		o.DaysBack = DefaultDaysBack
	}

	if o.MinGroupSize <= 0 {
		o.MinGroupSize = DefaultMinGroupSize
	}

	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}

	if o.SourceLimit <= 0 {
		o.SourceLimit = DefaultSourceLimit
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

// Cutoff is UTC midnight DaysBack days before now.
func (o Options) Cutoff() time.Time {
	o = o.withDefaults()

	return domain.DayKey(o.Now().AddDate(0, 0, -o.DaysBack))
}

// Report summarizes a run. Skipped users had nothing to summarize or got a
// not-relevant answer.
type Report struct {
	RunID           string `json:"run_id"`
	TotalSuccessful int    `json:"total_successful"`
	TotalFailed     int    `json:"total_failed"`
	TotalSkipped    int    `json:"total_skipped"`
	TotalProcessed  int    `json:"total_processed"`
}

// Outcome of one user's generation.
type Outcome struct {
	Mode   domain.DigestMode
	Digest *domain.Digest
	// Notice is the localized "no relevant updates" text when the model
	// found nothing worth sending.
	Notice string
}

// Deps are the collaborators of a Generator.
type Deps struct {
	Users    ports.UserStore
	Sources  ports.SourceStore
	Messages ports.MessageStore
	Topics   ports.TopicStore
	Matches  ports.MatchStore
	Digests  ports.DigestStore
	LLM      llm.Generator
	Ledger   *stats.Ledger
	Logger   *zerolog.Logger
}

type Generator struct {
	Deps
}

func New(deps Deps) *Generator {
	return &Generator{Deps: deps}
}

// Run generates digests for every user with a bounded worker pool. Per-user
// failures and panics are counted; only setup failures are returned.
func (g *Generator) Run(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	report := Report{RunID: runid.New()}

	logger := g.Logger.With().Str(LogFieldRunID, report.RunID).Logger()

	users, err := g.users(ctx, opts.UserID)
	if err != nil {
		return report, err
	}

	pool := worker.NewPool(opts.BatchSize, &logger)
	outcomes := make([]Outcome, len(users))

	indices := make([]int, len(users))
	for i := range indices {
		indices[i] = i
	}

	errs := worker.Each(ctx, pool, indices, func(ctx context.Context, i int) error {
		observability.DigestWorkersBusy.Inc()
		defer observability.DigestWorkersBusy.Dec()

		out, err := g.GenerateForUser(ctx, users[i], opts)
		outcomes[i] = out

		if err != nil {
			observability.DigestsGenerated.WithLabelValues(string(out.Mode), StatusError).Inc()
		}

		return err
	})

	for i, err := range errs {
		report.TotalProcessed++

		switch {
		case err != nil:
			report.TotalFailed++

			logger.Error().Err(err).Int64(LogFieldUserID, users[i].ID).Msg("failed to generate digest")
		case outcomes[i].Digest != nil:
			report.TotalSuccessful++
		default:
			report.TotalSkipped++
		}
	}

	logger.Info().
		Int("successful", report.TotalSuccessful).
		Int("failed", report.TotalFailed).
		Int("skipped", report.TotalSkipped).
		Int("total", report.TotalProcessed).
		Msg("Digest generation completed")

	return report, nil
}

func (g *Generator) users(ctx context.Context, only int64) ([]domain.User, error) {
	if only != 0 {
		u, err := g.Users.GetUser(ctx, only)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", only, err)
		}

		return []domain.User{u}, nil
	}

	users, err := g.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// Strategy picks topic mode for users with topics and source mode otherwise.
func (g *Generator) Strategy(sub Subscriber, opts Options) Strategy {
	if len(sub.Topics) > 0 {
		return &topicStrategy{matches: g.Matches, sources: g.Sources}
	}

	return &sourceStrategy{sources: g.Sources, messages: g.Messages, limit: opts.withDefaults().SourceLimit}
}

// GenerateForUser runs one user through grouping, generation and
// persistence. A nil Digest with a nil error means there was nothing to send.
func (g *Generator) GenerateForUser(ctx context.Context, user domain.User, opts Options) (Outcome, error) {
	opts = opts.withDefaults()

	sub, err := g.subscriber(ctx, user)
	if err != nil {
		return Outcome{}, err
	}

	strategy := g.Strategy(sub, opts)
	out := Outcome{Mode: strategy.Mode()}

	logger := g.Logger.With().Int64(LogFieldUserID, user.ID).Str(LogFieldMode, string(out.Mode)).Logger()

	groups, err := strategy.Group(ctx, sub, opts.Cutoff())
	if err != nil {
		return out, fmt.Errorf("group content: %w", err)
	}

	groups = filterBySize(groups, opts.MinGroupSize)
	if len(groups) == 0 {
		observability.DigestsGenerated.WithLabelValues(string(out.Mode), StatusEmpty).Inc()
		logger.Info().Int("min_group_size", opts.MinGroupSize).Msg("No groups with enough messages")

		return out, nil
	}

	dayStats, err := g.Ledger.Get(ctx, user.ID, opts.Now())
	if err != nil {
		return out, err
	}

	raw, err := g.LLM.Generate(ctx, strategy.BuildPrompt(sub, groups), strategy.Schema())
	if err != nil {
		return out, fmt.Errorf("generate: %w", err)
	}

	res, err := strategy.FormatResult(sub, raw, groups, dayStats)
	if err != nil {
		return out, err
	}

	if !res.Relevant {
		out.Notice = res.Content

		observability.DigestsGenerated.WithLabelValues(string(out.Mode), StatusNotRelevant).Inc()
		logger.Info().Strs(LogFieldGroups, Keys(groups)).Msg("No relevant content")

		return out, nil
	}

	saved, err := g.Digests.SaveDigest(ctx, domain.Digest{
		ID:        uuid.New(),
		UserID:    user.ID,
		Title:     Title(out.Mode, groups),
		Content:   res.Content,
		Label:     Label(out.Mode, groups),
		Mode:      out.Mode,
		CreatedAt: opts.Now(),
	})
	if err != nil {
		return out, fmt.Errorf("save digest: %w", err)
	}

	out.Digest = &saved

	observability.DigestsGenerated.WithLabelValues(string(out.Mode), StatusGenerated).Inc()
	logger.Info().Strs(LogFieldGroups, Keys(groups)).Msg("Generated digest")

	return out, nil
}

func (g *Generator) subscriber(ctx context.Context, user domain.User) (Subscriber, error) {
	topics, err := g.Topics.ListUserTopics(ctx, user.ID)
	if err != nil {
		return Subscriber{}, fmt.Errorf("list topics: %w", err)
	}

	sub := Subscriber{User: user, Topics: make([]string, len(topics))}
	for i, t := range topics {
		sub.Topics[i] = t.Text
	}

	return sub, nil
}

// RecentDigests returns the user's digests from the last daysBack days,
// newest first, optionally restricted to one label.
func (g *Generator) RecentDigests(ctx context.Context, userID int64, daysBack int, label string, now time.Time) ([]domain.Digest, error) {
	if daysBack <= 0 {
		daysBack = DefaultHistoryDays
	}

	since := domain.DayKey(now.AddDate(0, 0, -daysBack))

	digests, err := g.Digests.ListDigests(ctx, userID, since, label)
	if err != nil {
		return nil, fmt.Errorf("list digests for user %d: %w", userID, err)
	}

	return digests, nil
}
