// Package ingest pulls recent posts from the channels that active users
// follow, stores new ones and indexes their embeddings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/activity"
	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/embeddings"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/core/textclean"
	"github.com/lueurxax/channel-digest/internal/core/vectorindex"
	"github.com/lueurxax/channel-digest/internal/ingest/reader"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
	"github.com/lueurxax/channel-digest/internal/platform/runid"
	"github.com/lueurxax/channel-digest/internal/platform/worker"
	"github.com/lueurxax/channel-digest/internal/stats"
)

// Defaults.
const (
	DefaultDaysBack        = 1
	DefaultPageSize        = 50
	DefaultMaxFloodRetries = 3
)

// Message outcome labels.
const (
	resultCollected = "collected"
	resultDuplicate = "duplicate"
	resultEmpty     = "empty"
	resultOld       = "old"

	statusOK     = "ok"
	statusFailed = "failed"

	logKeySource = "source"
	logKeyRunID  = "run_id"
)

var ErrFloodRetriesExhausted = errors.New("flood wait retries exhausted")

// Options tune one ingestion run.
type Options struct {
	DaysBack        int
	PageSize        int
	MaxFloodRetries int
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.DaysBack <= 0 {
		o.DaysBack = DefaultDaysBack
	}

	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}

	if o.MaxFloodRetries <= 0 {
		o.MaxFloodRetries = DefaultMaxFloodRetries
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

// Cutoff is UTC midnight DaysBack days before now. Messages at or after it
// are in range.
func (o Options) Cutoff() time.Time {
	o = o.withDefaults()

	return domain.DayKey(o.Now().AddDate(0, 0, -o.DaysBack))
}

// Report summarizes a run.
type Report struct {
	RunID             string `json:"run_id"`
	SourcesTotal      int    `json:"sources_total"`
	SourcesProcessed  int    `json:"sources_processed"`
	SourcesFailed     int    `json:"sources_failed"`
	MessagesProcessed int    `json:"messages_processed"`
	MessagesCollected int    `json:"messages_collected"`
	SkippedEmpty      int    `json:"skipped_empty"`
	SkippedOld        int    `json:"skipped_old"`
	VectorsIndexed    int    `json:"vectors_indexed"`
	IndexFailures     int    `json:"index_failures"`
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Users    ports.UserStore
	Sources  ports.SourceStore
	Messages ports.MessageStore
	Tracker  activity.Tracker
	Upstream reader.Upstream
	Embedder embeddings.Client
	Index    vectorindex.Index
	Ledger   *stats.Ledger
	Logger   *zerolog.Logger
}

type Engine struct {
	Deps
}

func New(deps Deps) *Engine {
	return &Engine{Deps: deps}
}

// followedSource is one upstream channel and every user following it.
type followedSource struct {
	handle    string
	followers []int64
	active    bool
}

// sourceResult is what a single source contributed to the run.
type sourceResult struct {
	processed    int
	collected    int
	skippedEmpty int
	skippedOld   int
	indexed      int
	indexFailed  int
}

// Run ingests every source followed by an active user. Per-source failures
// are counted in the report; only setup failures are returned.
func (e *Engine) Run(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	report := Report{RunID: runid.New()}
	cutoff := opts.Cutoff()

	logger := e.Logger.With().Str(logKeyRunID, report.RunID).Logger()

	sources, err := e.activeSources(ctx)
	if err != nil {
		return report, err
	}

	report.SourcesTotal = len(sources)
	logger.Info().Int("sources", len(sources)).Time("cutoff", cutoff).Msg("Starting ingestion")

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingestion interrupted: %w", err)
		}

		start := time.Now()

		res, err := e.ingestWithRetry(ctx, src, cutoff, opts, &logger)
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("ingestion interrupted: %w", ctx.Err())
			}

			report.SourcesFailed++

			observability.SourcesIngested.WithLabelValues(statusFailed).Inc()
			logger.Warn().Err(err).Str(logKeySource, src.handle).Msg("skipping source")

			continue
		}

		report.SourcesProcessed++
		report.MessagesProcessed += res.processed
		report.MessagesCollected += res.collected
		report.SkippedEmpty += res.skippedEmpty
		report.SkippedOld += res.skippedOld
		report.VectorsIndexed += res.indexed
		report.IndexFailures += res.indexFailed

		observability.SourcesIngested.WithLabelValues(statusOK).Inc()

		e.recordStats(ctx, src, res, time.Since(start), opts.Now(), &logger)
	}

	logger.Info().
		Int("sources_processed", report.SourcesProcessed).
		Int("sources_failed", report.SourcesFailed).
		Int("messages_collected", report.MessagesCollected).
		Msg("Finished ingestion")

	return report, nil
}

// activeSources unions the follows of active users, keyed by canonical handle.
// Followers include inactive users so collection stats reach everyone who
// follows an ingested source.
func (e *Engine) activeSources(ctx context.Context) ([]followedSource, error) {
	users, err := e.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	index := make(map[string]int)

	var all []followedSource

	for _, u := range users {
		eligible, err := activity.Eligible(ctx, e.Tracker, u)
		if err != nil {
			return nil, err
		}

		followed, err := e.Sources.ListUserSources(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("list sources for user %d: %w", u.ID, err)
		}

		for _, s := range followed {
			handle := domain.CanonicalHandle(s.CanonicalHandle)

			i, seen := index[handle]
			if !seen {
				i = len(all)
				index[handle] = i
				all = append(all, followedSource{handle: handle})
			}

			all[i].followers = append(all[i].followers, u.ID)
			all[i].active = all[i].active || eligible
		}
	}

	out := all[:0]

	for _, src := range all {
		if src.active {
			out = append(out, src)
		}
	}

	return out, nil
}

func (e *Engine) ingestWithRetry(
	ctx context.Context,
	src followedSource,
	cutoff time.Time,
	opts Options,
	logger *zerolog.Logger,
) (sourceResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := e.ingestSource(ctx, src, cutoff, opts.PageSize, logger)

		var fw *reader.FloodWaitError
		if !errors.As(err, &fw) {
			return res, err
		}

		if attempt >= opts.MaxFloodRetries {
			return res, fmt.Errorf("%s: %w", src.handle, ErrFloodRetriesExhausted)
		}

		observability.FloodWaits.Inc()
		logger.Warn().Str(logKeySource, src.handle).Dur("wait", fw.Duration).Int("attempt", attempt+1).Msg("flood wait")

		if err := worker.Wait(ctx, fw.Duration); err != nil {
			return res, err
		}
	}
}

func (e *Engine) ingestSource(
	ctx context.Context,
	src followedSource,
	cutoff time.Time,
	pageSize int,
	logger *zerolog.Logger,
) (sourceResult, error) {
	var res sourceResult

	ch, err := e.Upstream.ResolveChannel(ctx, src.handle)
	if err != nil {
		return res, fmt.Errorf("resolve %s: %w", src.handle, err)
	}

	source, err := e.Sources.SyncSource(ctx, src.handle, ch.Handle, ch.Title)
	if err != nil {
		return res, fmt.Errorf("sync source %s: %w", src.handle, err)
	}

	history, err := e.Upstream.History(ctx, ch, pageSize, cutoff)
	if err != nil {
		return res, fmt.Errorf("history %s: %w", src.handle, err)
	}

	var batch []domain.NewRawMessage

	for _, m := range history {
		res.processed++

		if m.Date.Before(cutoff) {
			res.skippedOld++

			observability.MessagesIngested.WithLabelValues(resultOld).Inc()

			break
		}

		if m.Text == "" {
			res.skippedEmpty++

			observability.MessagesIngested.WithLabelValues(resultEmpty).Inc()

			continue
		}

		batch = append(batch, domain.NewRawMessage{
			SourceID:   source.ID,
			ExternalID: m.ID,
			Content:    m.Text,
			OccurredAt: m.Date,
		})
	}

	inserted, err := e.Messages.InsertMessages(ctx, batch)
	if err != nil {
		return res, fmt.Errorf("store messages for %s: %w", src.handle, err)
	}

	res.collected = len(inserted)

	observability.MessagesIngested.WithLabelValues(resultCollected).Add(float64(res.collected))
	observability.MessagesIngested.WithLabelValues(resultDuplicate).Add(float64(len(batch) - res.collected))

	res.indexed, res.indexFailed = e.index(ctx, source.ID, inserted, logger)

	logger.Debug().
		Str(logKeySource, src.handle).
		Int("processed", res.processed).
		Int("collected", res.collected).
		Msg("Source ingested")

	return res, nil
}

// index embeds and upserts newly stored messages. Failures are logged and
// counted; stored rows stay.
func (e *Engine) index(ctx context.Context, sourceID uuid.UUID, msgs []domain.RawMessage, logger *zerolog.Logger) (indexed, failed int) {
	var (
		texts []string
		keep  []domain.RawMessage
	)

	for _, m := range msgs {
		cleaned := textclean.Clean(m.Content)
		if cleaned == "" {
			continue
		}

		texts = append(texts, cleaned)
		keep = append(keep, m)
	}

	if len(texts) == 0 {
		return 0, 0
	}

	vectors, err := e.Embedder.Embed(ctx, texts)
	if err != nil {
		logger.Error().Err(err).Str("source_id", sourceID.String()).Msg("failed to embed messages")

		return 0, len(texts)
	}

	points := make([]vectorindex.Point, len(keep))
	for i, m := range keep {
		points[i] = vectorindex.Point{
			MessageID:  m.ID,
			SourceID:   m.SourceID,
			OccurredAt: m.OccurredAt,
			Vector:     vectors[i],
		}
	}

	if err := e.Index.Upsert(ctx, points); err != nil {
		logger.Error().Err(err).Str("source_id", sourceID.String()).Msg("failed to index messages")

		return 0, len(points)
	}

	return len(points), 0
}

// recordStats credits each follower with the source's counters and an even
// share of the time spent on it.
func (e *Engine) recordStats(
	ctx context.Context,
	src followedSource,
	res sourceResult,
	elapsed time.Duration,
	now time.Time,
	logger *zerolog.Logger,
) {
	if len(src.followers) == 0 {
		return
	}

	share := elapsed / time.Duration(len(src.followers))

	for _, userID := range src.followers {
		delta := domain.StatsDelta{
			MessagesCollected: res.collected,
			MessagesProcessed: res.processed,
			SourcesProcessed:  1,
			CollectionTime:    share,
		}

		if err := e.Ledger.Add(ctx, userID, now, delta); err != nil {
			logger.Error().Err(err).Int64("user_id", userID).Msg("failed to record collection stats")
		}
	}
}
