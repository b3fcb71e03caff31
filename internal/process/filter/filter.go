// Package filter materializes, per user and topic, the recent messages whose
// vectors are close to the topic's embedding.
package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/embeddings"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/core/vectorindex"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
	"github.com/lueurxax/channel-digest/internal/platform/runid"
	"github.com/lueurxax/channel-digest/internal/stats"
)

// Defaults.
const (
	DefaultDaysBack = 1
	DefaultTopK     = 30
	DefaultMinScore = 0.3
)

const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusSkipped = "skipped"

	logKeyUserID = "user_id"
	logKeyTopic  = "topic"
)

// Options tune one filter run.
type Options struct {
	DaysBack int
	TopK     int
	// MinScore is the lowest accepted similarity. Nil means DefaultMinScore.
	MinScore *float32
	// UserID restricts the run to one user when non-zero.
	UserID   int64
	Location *time.Location
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.DaysBack <= 0 {
		o.DaysBack = DefaultDaysBack
	}

	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}

	if o.MinScore == nil {
		v := float32(DefaultMinScore)
		o.MinScore = &v
	}

	if o.Location == nil {
		o.Location = time.UTC
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

// Cutoff is midnight, in the configured location, DaysBack days before now.
func (o Options) Cutoff() time.Time {
	o = o.withDefaults()

	t := o.Now().In(o.Location).AddDate(0, 0, -o.DaysBack)

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, o.Location)
}

// Report summarizes a run.
type Report struct {
	RunID            string `json:"run_id"`
	UsersProcessed   int    `json:"users_processed"`
	UsersFailed      int    `json:"users_failed"`
	MessagesFiltered int    `json:"messages_filtered"`
	TopicsMatched    int    `json:"topics_matched"`
}

// Deps are the collaborators of a Filter.
type Deps struct {
	Users    ports.UserStore
	Sources  ports.SourceStore
	Messages ports.MessageStore
	Topics   ports.TopicStore
	Matches  ports.MatchStore
	Embedder embeddings.Client
	Index    vectorindex.Index
	Ledger   *stats.Ledger
	Logger   *zerolog.Logger
}

type Filter struct {
	Deps
}

func New(deps Deps) *Filter {
	return &Filter{Deps: deps}
}

type userResult struct {
	filtered      int
	topicsMatched int
}

// Run filters every user with topics. A failing user is counted and the run
// moves on.
func (f *Filter) Run(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	report := Report{RunID: runid.New()}
	cutoff := opts.Cutoff()

	logger := f.Logger.With().Str("run_id", report.RunID).Logger()

	users, err := f.users(ctx, opts.UserID)
	if err != nil {
		return report, err
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("filtering interrupted: %w", err)
		}

		topics, err := f.Topics.ListUserTopics(ctx, u.ID)
		if err != nil {
			report.UsersFailed++

			observability.FilterUsers.WithLabelValues(statusFailed).Inc()
			logger.Error().Err(err).Int64(logKeyUserID, u.ID).Msg("failed to list topics")

			continue
		}

		if len(topics) == 0 {
			continue
		}

		report.UsersProcessed++
		start := time.Now()

		res, err := f.filterUser(ctx, u, topics, cutoff, opts, &logger)
		if err != nil {
			report.UsersFailed++

			observability.FilterUsers.WithLabelValues(statusFailed).Inc()
			logger.Error().Err(err).Int64(logKeyUserID, u.ID).Msg("filtering failed for user")
		} else {
			observability.FilterUsers.WithLabelValues(statusOK).Inc()
		}

		report.MessagesFiltered += res.filtered
		report.TopicsMatched += res.topicsMatched

		delta := domain.StatsDelta{
			MessagesFiltered: res.filtered,
			TopicsMatched:    res.topicsMatched,
			FilteringTime:    time.Since(start),
		}

		if err := f.Ledger.Add(ctx, u.ID, opts.Now(), delta); err != nil {
			logger.Error().Err(err).Int64(logKeyUserID, u.ID).Msg("failed to record filtering stats")
		}
	}

	logger.Info().
		Int("users", report.UsersProcessed).
		Int("messages_filtered", report.MessagesFiltered).
		Int("topics_matched", report.TopicsMatched).
		Msg("Filtering completed")

	return report, nil
}

func (f *Filter) users(ctx context.Context, only int64) ([]domain.User, error) {
	if only != 0 {
		u, err := f.Users.GetUser(ctx, only)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", only, err)
		}

		return []domain.User{u}, nil
	}

	users, err := f.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (f *Filter) filterUser(
	ctx context.Context,
	u domain.User,
	topics []domain.Topic,
	cutoff time.Time,
	opts Options,
	logger *zerolog.Logger,
) (userResult, error) {
	var res userResult

	sources, err := f.Sources.ListUserSources(ctx, u.ID)
	if err != nil {
		return res, fmt.Errorf("list sources: %w", err)
	}

	if len(sources) == 0 {
		observability.FilterUsers.WithLabelValues(statusSkipped).Inc()

		return res, nil
	}

	sourceIDs := make([]uuid.UUID, len(sources))
	allowed := make(map[uuid.UUID]struct{}, len(sources))

	for i, s := range sources {
		sourceIDs[i] = s.ID
		allowed[s.ID] = struct{}{}
	}

	topics, err = f.ensureEmbeddings(ctx, topics, logger)
	if err != nil {
		logger.Error().Err(err).Int64(logKeyUserID, u.ID).Msg("failed to embed topics")

		return res, nil
	}

	for _, topic := range topics {
		if !topic.HasEmbedding() {
			continue
		}

		hits, err := f.Index.Search(ctx, topic.CachedEmbedding, sourceIDs, opts.TopK, *opts.MinScore)
		if err != nil {
			logger.Error().Err(err).Int64(logKeyUserID, u.ID).Str(logKeyTopic, topic.Text).Msg("vector search failed")

			continue
		}

		added, err := f.storeHits(ctx, u.ID, topic.Text, hits, allowed, cutoff)
		if err != nil {
			return res, err
		}

		if added > 0 {
			res.filtered += added
			res.topicsMatched++
		}
	}

	observability.FilterMatches.Add(float64(res.filtered))

	return res, nil
}

// ensureEmbeddings fills missing topic vectors with one batch call and
// caches them on the topic rows. Vectors from a fallback provider are used
// for this run only, since they live in a different space than the primary
// provider's message vectors.
func (f *Filter) ensureEmbeddings(ctx context.Context, topics []domain.Topic, logger *zerolog.Logger) ([]domain.Topic, error) {
	var (
		missing []int
		texts   []string
	)

	for i, t := range topics {
		if !t.HasEmbedding() {
			missing = append(missing, i)
			texts = append(texts, t.Text)
		}
	}

	if len(missing) == 0 {
		return topics, nil
	}

	batch, err := f.embed(ctx, texts)
	if err != nil {
		return topics, fmt.Errorf("embed topics: %w", err)
	}

	if len(batch.Vectors) != len(missing) {
		return topics, fmt.Errorf("embed topics: %w", embeddings.ErrVectorCountMismatch)
	}

	out := make([]domain.Topic, len(topics))
	copy(out, topics)

	if batch.Fallback {
		logger.Warn().
			Str("provider", string(batch.Provider)).
			Int("topics", len(missing)).
			Msg("topic vectors came from a fallback provider, not caching")
	}

	for j, i := range missing {
		out[i].CachedEmbedding = batch.Vectors[j]

		if batch.Fallback {
			continue
		}

		if err := f.Topics.SaveTopicEmbedding(ctx, out[i].ID, batch.Vectors[j]); err != nil {
			return out, fmt.Errorf("cache embedding for topic %q: %w", out[i].Text, err)
		}
	}

	return out, nil
}

func (f *Filter) embed(ctx context.Context, texts []string) (embeddings.Batch, error) {
	if bc, ok := f.Embedder.(embeddings.BatchClient); ok {
		return bc.EmbedBatch(ctx, texts)
	}

	vectors, err := f.Embedder.Embed(ctx, texts)

	return embeddings.Batch{Vectors: vectors}, err
}

func (f *Filter) storeHits(
	ctx context.Context,
	userID int64,
	topic string,
	hits []vectorindex.Hit,
	allowed map[uuid.UUID]struct{},
	cutoff time.Time,
) (int, error) {
	added := 0

	for _, hit := range hits {
		msg, err := f.Messages.GetMessage(ctx, hit.MessageID)
		if errors.Is(err, coreerrors.ErrNotFound) {
			continue
		}

		if err != nil {
			return added, fmt.Errorf("get message %s: %w", hit.MessageID, err)
		}

		if msg.OccurredAt.Before(cutoff) {
			continue
		}

		if _, ok := allowed[msg.SourceID]; !ok {
			continue
		}

		exists, err := f.Matches.MatchExists(ctx, userID, msg.ID, topic)
		if err != nil {
			return added, fmt.Errorf("check match: %w", err)
		}

		if exists {
			continue
		}

		inserted, err := f.Matches.InsertMatch(ctx, domain.FilteredMatch{
			ID:              uuid.New(),
			UserID:          userID,
			RawMessageID:    msg.ID,
			SourceID:        msg.SourceID,
			Topic:           topic,
			Content:         msg.Content,
			SimilarityScore: hit.Score,
			OccurredAt:      msg.OccurredAt,
		})
		if err != nil {
			return added, fmt.Errorf("insert match: %w", err)
		}

		if inserted {
			added++
		}
	}

	return added, nil
}
