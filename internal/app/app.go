// Package app wires the pipeline together and runs it.
//
// The App type builds every dependency from configuration and exposes the
// pipeline stages individually, on a wall-clock schedule, or on demand
// through the admin HTTP server:
//
//   - ingest: read followed channels into the content store and vector index
//   - filter: match recent messages against user topics
//   - digest: generate per-user summaries
//   - deliver: post today's digest (or a notice) through the bot
//   - cleanup: prune old vectors
//   - sweep: report inactive users
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/activity"
	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/embeddings"
	"github.com/lueurxax/channel-digest/internal/core/llm"
	"github.com/lueurxax/channel-digest/internal/core/vectorindex"
	"github.com/lueurxax/channel-digest/internal/ingest"
	"github.com/lueurxax/channel-digest/internal/ingest/reader"
	"github.com/lueurxax/channel-digest/internal/output/delivery"
	"github.com/lueurxax/channel-digest/internal/output/digest"
	"github.com/lueurxax/channel-digest/internal/platform/config"
	"github.com/lueurxax/channel-digest/internal/platform/observability"
	"github.com/lueurxax/channel-digest/internal/platform/schedule"
	"github.com/lueurxax/channel-digest/internal/process/filter"
	"github.com/lueurxax/channel-digest/internal/process/retention"
	"github.com/lueurxax/channel-digest/internal/stats"
	db "github.com/lueurxax/channel-digest/internal/storage"
)

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
	loc      *time.Location

	embedder  embeddings.Client
	generator llm.Generator
	index     vectorindex.Index
	reader    *reader.Reader
	sender    delivery.Sender

	tracker  *activity.StoreTracker
	recorder *activity.Recorder
	ledger   *stats.Ledger

	stages  *stageRunner
	closers []func() error
}

// New creates the providers and the vector index. The caller owns database.
func New(ctx context.Context, cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*App, error) {
	loc, err := time.LoadLocation(schedule.NormalizeTimezone(cfg.Timezone))
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	a := &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
		loc:      loc,
		tracker:  activity.NewTracker(cfg.InactiveAfter, nil),
		recorder: activity.NewRecorder(database, logger),
		ledger:   stats.NewLedger(database, logger),
	}

	a.embedder = a.newEmbeddingClient(ctx)
	a.generator = a.newLLMClient(ctx)

	if a.index, err = a.newVectorIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.reader = reader.New(reader.Config{
		APIID:       cfg.TGAPIID,
		APIHash:     cfg.TGAPIHash,
		Phone:       cfg.TGPhone,
		Password:    cfg.TG2FAPassword,
		SessionPath: cfg.TGSessionPath,
		ProxyURL:    cfg.TGProxyURL,
	}, logger)

	if a.sender, err = a.newSender(); err != nil {
		a.Close()
		return nil, err
	}

	a.stages = a.newStageRunner()

	return a, nil
}

// Close releases provider connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close dependency")
		}
	}

	a.closers = nil
}

func (a *App) newEmbeddingClient(ctx context.Context) embeddings.Client {
	registry, closers := embeddings.NewClient(ctx, embeddings.Config{
		OpenAIAPIKey:  a.cfg.OpenAIAPIKey,
		OpenAIModel:   a.cfg.EmbeddingModel,
		GoogleAPIKey:  a.cfg.GoogleAPIKey,
		RateLimit:     a.cfg.RateLimitRPS,
		ProviderOrder: a.cfg.EmbeddingProviderOrder,
		Dimensions:    a.cfg.EmbeddingDimensions,
	}, a.logger)

	a.closers = append(a.closers, closers...)

	return registry
}

func (a *App) newLLMClient(ctx context.Context) llm.Generator {
	registry := llm.NewRegistryFromConfig(ctx, llm.Config{
		GoogleAPIKey:    a.cfg.GoogleAPIKey,
		OpenAIAPIKey:    a.cfg.OpenAIAPIKey,
		AnthropicAPIKey: a.cfg.AnthropicAPIKey,
		ProviderOrder:   a.cfg.LLMProviderOrder,
		Model:           a.cfg.LLMModel,
		Temperature:     a.cfg.LLMTemperature,
		RateLimitRPS:    a.cfg.RateLimitRPS,
	}, a.logger)

	a.closers = append(a.closers, registry.Close)

	return registry
}

func (a *App) newVectorIndex(ctx context.Context) (vectorindex.Index, error) {
	var idx vectorindex.Index

	switch a.cfg.VectorBackend {
	case config.VectorBackendQdrant:
		q, err := vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			Host:       a.cfg.QdrantHost,
			Port:       a.cfg.QdrantPort,
			APIKey:     a.cfg.QdrantAPIKey,
			UseTLS:     a.cfg.QdrantUseTLS,
			Collection: a.cfg.QdrantCollection,
		}, a.logger)
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, q.Close)
		idx = q
	default:
		idx = vectorindex.NewPgvectorIndex(a.database)
	}

	idx = vectorindex.WithMetrics(idx)

	if err := idx.EnsureCollection(ctx, a.cfg.EmbeddingDimensions); err != nil {
		return nil, fmt.Errorf("preparing %s vector index: %w", idx.Backend(), err)
	}

	a.logger.Info().Str("backend", idx.Backend()).Msg("Vector index ready")

	return idx, nil
}

func (a *App) newSender() (delivery.Sender, error) {
	if a.cfg.BotToken == "" {
		a.logger.Warn().Msg("BOT_TOKEN not set, deliveries will only be logged")
		return logSender{logger: a.logger}, nil
	}

	s, err := delivery.NewBotSender(a.cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("bot initialization failed: %w", err)
	}

	return s, nil
}

// logSender stands in for the bot when no token is configured.
type logSender struct {
	logger *zerolog.Logger
}

func (s logSender) SendHTML(_ context.Context, chatID int64, text string) error {
	s.logger.Info().Int64("user_id", chatID).Int("length", len(text)).Msg("Delivery skipped, no bot token")
	return nil
}

// Ingest reads every active source inside one MTProto session.
func (a *App) Ingest(ctx context.Context) (ingest.Report, error) {
	engine := ingest.New(ingest.Deps{
		Users:    a.database,
		Sources:  a.database,
		Messages: a.database,
		Tracker:  a.tracker,
		Upstream: a.reader,
		Embedder: a.embedder,
		Index:    a.index,
		Ledger:   a.ledger,
		Logger:   a.logger,
	})

	var report ingest.Report

	err := a.reader.Run(ctx, func(ctx context.Context) error {
		var err error
		report, err = engine.Run(ctx, ingest.Options{
			DaysBack:        a.cfg.IngestDaysBack,
			PageSize:        a.cfg.IngestPageSize,
			MaxFloodRetries: a.cfg.MaxFloodRetries,
		})

		return err
	})
	if err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}

	return report, nil
}

// Filter matches recent messages against topics, for one user when userID is set.
func (a *App) Filter(ctx context.Context, userID int64) (filter.Report, error) {
	f := filter.New(filter.Deps{
		Users:    a.database,
		Sources:  a.database,
		Messages: a.database,
		Topics:   a.database,
		Matches:  a.database,
		Embedder: a.embedder,
		Index:    a.index,
		Ledger:   a.ledger,
		Logger:   a.logger,
	})

	minScore := a.cfg.FilterMinScore

	return f.Run(ctx, filter.Options{
		DaysBack: a.cfg.FilterDaysBack,
		TopK:     a.cfg.FilterTopK,
		MinScore: &minScore,
		UserID:   userID,
		Location: a.loc,
	})
}

func (a *App) digestGenerator() *digest.Generator {
	return digest.New(digest.Deps{
		Users:    a.database,
		Sources:  a.database,
		Messages: a.database,
		Topics:   a.database,
		Matches:  a.database,
		Digests:  a.database,
		LLM:      a.generator,
		Ledger:   a.ledger,
		Logger:   a.logger,
	})
}

// Digest generates summaries, for one user when userID is set.
func (a *App) Digest(ctx context.Context, userID int64) (digest.Report, error) {
	return a.digestGenerator().Run(ctx, digest.Options{
		DaysBack:     a.cfg.DigestDaysBack,
		MinGroupSize: a.cfg.DigestMinGroupSize,
		BatchSize:    a.cfg.DigestBatchSize,
		SourceLimit:  a.cfg.DigestSourceLimit,
		UserID:       userID,
	})
}

// RecentDigests lists a user's stored digests, newest first.
func (a *App) RecentDigests(ctx context.Context, userID int64, daysBack int, label string) ([]domain.Digest, error) {
	return a.digestGenerator().RecentDigests(ctx, userID, daysBack, label, time.Now())
}

// Deliver posts today's digests.
func (a *App) Deliver(ctx context.Context) (delivery.Report, error) {
	d := delivery.NewDispatcher(delivery.Deps{
		Users:    a.database,
		Topics:   a.database,
		Digests:  a.database,
		Sender:   a.sender,
		Tracker:  a.tracker,
		Recorder: a.recorder,
		Ledger:   a.ledger,
		Logger:   a.logger,
	})

	return d.Run(ctx)
}

// Cleanup prunes vectors past the retention window.
func (a *App) Cleanup(ctx context.Context, dryRun bool) (retention.Report, error) {
	return retention.NewCleaner(a.index, a.cfg.VectorRetention, a.logger).Run(ctx, dryRun)
}

// Sweep reports inactive and blocked users.
func (a *App) Sweep(ctx context.Context) (activity.SweepResult, error) {
	return activity.Sweep(ctx, a.database, a.tracker, a.logger)
}

// RunStage runs one stage by name with stage locking and metrics.
func (a *App) RunStage(ctx context.Context, stage string) (any, error) {
	return a.stages.Run(ctx, stage)
}

// StartHealthServer serves health checks, metrics and manual stage runs.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger).WithRunner(a)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}
