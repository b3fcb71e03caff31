// Package ports provides domain-centric interfaces for external dependencies.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern,
// allowing the pipeline stages to remain independent of infrastructure concerns.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/channel-digest/internal/core/domain"
)

// UserStore reads subscribers and records their activity.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	TouchUser(ctx context.Context, id int64, at time.Time) error
	MarkUserBlocked(ctx context.Context, id int64, at time.Time) error
}

// SourceStore handles channels and follow relationships.
type SourceStore interface {
	ListUserSources(ctx context.Context, userID int64) ([]domain.Source, error)
	SyncSource(ctx context.Context, lookupHandle, resolvedHandle, title string) (domain.Source, error)
}

// MessageStore handles raw message persistence.
type MessageStore interface {
	InsertMessages(ctx context.Context, batch []domain.NewRawMessage) ([]domain.RawMessage, error)
	GetMessage(ctx context.Context, id uuid.UUID) (domain.RawMessage, error)
	ListSourceMessagesSince(ctx context.Context, sourceID uuid.UUID, since time.Time, limit int) ([]domain.RawMessage, error)
}

// TopicStore handles user topics and their cached embeddings.
type TopicStore interface {
	ListUserTopics(ctx context.Context, userID int64) ([]domain.Topic, error)
	SaveTopicEmbedding(ctx context.Context, topicID uuid.UUID, embedding []float32) error
}

// MatchStore handles materialized relevance hits.
type MatchStore interface {
	MatchExists(ctx context.Context, userID int64, messageID uuid.UUID, topic string) (bool, error)
	InsertMatch(ctx context.Context, m domain.FilteredMatch) (bool, error)
	ListMatchesSince(ctx context.Context, userID int64, since time.Time) ([]domain.FilteredMatch, error)
}

// DigestStore handles generated digests.
type DigestStore interface {
	SaveDigest(ctx context.Context, d domain.Digest) (domain.Digest, error)
	ListDigests(ctx context.Context, userID int64, since time.Time, label string) ([]domain.Digest, error)
	LatestDigest(ctx context.Context, userID int64, since time.Time) (domain.Digest, error)
}

// StatsStore handles the additive per-user daily counters.
type StatsStore interface {
	AddStats(ctx context.Context, userID int64, day time.Time, d domain.StatsDelta) error
	GetStats(ctx context.Context, userID int64, day time.Time) (domain.DailyStats, error)
}

// Store combines every repository the pipeline needs.
type Store interface {
	UserStore
	SourceStore
	MessageStore
	TopicStore
	MatchStore
	DigestStore
	StatsStore
}
