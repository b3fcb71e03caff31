package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Supported user languages.
const (
	LanguageEnglish   = "en"
	LanguageUkrainian = "uk"
)

// User is a digest subscriber keyed by Telegram user id.
type User struct {
	ID         int64
	Username   string
	Language   string
	CreatedAt  time.Time
	LastSeenAt *time.Time
	BlockedAt  *time.Time
}

// LastSeen returns the last activity time, falling back to the creation time.
func (u User) LastSeen() time.Time {
	if u.LastSeenAt != nil {
		return *u.LastSeenAt
	}

	return u.CreatedAt
}

// Source is a followed channel.
type Source struct {
	ID              uuid.UUID
	DisplayTitle    string
	CanonicalHandle string
}

// Mention returns the handle prefixed with @.
func (s Source) Mention() string {
	return "@" + s.CanonicalHandle
}

// CanonicalHandle lower-cases a channel handle and strips surrounding
// whitespace and a leading @.
func CanonicalHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimLeft(handle, "@")

	return strings.ToLower(handle)
}

// RawMessage is an immutable capture of a channel post.
type RawMessage struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	ExternalID  int64
	Content     string
	OccurredAt  time.Time
	CollectedAt time.Time
}

// NewRawMessage is a message about to be inserted.
type NewRawMessage struct {
	SourceID   uuid.UUID
	ExternalID int64
	Content    string
	OccurredAt time.Time
}

// Topic is a user-declared interest.
type Topic struct {
	ID              uuid.UUID
	UserID          int64
	Text            string
	CachedEmbedding []float32
}

// HasEmbedding reports whether the topic vector is already cached.
func (t Topic) HasEmbedding() bool {
	return len(t.CachedEmbedding) > 0
}

// NormalizeTopic returns the form used for topic uniqueness.
func NormalizeTopic(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// FilteredMatch is a materialized relevance hit.
type FilteredMatch struct {
	ID              uuid.UUID
	UserID          int64
	RawMessageID    uuid.UUID
	SourceID        uuid.UUID
	Topic           string
	Content         string
	SimilarityScore float32
	OccurredAt      time.Time
}

// DigestMode tells which strategy produced a digest.
type DigestMode string

// Digest modes.
const (
	DigestModeTopic  DigestMode = "topic"
	DigestModeSource DigestMode = "source"
)

// Digest is a generated summary. Immutable once stored.
type Digest struct {
	ID        uuid.UUID
	UserID    int64
	Title     string
	Content   string
	Label     string
	Mode      DigestMode
	CreatedAt time.Time
}

// DailyStats accumulates per-user counters for one UTC day.
type DailyStats struct {
	UserID            int64
	Date              time.Time
	MessagesCollected int
	MessagesProcessed int
	SourcesProcessed  int
	MessagesFiltered  int
	TopicsMatched     int
	CollectionTime    time.Duration
	FilteringTime     time.Duration
}

// StatsDelta is an increment applied to DailyStats.
type StatsDelta struct {
	MessagesCollected int
	MessagesProcessed int
	SourcesProcessed  int
	MessagesFiltered  int
	TopicsMatched     int
	CollectionTime    time.Duration
	FilteringTime     time.Duration
}

// IsZero reports whether applying the delta would change nothing.
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// Apply adds the delta to the stats.
func (s DailyStats) Apply(d StatsDelta) DailyStats {
	s.MessagesCollected += d.MessagesCollected
	s.MessagesProcessed += d.MessagesProcessed
	s.SourcesProcessed += d.SourcesProcessed
	s.MessagesFiltered += d.MessagesFiltered
	s.TopicsMatched += d.TopicsMatched
	s.CollectionTime += d.CollectionTime
	s.FilteringTime += d.FilteringTime

	return s
}

// DayKey truncates t to the UTC calendar day.
func DayKey(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
