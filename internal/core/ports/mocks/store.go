package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/ports"
)

var _ ports.Store = (*Store)(nil)

type messageKey struct {
	sourceID   uuid.UUID
	externalID int64
}

type matchKey struct {
	userID    int64
	messageID uuid.UUID
	topic     string
}

type statsKey struct {
	userID int64
	day    time.Time
}

// Store is a thread-safe in-memory implementation of ports.Store.
type Store struct {
	mu sync.RWMutex

	users    map[int64]domain.User
	sources  map[uuid.UUID]domain.Source
	follows  map[int64][]uuid.UUID
	messages map[uuid.UUID]domain.RawMessage
	msgKeys  map[messageKey]uuid.UUID
	topics   map[int64][]domain.Topic
	matches  map[matchKey]domain.FilteredMatch
	digests  []domain.Digest
	stats    map[statsKey]domain.DailyStats

	// Now supplies collected_at and created_at timestamps.
	Now func() time.Time

	// SaveTopicEmbeddingCalls counts topic cache writes.
	SaveTopicEmbeddingCalls int

	// InsertMessagesFn allows overriding InsertMessages behavior.
	InsertMessagesFn func(ctx context.Context, batch []domain.NewRawMessage) ([]domain.RawMessage, error)

	// SaveDigestFn allows overriding SaveDigest behavior.
	SaveDigestFn func(ctx context.Context, d domain.Digest) (domain.Digest, error)
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]domain.User),
		sources:  make(map[uuid.UUID]domain.Source),
		follows:  make(map[int64][]uuid.UUID),
		messages: make(map[uuid.UUID]domain.RawMessage),
		msgKeys:  make(map[messageKey]uuid.UUID),
		topics:   make(map[int64][]domain.Topic),
		matches:  make(map[matchKey]domain.FilteredMatch),
		stats:    make(map[statsKey]domain.DailyStats),
		Now:      time.Now,
	}
}

// AddUser seeds a user.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.Now()
	}

	s.users[u.ID] = u
}

// Follow subscribes a user to a handle, creating the source when needed.
func (s *Store) Follow(userID int64, handle string) domain.Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle = domain.CanonicalHandle(handle)

	src, ok := s.sourceByHandleLocked(handle)
	if !ok {
		src = domain.Source{ID: uuid.New(), CanonicalHandle: handle}
		s.sources[src.ID] = src
	}

	for _, id := range s.follows[userID] {
		if id == src.ID {
			return src
		}
	}

	s.follows[userID] = append(s.follows[userID], src.ID)

	return src
}

// AddTopic seeds a topic for a user.
func (s *Store) AddTopic(userID int64, text string, embedding []float32) domain.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := domain.Topic{ID: uuid.New(), UserID: userID, Text: text, CachedEmbedding: embedding}
	s.topics[userID] = append(s.topics[userID], t)

	return t
}

// AddMessage seeds a raw message directly, bypassing conflict handling.
func (s *Store) AddMessage(m domain.RawMessage) domain.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	s.messages[m.ID] = m
	s.msgKeys[messageKey{m.SourceID, m.ExternalID}] = m.ID

	return m
}

// Messages returns every stored message.
func (s *Store) Messages() []domain.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RawMessage, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}

	return out
}

// Matches returns every stored match.
func (s *Store) Matches() []domain.FilteredMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FilteredMatch, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}

	return out
}

// Digests returns every stored digest in insertion order.
func (s *Store) Digests() []domain.Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Digest, len(s.digests))
	copy(out, s.digests)

	return out
}

// ListUsers implements ports.UserStore.
func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	return users, nil
}

// GetUser implements ports.UserStore.
func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, coreerrors.ErrNotFound)
	}

	return u, nil
}

// TouchUser implements ports.UserStore.
func (s *Store) TouchUser(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}

	u.LastSeenAt = &at
	u.BlockedAt = nil
	s.users[id] = u

	return nil
}

// MarkUserBlocked implements ports.UserStore.
func (s *Store) MarkUserBlocked(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.BlockedAt != nil {
		return nil
	}

	u.BlockedAt = &at
	s.users[id] = u

	return nil
}

// ListUserSources implements ports.SourceStore.
func (s *Store) ListUserSources(_ context.Context, userID int64) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Source, 0, len(s.follows[userID]))
	for _, id := range s.follows[userID] {
		out = append(out, s.sources[id])
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalHandle < out[j].CanonicalHandle })

	return out, nil
}

// SyncSource implements ports.SourceStore.
func (s *Store) SyncSource(_ context.Context, lookupHandle, resolvedHandle, title string) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lookupHandle = domain.CanonicalHandle(lookupHandle)

	resolvedHandle = domain.CanonicalHandle(resolvedHandle)
	if resolvedHandle == "" {
		resolvedHandle = lookupHandle
	}

	src, ok := s.sourceByHandleLocked(lookupHandle)
	if !ok {
		src = domain.Source{ID: uuid.New()}
	}

	src.CanonicalHandle = resolvedHandle
	src.DisplayTitle = title
	s.sources[src.ID] = src

	return src, nil
}

// Source returns a stored source by id.
func (s *Store) Source(id uuid.UUID) (domain.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]

	return src, ok
}

func (s *Store) sourceByHandleLocked(handle string) (domain.Source, bool) {
	for _, src := range s.sources {
		if src.CanonicalHandle == handle {
			return src, true
		}
	}

	return domain.Source{}, false
}

// InsertMessages implements ports.MessageStore.
func (s *Store) InsertMessages(ctx context.Context, batch []domain.NewRawMessage) ([]domain.RawMessage, error) {
	if s.InsertMessagesFn != nil {
		return s.InsertMessagesFn(ctx, batch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted []domain.RawMessage

	for _, nm := range batch {
		key := messageKey{nm.SourceID, nm.ExternalID}
		if _, exists := s.msgKeys[key]; exists {
			continue
		}

		m := domain.RawMessage{
			ID:          uuid.New(),
			SourceID:    nm.SourceID,
			ExternalID:  nm.ExternalID,
			Content:     nm.Content,
			OccurredAt:  nm.OccurredAt,
			CollectedAt: s.Now(),
		}
		s.messages[m.ID] = m
		s.msgKeys[key] = m.ID
		inserted = append(inserted, m)
	}

	return inserted, nil
}

// GetMessage implements ports.MessageStore.
func (s *Store) GetMessage(_ context.Context, id uuid.UUID) (domain.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return domain.RawMessage{}, fmt.Errorf("message %s: %w", id, coreerrors.ErrNotFound)
	}

	return m, nil
}

// ListSourceMessagesSince implements ports.MessageStore.
func (s *Store) ListSourceMessagesSince(_ context.Context, sourceID uuid.UUID, since time.Time, limit int) ([]domain.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.RawMessage

	for _, m := range s.messages {
		if m.SourceID == sourceID && !m.OccurredAt.Before(since) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// ListUserTopics implements ports.TopicStore.
func (s *Store) ListUserTopics(_ context.Context, userID int64) ([]domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Topic, len(s.topics[userID]))
	copy(out, s.topics[userID])

	return out, nil
}

// SaveTopicEmbedding implements ports.TopicStore.
func (s *Store) SaveTopicEmbedding(_ context.Context, topicID uuid.UUID, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SaveTopicEmbeddingCalls++

	for userID, topics := range s.topics {
		for i := range topics {
			if topics[i].ID == topicID {
				s.topics[userID][i].CachedEmbedding = embedding
				return nil
			}
		}
	}

	return fmt.Errorf("topic %s: %w", topicID, coreerrors.ErrNotFound)
}

// MatchExists implements ports.MatchStore.
func (s *Store) MatchExists(_ context.Context, userID int64, messageID uuid.UUID, topic string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.matches[matchKey{userID, messageID, topic}]

	return ok, nil
}

// InsertMatch implements ports.MatchStore.
func (s *Store) InsertMatch(_ context.Context, m domain.FilteredMatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := matchKey{m.UserID, m.RawMessageID, m.Topic}
	if _, ok := s.matches[key]; ok {
		return false, nil
	}

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	s.matches[key] = m

	return true, nil
}

// ListMatchesSince implements ports.MatchStore.
func (s *Store) ListMatchesSince(_ context.Context, userID int64, since time.Time) ([]domain.FilteredMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FilteredMatch

	for _, m := range s.matches {
		if m.UserID == userID && !m.OccurredAt.Before(since) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}

		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	return out, nil
}

// SaveDigest implements ports.DigestStore.
func (s *Store) SaveDigest(ctx context.Context, d domain.Digest) (domain.Digest, error) {
	if s.SaveDigestFn != nil {
		return s.SaveDigestFn(ctx, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = uuid.New()
	d.CreatedAt = s.Now()
	s.digests = append(s.digests, d)

	return d, nil
}

// ListDigests implements ports.DigestStore.
func (s *Store) ListDigests(_ context.Context, userID int64, since time.Time, label string) ([]domain.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Digest

	for i := len(s.digests) - 1; i >= 0; i-- {
		d := s.digests[i]
		if d.UserID != userID || d.CreatedAt.Before(since) {
			continue
		}

		if label != "" && d.Label != label {
			continue
		}

		out = append(out, d)
	}

	return out, nil
}

// LatestDigest implements ports.DigestStore.
func (s *Store) LatestDigest(ctx context.Context, userID int64, since time.Time) (domain.Digest, error) {
	digests, err := s.ListDigests(ctx, userID, since, "")
	if err != nil {
		return domain.Digest{}, err
	}

	if len(digests) == 0 {
		return domain.Digest{}, fmt.Errorf("latest digest for %d: %w", userID, coreerrors.ErrNotFound)
	}

	return digests[0], nil
}

// AddStats implements ports.StatsStore.
func (s *Store) AddStats(_ context.Context, userID int64, day time.Time, d domain.StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statsKey{userID, domain.DayKey(day)}

	cur, ok := s.stats[key]
	if !ok {
		cur = domain.DailyStats{UserID: userID, Date: key.day}
	}

	s.stats[key] = cur.Apply(d)

	return nil
}

// GetStats implements ports.StatsStore.
func (s *Store) GetStats(_ context.Context, userID int64, day time.Time) (domain.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := statsKey{userID, domain.DayKey(day)}

	cur, ok := s.stats[key]
	if !ok {
		return domain.DailyStats{UserID: userID, Date: key.day}, nil
	}

	return cur, nil
}
