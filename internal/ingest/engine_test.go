package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/activity"
	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/embeddings"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/ports/mocks"
	"github.com/lueurxax/channel-digest/internal/core/vectorindex"
	"github.com/lueurxax/channel-digest/internal/ingest/reader"
	"github.com/lueurxax/channel-digest/internal/stats"
)

var testNow = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

type fakeUpstream struct {
	mu        sync.Mutex
	channels  map[string]reader.Channel
	history   map[string][]reader.Message
	floods    map[string]int
	resolves  map[string]int
	forbidden map[string]bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		channels:  make(map[string]reader.Channel),
		history:   make(map[string][]reader.Message),
		floods:    make(map[string]int),
		resolves:  make(map[string]int),
		forbidden: make(map[string]bool),
	}
}

func (f *fakeUpstream) add(handle, title string, msgs ...reader.Message) {
	f.channels[handle] = reader.Channel{ID: int64(len(f.channels) + 1), Handle: handle, Title: title}
	f.history[handle] = msgs
}

func (f *fakeUpstream) ResolveChannel(_ context.Context, handle string) (reader.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolves[handle]++

	if f.forbidden[handle] {
		return reader.Channel{}, coreerrors.ErrNotAChannel
	}

	if f.floods[handle] > 0 {
		f.floods[handle]--

		return reader.Channel{}, &reader.FloodWaitError{Duration: time.Millisecond}
	}

	ch, ok := f.channels[handle]
	if !ok {
		return reader.Channel{}, coreerrors.ErrChannelNotFound
	}

	return ch, nil
}

func (f *fakeUpstream) History(_ context.Context, ch reader.Channel, limit int, cutoff time.Time) ([]reader.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []reader.Message

	for _, m := range f.history[ch.Handle] {
		if len(out) == limit {
			break
		}

		out = append(out, m)

		if m.Date.Before(cutoff) {
			break
		}
	}

	return out, nil
}

type fixture struct {
	store    *mocks.Store
	upstream *fakeUpstream
	index    *vectorindex.MemoryIndex
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zerolog.Nop()
	store := mocks.NewStore()
	store.Now = func() time.Time { return testNow }
	up := newFakeUpstream()
	idx := vectorindex.NewMemoryIndex()

	engine := New(Deps{
		Users:    store,
		Sources:  store,
		Messages: store,
		Tracker:  activity.NewTracker(7*24*time.Hour, func() time.Time { return testNow }),
		Upstream: up,
		Embedder: embeddings.NewMockProviderWithDimensions(8),
		Index:    idx,
		Ledger:   stats.NewLedger(store, &logger),
		Logger:   &logger,
	})

	return &fixture{store: store, upstream: up, index: idx, engine: engine}
}

func opts() Options {
	return Options{Now: func() time.Time { return testNow }}
}

func msg(id int64, text string, at time.Time) reader.Message {
	return reader.Message{ID: id, Text: text, Date: at}
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "@NewsChan")
	f.upstream.add("newschan", "News Channel",
		msg(3, "Central bank raises rates by half a point", testNow.Add(-time.Hour)),
		msg(2, "", testNow.Add(-2*time.Hour)),
		msg(1, "Parliament passes the budget bill tonight", testNow.Add(-3*time.Hour)),
	)

	report, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.SourcesTotal)
	assert.Equal(t, 1, report.SourcesProcessed)
	assert.Equal(t, 3, report.MessagesProcessed, "empty posts are still counted as processed")
	assert.Equal(t, 2, report.MessagesCollected)
	assert.Equal(t, 1, report.SkippedEmpty)
	assert.Equal(t, 2, report.VectorsIndexed)
	assert.Equal(t, 2, f.index.Len())

	s, err := f.store.GetStats(ctx, 1, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, s.MessagesCollected)
	assert.Equal(t, 3, s.MessagesProcessed)
	assert.Equal(t, 1, s.SourcesProcessed)

	require.Len(t, f.store.Messages(), 2)
	for _, m := range f.store.Messages() {
		src, ok := f.store.Source(m.SourceID)
		require.True(t, ok)
		assert.Equal(t, "News Channel", src.DisplayTitle)
		assert.Equal(t, "newschan", src.CanonicalHandle)
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "chan")
	f.upstream.add("chan", "Chan", msg(1, "A story worth reading today", testNow.Add(-time.Hour)))

	first, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, first.MessagesCollected)

	second, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, second.MessagesProcessed)
	assert.Zero(t, second.MessagesCollected)
	assert.Zero(t, second.VectorsIndexed)
	assert.Len(t, f.store.Messages(), 1)
}

func TestRun_CutoffBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cutoff := opts().Cutoff()

	require.Equal(t, time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC), cutoff)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "chan")
	f.upstream.add("chan", "Chan",
		msg(4, "Fresh post inside the window", testNow.Add(-time.Hour)),
		msg(3, "Post exactly at the cutoff", cutoff),
		msg(2, "Post a millisecond before the cutoff", cutoff.Add(-time.Millisecond)),
		msg(1, "Older still and never reached", cutoff.Add(-time.Hour)),
	)

	report, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)
	assert.Equal(t, 2, report.MessagesCollected)
	assert.Equal(t, 1, report.SkippedOld)
	assert.Equal(t, 3, report.MessagesProcessed, "scan stops at the first older post")
	assert.Len(t, f.store.Messages(), 2)
}

func TestRun_DedupesSourcesAndSplitsTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.AddUser(domain.User{ID: 2, CreatedAt: testNow})
	f.store.Follow(1, "shared")
	f.store.Follow(2, "@Shared")
	f.upstream.add("shared", "Shared", msg(1, "One post for two readers", testNow.Add(-time.Hour)))

	report, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesTotal)
	assert.Equal(t, 1, f.upstream.resolves["shared"])

	for _, id := range []int64{1, 2} {
		s, err := f.store.GetStats(ctx, id, testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, s.MessagesCollected)
		assert.Equal(t, 1, s.SourcesProcessed)
	}
}

func TestRun_CreditsInactiveCoFollowers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.AddUser(domain.User{ID: 2, CreatedAt: testNow.Add(-30 * 24 * time.Hour)})
	f.store.Follow(1, "shared")
	f.store.Follow(2, "shared")
	f.store.Follow(2, "dormant")
	f.upstream.add("shared", "Shared",
		msg(2, "Post that both followers hear about", testNow.Add(-time.Hour)),
		msg(1, "", testNow.Add(-2*time.Hour)),
	)

	report, err := f.engine.Run(ctx, opts())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesTotal, "a source followed only by inactive users is not ingested")
	assert.Zero(t, f.upstream.resolves["dormant"])

	for _, id := range []int64{1, 2} {
		s, err := f.store.GetStats(ctx, id, testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, s.MessagesCollected)
		assert.Equal(t, 2, s.MessagesProcessed)
		assert.Equal(t, 1, s.SourcesProcessed)
	}
}

func TestRun_SkipsInactiveAndBlockedUsers(t *testing.T) {
	f := newFixture(t)
	blocked := testNow.Add(-time.Hour)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow.Add(-30 * 24 * time.Hour)})
	f.store.AddUser(domain.User{ID: 2, CreatedAt: testNow, BlockedAt: &blocked})
	f.store.Follow(1, "a")
	f.store.Follow(2, "b")

	report, err := f.engine.Run(context.Background(), opts())
	require.NoError(t, err)
	assert.Zero(t, report.SourcesTotal)
}

func TestRun_FailedSourceDoesNotStopRun(t *testing.T) {
	f := newFixture(t)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "agroup")
	f.store.Follow(1, "good")
	f.upstream.forbidden["agroup"] = true
	f.upstream.add("good", "Good", msg(1, "Something happened somewhere", testNow.Add(-time.Hour)))

	report, err := f.engine.Run(context.Background(), opts())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesFailed)
	assert.Equal(t, 1, report.SourcesProcessed)
	assert.Equal(t, 1, report.MessagesCollected)
}

func TestRun_FloodWaitRetries(t *testing.T) {
	f := newFixture(t)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "busy")
	f.upstream.add("busy", "Busy", msg(1, "Eventually fetched post", testNow.Add(-time.Hour)))
	f.upstream.floods["busy"] = 2

	report, err := f.engine.Run(context.Background(), opts())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesProcessed)
	assert.Equal(t, 3, f.upstream.resolves["busy"])
}

func TestRun_FloodWaitExhausted(t *testing.T) {
	f := newFixture(t)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "busy")
	f.upstream.add("busy", "Busy", msg(1, "Never fetched", testNow.Add(-time.Hour)))
	f.upstream.floods["busy"] = 10

	o := opts()
	o.MaxFloodRetries = 2

	report, err := f.engine.Run(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SourcesFailed)
	assert.Equal(t, 3, f.upstream.resolves["busy"])
}

type failingIndex struct {
	*vectorindex.MemoryIndex
}

func (failingIndex) Upsert(context.Context, []vectorindex.Point) error {
	return errors.New("index down")
}

func TestRun_IndexFailureKeepsRows(t *testing.T) {
	f := newFixture(t)
	f.engine.Index = failingIndex{vectorindex.NewMemoryIndex()}

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "chan")
	f.upstream.add("chan", "Chan", msg(1, "Stored even when indexing fails", testNow.Add(-time.Hour)))

	report, err := f.engine.Run(context.Background(), opts())
	require.NoError(t, err)
	assert.Equal(t, 1, report.MessagesCollected)
	assert.Equal(t, 1, report.IndexFailures)
	assert.Len(t, f.store.Messages(), 1)
}

func TestRun_CanceledContext(t *testing.T) {
	f := newFixture(t)

	f.store.AddUser(domain.User{ID: 1, CreatedAt: testNow})
	f.store.Follow(1, "chan")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Run(ctx, opts())
	assert.ErrorIs(t, err, context.Canceled)
}
