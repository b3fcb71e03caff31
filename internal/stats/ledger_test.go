package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/ports/mocks"
)

func newLedger() (*Ledger, *mocks.Store) {
	logger := zerolog.Nop()
	store := mocks.NewStore()

	return NewLedger(store, &logger), store
}

func TestLedger_AddIsAdditive(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	day := time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC)

	require.NoError(t, l.Add(ctx, 1, day, domain.StatsDelta{MessagesCollected: 3, CollectionTime: time.Second}))
	require.NoError(t, l.Add(ctx, 1, day.Add(time.Hour), domain.StatsDelta{MessagesCollected: 4, MessagesFiltered: 2}))

	got, err := l.Get(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, 7, got.MessagesCollected)
	assert.Equal(t, 2, got.MessagesFiltered)
	assert.Equal(t, time.Second, got.CollectionTime)
}

func TestLedger_ConcurrentAddsSumExactly(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, l.Add(ctx, 9, day, domain.StatsDelta{MessagesProcessed: 2, SourcesProcessed: 1}))
		}()
	}

	wg.Wait()

	got, err := l.Get(ctx, 9, day)
	require.NoError(t, err)
	assert.Equal(t, 100, got.MessagesProcessed)
	assert.Equal(t, 50, got.SourcesProcessed)
}

func TestLedger_GetMissingDayIsZero(t *testing.T) {
	l, _ := newLedger()

	got, err := l.Get(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Zero(t, got.MessagesCollected)
	assert.Zero(t, got.FilteringTime)
}

func TestLedger_DaysAreUTC(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger()
	kyiv := time.FixedZone("EET", 2*60*60)

	// 01:00 in UTC+2 is still the previous UTC day.
	require.NoError(t, l.Add(ctx, 1, time.Date(2026, 3, 3, 1, 0, 0, 0, kyiv), domain.StatsDelta{MessagesCollected: 1}))

	got, err := l.Get(ctx, 1, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessagesCollected)
}

func TestTimeSaved(t *testing.T) {
	// 100 messages: reading 100*50/200*60 = 1500s, categorization 300s.
	a := TimeSaved(domain.DailyStats{
		MessagesProcessed: 100,
		CollectionTime:    60 * time.Second,
		FilteringTime:     30 * time.Second,
	})

	assert.Equal(t, 1500*time.Second, a.EstimatedReading)
	assert.Equal(t, 300*time.Second, a.EstimatedCategorization)
	assert.Equal(t, 1800*time.Second, a.EstimatedManual)
	assert.Equal(t, 1710*time.Second, a.Saved)
	assert.InDelta(t, 20.0, a.EfficiencyRatio, 1e-9)
}

func TestTimeSaved_NoProcessingTime(t *testing.T) {
	a := TimeSaved(domain.DailyStats{MessagesProcessed: 1})

	assert.Zero(t, a.EfficiencyRatio)
	assert.Equal(t, a.EstimatedManual, a.Saved)
}

func TestTimeSaved_NeverNegative(t *testing.T) {
	a := TimeSaved(domain.DailyStats{MessagesProcessed: 1, CollectionTime: time.Hour})

	assert.Zero(t, a.Saved)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45.0 seconds", FormatDuration(45*time.Second, domain.LanguageEnglish))
	assert.Equal(t, "1.5 minutes", FormatDuration(90*time.Second, domain.LanguageEnglish))
	assert.Equal(t, "2.0 годин", FormatDuration(2*time.Hour, domain.LanguageUkrainian))
}

func TestBlock(t *testing.T) {
	s := domain.DailyStats{
		MessagesCollected: 12,
		MessagesProcessed: 100,
		MessagesFiltered:  5,
		TopicsMatched:     2,
		SourcesProcessed:  3,
		CollectionTime:    60 * time.Second,
		FilteringTime:     30 * time.Second,
	}

	topic := Block(s, domain.DigestModeTopic, domain.LanguageEnglish)
	assert.Contains(t, topic, "<b>💬 Messages Collected:</b> 12")
	assert.Contains(t, topic, "<b>🔬 Messages Filtered:</b> 5 (matched 2 topics)")
	assert.NotContains(t, topic, "Sources Processed")
	assert.Contains(t, topic, "~28.5 minutes (vs manual reading)")
	assert.Contains(t, topic, "<b>💡 Efficiency:</b> 20.0x faster than manual processing")

	source := Block(s, domain.DigestModeSource, domain.LanguageUkrainian)
	assert.Contains(t, source, "<b>📡 Опрацьовані джерела:</b> 3")
	assert.NotContains(t, source, "Відібрані")

	idle := Block(domain.DailyStats{}, domain.DigestModeTopic, domain.LanguageEnglish)
	assert.NotContains(t, idle, "Time Saved")
}
