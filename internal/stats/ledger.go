// Package stats keeps the per-user daily processing ledger and derives the
// "time saved" figures shown under every digest.
package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
)

// Manual reading model.
const (
	avgWordsPerMessage       = 50
	readingSpeedWPM          = 200
	categorizationPerMessage = 3 * time.Second

	secondsPerMinute = 60
	secondsPerHour   = 3600
)

// Ledger applies additive deltas to DailyStats. Concurrent Add calls for the
// same user and day never lose an increment.
type Ledger struct {
	store  ports.StatsStore
	logger *zerolog.Logger
}

func NewLedger(store ports.StatsStore, logger *zerolog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// Add increments the user's counters for the UTC day containing day.
func (l *Ledger) Add(ctx context.Context, userID int64, day time.Time, delta domain.StatsDelta) error {
	if delta.IsZero() {
		return nil
	}

	if err := l.store.AddStats(ctx, userID, domain.DayKey(day), delta); err != nil {
		return fmt.Errorf("add stats for user %d: %w", userID, err)
	}

	return nil
}

// Get returns the user's stats for the UTC day containing day; a day with no
// activity yields zero counters.
func (l *Ledger) Get(ctx context.Context, userID int64, day time.Time) (domain.DailyStats, error) {
	s, err := l.store.GetStats(ctx, userID, domain.DayKey(day))
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("get stats for user %d: %w", userID, err)
	}

	return s, nil
}

// TimeAnalysis compares estimated manual effort with actual processing time.
type TimeAnalysis struct {
	EstimatedReading        time.Duration
	EstimatedCategorization time.Duration
	EstimatedManual         time.Duration
	ActualProcessing        time.Duration
	Saved                   time.Duration
	EfficiencyRatio         float64
}

// TimeSaved derives a TimeAnalysis from the day's counters.
func TimeSaved(s domain.DailyStats) TimeAnalysis {
	n := float64(s.MessagesProcessed)

	reading := time.Duration(n * avgWordsPerMessage / readingSpeedWPM * secondsPerMinute * float64(time.Second))
	categorization := time.Duration(s.MessagesProcessed) * categorizationPerMessage
	manual := reading + categorization
	actual := s.CollectionTime + s.FilteringTime

	a := TimeAnalysis{
		EstimatedReading:        reading,
		EstimatedCategorization: categorization,
		EstimatedManual:         manual,
		ActualProcessing:        actual,
		Saved:                   max(0, manual-actual),
	}

	if actual > 0 {
		a.EfficiencyRatio = manual.Seconds() / actual.Seconds()
	}

	return a
}

// FormatDuration renders d in seconds, minutes or hours with one decimal.
func FormatDuration(d time.Duration, lang string) string {
	secs := d.Seconds()

	switch {
	case secs < secondsPerMinute:
		return fmt.Sprintf("%.1f %s", secs, i18n.Text(lang, i18n.DurationSeconds))
	case secs < secondsPerHour:
		return fmt.Sprintf("%.1f %s", secs/secondsPerMinute, i18n.Text(lang, i18n.DurationMinutes))
	default:
		return fmt.Sprintf("%.1f %s", secs/secondsPerHour, i18n.Text(lang, i18n.DurationHours))
	}
}

// Block renders the localized statistics block in Telegram HTML. Topic mode
// reports filtered messages, source mode reports processed sources; the
// time-saved lines appear only when something was saved.
func Block(s domain.DailyStats, mode domain.DigestMode, lang string) string {
	analysis := TimeSaved(s)

	lines := []string{
		bold(i18n.Text(lang, i18n.StatsTitle)),
		bold(i18n.Text(lang, i18n.StatsMessagesCollected)) + fmt.Sprintf(" %d", s.MessagesCollected),
	}

	switch mode {
	case domain.DigestModeTopic:
		lines = append(lines, fmt.Sprintf("%s %d (%s)",
			bold(i18n.Text(lang, i18n.StatsMessagesFiltered)),
			s.MessagesFiltered,
			i18n.Text(lang, i18n.StatsMatchedTopicsFmt, s.TopicsMatched)))
	case domain.DigestModeSource:
		lines = append(lines, bold(i18n.Text(lang, i18n.StatsSourcesProcessed))+fmt.Sprintf(" %d", s.SourcesProcessed))
	}

	if analysis.Saved > 0 {
		lines = append(lines,
			fmt.Sprintf("%s ~%s (%s)",
				bold(i18n.Text(lang, i18n.StatsTimeSaved)),
				FormatDuration(analysis.Saved, lang),
				i18n.Text(lang, i18n.StatsVsManual)),
			fmt.Sprintf("%s %.1f%s",
				bold(i18n.Text(lang, i18n.StatsEfficiency)),
				analysis.EfficiencyRatio,
				i18n.Text(lang, i18n.StatsEfficiencySuffix)),
		)
	}

	return strings.Join(lines, "\n")
}

func bold(s string) string {
	return "<b>" + s + "</b>"
}
