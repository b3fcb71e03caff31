// Package i18n holds the user-facing strings of digests and notices in the
// supported languages. English is the fallback for anything unknown.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/lueurxax/channel-digest/internal/core/domain"
)

// Key names a catalog entry.
type Key string

// Catalog keys.
const (
	LabelTLDR    Key = "label_tldr"
	LabelSources Key = "label_sources"
	LabelThemes  Key = "label_themes"

	StatsTitle              Key = "stats_title"
	StatsMessagesCollected  Key = "stats_messages_collected"
	StatsMessagesFiltered   Key = "stats_messages_filtered"
	StatsMatchedTopicsFmt   Key = "stats_matched_topics_suffix"
	StatsSourcesProcessed   Key = "stats_sources_processed"
	StatsTimeSaved          Key = "stats_time_saved"
	StatsVsManual           Key = "stats_vs_manual"
	StatsEfficiency         Key = "stats_efficiency"
	StatsEfficiencySuffix   Key = "stats_efficiency_suffix"
	DurationSeconds         Key = "duration_seconds"
	DurationMinutes         Key = "duration_minutes"
	DurationHours           Key = "duration_hours"
	NothingInteresting      Key = "nothing_interesting"
	NoUpdatesForTopicsFmt   Key = "no_updates_topics"
	NoUpdatesFromSourcesFmt Key = "no_updates_sources"
)

var catalog = map[string]map[Key]string{
	domain.LanguageEnglish: {
		LabelTLDR:               "TL;DR:",
		LabelSources:            "Sources:",
		LabelThemes:             "Themes:",
		StatsTitle:              "🔍 Processing Statistics",
		StatsMessagesCollected:  "💬 Messages Collected:",
		StatsMessagesFiltered:   "🔬 Messages Filtered:",
		StatsMatchedTopicsFmt:   "matched %d topics",
		StatsSourcesProcessed:   "📡 Sources Processed:",
		StatsTimeSaved:          "⏰ Time Saved:",
		StatsVsManual:           "vs manual reading",
		StatsEfficiency:         "💡 Efficiency:",
		StatsEfficiencySuffix:   "x faster than manual processing",
		DurationSeconds:         "seconds",
		DurationMinutes:         "minutes",
		DurationHours:           "hours",
		NothingInteresting:      "🥱 Today I didn't find anything interesting for you, you can try to add more topics or sources, if you want",
		NoUpdatesForTopicsFmt:   "No relevant updates found for topics: %s today.",
		NoUpdatesFromSourcesFmt: "No relevant updates found from sources: %s today.",
	},
	domain.LanguageUkrainian: {
		LabelTLDR:               "Коротко:",
		LabelSources:            "Джерела:",
		LabelThemes:             "Теми:",
		StatsTitle:              "🔍 Статистика обробки",
		StatsMessagesCollected:  "💬 Зібрані повідомлення:",
		StatsMessagesFiltered:   "🔬 Відібрані повідомлення:",
		StatsMatchedTopicsFmt:   "відповідних тем: %d",
		StatsSourcesProcessed:   "📡 Опрацьовані джерела:",
		StatsTimeSaved:          "⏰ Зекономлено часу:",
		StatsVsManual:           "порівняно з ручним читанням",
		StatsEfficiency:         "💡 Ефективність:",
		StatsEfficiencySuffix:   "x разів швидше, ніж ручна обробка",
		DurationSeconds:         "секунд",
		DurationMinutes:         "хвилин",
		DurationHours:           "годин",
		NothingInteresting:      "🥱 Сьогодні не знайшов нічого цікавого для вас, ви можете спробувати додати більше тем або джерел, якщо хочете",
		NoUpdatesForTopicsFmt:   "Сьогодні не знайдено відповідних оновлень для тем: %s.",
		NoUpdatesFromSourcesFmt: "Сьогодні не знайдено відповідних оновлень з джерел: %s.",
	},
}

// Normalize maps a Telegram language code such as "uk-UA" to a supported
// language, defaulting to English.
func Normalize(code string) string {
	base, _ := language.Make(strings.ToLower(strings.TrimSpace(code))).Base()

	if _, ok := catalog[base.String()]; ok {
		return base.String()
	}

	return domain.LanguageEnglish
}

// Text returns the localized string for key, formatted with args when given.
func Text(lang string, key Key, args ...any) string {
	entries, ok := catalog[lang]
	if !ok {
		entries = catalog[domain.LanguageEnglish]
	}

	s, ok := entries[key]
	if !ok {
		s = catalog[domain.LanguageEnglish][key]
	}

	if len(args) > 0 {
		return fmt.Sprintf(s, args...)
	}

	return s
}

// LanguageName returns the English name of a supported language.
func LanguageName(lang string) string {
	return display.English.Languages().Name(language.Make(Normalize(lang)))
}

// Instruction tells a model which language to write in.
func Instruction(lang string) string {
	name := LanguageName(lang)

	return fmt.Sprintf("Respond in %s language. Use %s text for all content including headlines, summaries, and bullet points.", name, name)
}
