package digest

import (
	"regexp"
	"strings"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/platform/htmlutils"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
	"github.com/lueurxax/channel-digest/internal/stats"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// header renders the headline and TL;DR lines shared by both modes.
func header(lang, headline, tldr string) []string {
	var parts []string

	if h := htmlutils.Clean(headline); h != "" {
		parts = append(parts, "<b>"+h+"</b>\n")
	}

	if t := htmlutils.Clean(tldr); t != "" {
		parts = append(parts, "<b>"+i18n.Text(lang, i18n.LabelTLDR)+"</b>\n "+t+"\n")
	}

	return parts
}

// footer appends the stats block.
func footer(parts []string, s domain.DailyStats, mode domain.DigestMode, lang string) string {
	parts = append(parts, stats.Block(s, mode, lang), "")

	return strings.Join(parts, "\n")
}

func cleanAll(items []string) []string {
	out := make([]string, 0, len(items))

	for _, s := range items {
		if c := htmlutils.Clean(s); c != "" {
			out = append(out, c)
		}
	}

	return out
}

// normalizeSourceKey makes "@Foo_Bar", "foo.bar" and "foobar" compare equal.
func normalizeSourceKey(value string) string {
	value = strings.TrimLeft(strings.TrimSpace(value), "@")

	return strings.ToLower(nonAlnum.ReplaceAllString(value, ""))
}

// Title is the stored digest title for the given groups.
func Title(mode domain.DigestMode, groups []Group) string {
	keys := strings.Join(Keys(groups), listSeparator)

	if mode == domain.DigestModeSource {
		return titleSources + keys
	}

	return titlePrefix + keys
}

// Label is the stored digest label used to look digests up by topic or source set.
func Label(mode domain.DigestMode, groups []Group) string {
	keys := strings.Join(Keys(groups), listSeparator)

	if mode == domain.DigestModeSource {
		return labelSources + keys
	}

	return keys
}
