// Package textclean normalizes channel posts before they are embedded.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinLength is the shortest cleaned text worth embedding, in runes.
	MinLength = 3
	// MaxLength caps cleaned text, in runes, before the ellipsis.
	MaxLength = 2000

	ellipsis = "..."
)

var (
	urlRegex     = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)
	mentionRegex = regexp.MustCompile(`@\w+`)
	hashtagRegex = regexp.MustCompile(`#\w+`)
	spaceRegex   = regexp.MustCompile(`\s+`)

	emojiRegex = regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F64F}` + // emoticons
		`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
		`\x{1F680}-\x{1F6FF}` + // transport & map
		`\x{1F1E0}-\x{1F1FF}` + // flags
		`\x{1F900}-\x{1FAFF}` + // supplemental symbols
		`\x{2600}-\x{27BF}` + // misc symbols, dingbats
		`\x{FE0F}\x{200D}` + // variation selector, zero-width joiner
		`]+`)
)

// Clean removes URLs, @mentions, #hashtags and emoji, collapses whitespace
// and truncates long text. Text shorter than MinLength after cleaning
// yields "".
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = urlRegex.ReplaceAllString(text, "")
	text = mentionRegex.ReplaceAllString(text, "")
	text = hashtagRegex.ReplaceAllString(text, "")
	text = emojiRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))

	n := utf8.RuneCountInString(text)
	if n < MinLength {
		return ""
	}

	if n > MaxLength {
		text = string([]rune(text)[:MaxLength]) + ellipsis
	}

	return text
}
