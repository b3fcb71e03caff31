// Package htmlutils prepares text for Telegram's HTML parse mode.
//
// Telegram counts message length in UTF-16 code units, so every limit in this
// package is measured that way.
package htmlutils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLength is Telegram's per-message limit.
const MaxMessageLength = 4096

const (
	paragraphSep = "\n\n"
	lineSep      = "\n"
	wordSep      = " "
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	tagRegex     = regexp.MustCompile(`<(/?)([a-zA-Z0-9-]+)([^>]*)>`)
)

// utf16Len returns the number of UTF-16 code units needed to encode the string.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// StripMarkup removes every tag from untrusted text and decodes entities,
// leaving plain text ready for Escape.
func StripMarkup(text string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(text)))
}

// Escape escapes text for HTML parse mode.
func Escape(text string) string {
	return html.EscapeString(text)
}

// Clean strips markup from untrusted text and escapes the remainder.
func Clean(text string) string {
	return Escape(StripMarkup(text))
}

// SplitSafely splits text into chunks no longer than limit, preferring
// paragraph breaks, then line breaks, then spaces. A single word longer than
// limit is cut by runes. Tags left open at a cut are closed at the end of the
// chunk and reopened at the start of the next one; the packing budget shrinks
// until the balanced chunks fit too.
func SplitSafely(text string, limit int) []string {
	if limit <= 0 || utf16Len(text) <= limit {
		return []string{text}
	}

	budget := limit

	for {
		var chunks []string

		splitLevel(text, budget, []string{paragraphSep, lineSep, wordSep}, &chunks)

		balanced := balanceTags(chunks)

		over := 0
		for _, c := range balanced {
			over = max(over, utf16Len(c)-limit)
		}

		if over == 0 || budget-over < 1 {
			return dropBlank(balanced)
		}

		budget -= over
	}
}

// splitLevel packs pieces separated by seps[0] into chunks, recursing to the
// next separator for pieces that do not fit on their own.
func splitLevel(text string, limit int, seps []string, out *[]string) {
	if utf16Len(text) <= limit {
		*out = append(*out, text)
		return
	}

	if len(seps) == 0 {
		*out = append(*out, splitRunes(text, limit)...)
		return
	}

	sep := seps[0]

	var current strings.Builder

	currentLen := 0
	sepLen := utf16Len(sep)

	flush := func() {
		if current.Len() > 0 {
			*out = append(*out, current.String())
			current.Reset()

			currentLen = 0
		}
	}

	for _, piece := range strings.Split(text, sep) {
		pieceLen := utf16Len(piece)

		if pieceLen > limit {
			flush()
			splitLevel(piece, limit, seps[1:], out)

			continue
		}

		extra := pieceLen
		if current.Len() > 0 {
			extra += sepLen
		}

		if currentLen+extra > limit {
			flush()

			extra = pieceLen
		}

		if current.Len() > 0 {
			current.WriteString(sep)
		}

		current.WriteString(piece)
		currentLen += extra
	}

	flush()
}

func splitRunes(text string, limit int) []string {
	var (
		out   []string
		start int
		units int
	)

	runes := []rune(text)

	for i, r := range runes {
		n := 1
		if r > 0xFFFF {
			n = 2
		}

		if units+n > limit {
			out = append(out, string(runes[start:i]))
			start = i
			units = 0
		}

		units += n
	}

	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}

	return out
}

// balanceTags makes every chunk self-contained HTML.
func balanceTags(chunks []string) []string {
	var open []string

	out := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		var sb strings.Builder

		for _, tag := range open {
			sb.WriteString(tag)
		}

		sb.WriteString(chunk)

		open = updateOpenTags(chunk, open)

		for i := len(open) - 1; i >= 0; i-- {
			sb.WriteString("</" + tagName(open[i]) + ">")
		}

		out = append(out, sb.String())
	}

	return out
}

// dropBlank removes chunks that carry only markup, such as a closing tag
// that landed in a chunk of its own.
func dropBlank(chunks []string) []string {
	out := chunks[:0]

	for _, c := range chunks {
		if StripMarkup(c) != "" {
			out = append(out, c)
		}
	}

	if len(out) == 0 {
		return chunks[:1]
	}

	return out
}

func updateOpenTags(text string, open []string) []string {
	for _, match := range tagRegex.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(match[2])

		if match[1] != "/" {
			open = append(open, match[0])
			continue
		}

		for i := len(open) - 1; i >= 0; i-- {
			if tagName(open[i]) == name {
				open = append(open[:i:i], open[i+1:]...)
				break
			}
		}
	}

	return open
}

func tagName(fullTag string) string {
	match := tagRegex.FindStringSubmatch(fullTag)
	if match == nil {
		return ""
	}

	return strings.ToLower(match[2])
}
