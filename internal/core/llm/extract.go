package llm

import (
	"encoding/json"
	"strings"
)

const markdownFence = "```"

// extractJSON pulls the first complete JSON object or array out of model
// output that may carry markdown fences or surrounding prose. The input is
// returned unchanged when no valid JSON value is found.
func extractJSON(text string) string {
	trimmed := stripFence(strings.TrimSpace(text))
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '{' && trimmed[i] != '[' {
			continue
		}

		if end := matchingClose(trimmed, i); end > 0 {
			candidate := trimmed[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}

	return text
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, markdownFence) {
		return s
	}

	s = strings.TrimPrefix(s, markdownFence)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}

	s = strings.TrimSuffix(strings.TrimSpace(s), markdownFence)

	return strings.TrimSpace(s)
}

// matchingClose returns the index of the bracket closing the one at start,
// ignoring brackets inside string literals, or -1.
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
