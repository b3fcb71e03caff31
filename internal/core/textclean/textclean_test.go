package textclean

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "urls", input: "Read https://example.com/a?b=1 now", want: "Read now"},
		{name: "mentions and hashtags", input: "@channel says #breaking news", want: "says news"},
		{name: "emoji", input: "🔥 Rates up 🚀 again ✅", want: "Rates up again"},
		{name: "whitespace", input: "a\n\n  b\tc  ", want: "a b c"},
		{name: "cyrillic kept", input: "Новини дня 🇺🇦", want: "Новини дня"},
		{name: "too short", input: "ok 👍 #tag", want: ""},
		{name: "only noise", input: "https://t.me/x @x #x", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestClean_Truncates(t *testing.T) {
	got := Clean(strings.Repeat("ж", MaxLength+50))

	assert.Equal(t, MaxLength+len(ellipsis), utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, ellipsis))
}
