package htmlutils

import (
	"strings"
	"testing"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Hello World", expected: "Hello World"},
		{name: "tags removed", input: "<b>Bold</b> <script>x</script>text", expected: "Bold text"},
		{name: "entities decoded", input: "Apple &amp; Google", expected: "Apple & Google"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkup(tt.input); got != tt.expected {
				t.Errorf("StripMarkup() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	got := Clean(`<i>AT&T</i> > "others"`)
	want := "AT&amp;T &gt; &#34;others&#34;"

	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestSplitSafely_FitsInOne(t *testing.T) {
	parts := SplitSafely("short text", 100)
	if len(parts) != 1 || parts[0] != "short text" {
		t.Errorf("SplitSafely() = %q, want single unchanged part", parts)
	}
}

func TestSplitSafely_PrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)

	parts := SplitSafely(text, 90)

	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2: %q", len(parts), parts)
	}

	if parts[0] != strings.Repeat("a", 40)+"\n\n"+strings.Repeat("b", 40) {
		t.Errorf("first part = %q", parts[0])
	}

	if parts[1] != strings.Repeat("c", 40) {
		t.Errorf("second part = %q", parts[1])
	}
}

func TestSplitSafely_FallsBackToLinesAndWords(t *testing.T) {
	text := "one two three four five six seven eight nine ten"

	parts := SplitSafely(text, 15)

	for _, p := range parts {
		if utf16Len(p) > 15 {
			t.Errorf("part %q exceeds limit", p)
		}
	}

	if strings.Join(parts, " ") != text {
		t.Errorf("joined parts = %q, want %q", strings.Join(parts, " "), text)
	}
}

func TestSplitSafely_HardSplitsLongWord(t *testing.T) {
	word := strings.Repeat("я", 25)

	parts := SplitSafely(word, 10)

	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}

	if strings.Join(parts, "") != word {
		t.Error("hard split lost characters")
	}
}

func TestSplitSafely_SurrogatePairsCountDouble(t *testing.T) {
	parts := SplitSafely(strings.Repeat("😀", 6), 4)

	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3: %q", len(parts), parts)
	}
}

func TestSplitSafely_BalancesTags(t *testing.T) {
	text := "<b>" + strings.Repeat("word ", 10) + "</b>"

	parts := SplitSafely(text, 20)

	if len(parts) < 2 {
		t.Fatalf("expected a split, got %q", parts)
	}

	for _, p := range parts {
		if strings.Count(p, "<b>") != strings.Count(p, "</b>") {
			t.Errorf("unbalanced part %q", p)
		}
	}
}

func TestSplitSafely_BalancedChunksStayWithinLimit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
	}{
		{"bold run", "<b>" + strings.Repeat("word ", 30) + "</b>", 40},
		{"nested", "<b><i>" + strings.Repeat("nested words here\n", 12) + "</i></b>", 50},
		{"digest size", "<u>" + strings.Repeat("headline text ", 700) + "</u>", MaxMessageLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitSafely(tt.text, tt.limit)

			if len(parts) < 2 {
				t.Fatalf("expected a split, got %d part(s)", len(parts))
			}

			var words int

			for _, p := range parts {
				if n := utf16Len(p); n > tt.limit {
					t.Errorf("part is %d units, limit %d: %q", n, tt.limit, p)
				}

				for _, tag := range []string{"b", "i", "u"} {
					if strings.Count(p, "<"+tag+">") != strings.Count(p, "</"+tag+">") {
						t.Errorf("unbalanced <%s> in %q", tag, p)
					}
				}

				visible := strings.Fields(StripMarkup(p))
				if len(visible) == 0 {
					t.Errorf("part has no visible text: %q", p)
				}

				words += len(visible)
			}

			if want := len(strings.Fields(StripMarkup(tt.text))); words != want {
				t.Errorf("got %d words across parts, want %d", words, want)
			}
		})
	}
}
