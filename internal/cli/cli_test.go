package cli

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/platform/schedule"
)

func TestParseDaysBack(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"3", 3, false},
		{"72h", 3, false},
		{"25h", 2, false},
		{"2026-04-10", 6, false},
		{"April 14, 2026", 2, false},
		{"0", 0, true},
		{"2026-05-01", 0, true},
		{"someday", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDaysBack(tt.in, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = parseUserID("@bob")
	assert.True(t, errors.Is(err, coreerrors.ErrInvalidInput))
}

func TestNextSlots(t *testing.T) {
	from := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)

	slots, err := nextSlots(schedule.Daily("08:00", "20:00"), time.UTC, from, 3)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2026, 4, 15, 20, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 16, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 16, 20, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, slots)
}

func TestPrint_Formats(t *testing.T) {
	e := &env{format: formatJSON}

	var buf bytes.Buffer
	require.NoError(t, e.print(&buf, map[string]int{"sent": 2}, nil))
	assert.JSONEq(t, `{"sent": 2}`, buf.String())

	e.format = formatText
	buf.Reset()

	digests := []domain.Digest{{
		Title:     "Daily Summary: Economy",
		Mode:      domain.DigestModeTopic,
		Content:   "<b>Rates</b> &amp; bonds",
		CreatedAt: time.Date(2026, 4, 15, 8, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, e.print(&buf, digests, func(w io.Writer) { writeDigests(w, digests) }))
	assert.Contains(t, buf.String(), "=== Daily Summary: Economy [topic] 2026-04-15T08:00:00Z")
	assert.Contains(t, buf.String(), "Rates & bonds")
}

func TestRootCmd_Tree(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{
		{"ingest"}, {"filter"}, {"digest"}, {"deliver"}, {"cleanup"}, {"sweep"}, {"run"},
		{"stats"}, {"summaries"}, {"user", "add"}, {"user", "list"}, {"follow"},
		{"topic", "add"}, {"topic", "list"}, {"migrate"}, {"schedule"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	cleanup, _, err := root.Find([]string{"cleanup"})
	require.NoError(t, err)
	assert.NotNil(t, cleanup.Flags().Lookup("dry-run"))
}
