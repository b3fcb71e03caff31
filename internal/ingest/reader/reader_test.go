package reader

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendPage_StopsAtFirstOlderPost(t *testing.T) {
	cutoff := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC)
	unix := func(t time.Time) int { return int(t.Unix()) }

	raw := []tg.MessageClass{
		&tg.Message{ID: 40, Message: "fresh", Date: unix(cutoff.Add(time.Hour))},
		&tg.MessageService{ID: 39},
		&tg.Message{ID: 38, Message: "at cutoff", Date: unix(cutoff)},
		&tg.Message{ID: 37, Message: "older", Date: unix(cutoff.Add(-time.Second))},
		&tg.Message{ID: 36, Message: "never reached", Date: unix(cutoff.Add(-time.Hour))},
	}

	out, offset, done := appendPage(nil, raw, 0, cutoff)
	require.True(t, done)
	assert.Equal(t, 37, offset)
	require.Len(t, out, 3)
	assert.Equal(t, int64(37), out[2].ID, "first older post is the last element")
	assert.Equal(t, cutoff, out[1].Date)
}

func TestAppendPage_KeepsOffsetWithoutMessages(t *testing.T) {
	out, offset, done := appendPage(nil, []tg.MessageClass{&tg.MessageEmpty{ID: 5}}, 12, time.Time{})
	assert.False(t, done)
	assert.Equal(t, 12, offset)
	assert.Empty(t, out)
}
