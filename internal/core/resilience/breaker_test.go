package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	c := &clock{t: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
	b := New("openai", Config{Threshold: 2, ResetAfter: time.Minute}, WithClock(c.now))

	assert.True(t, b.Allow())
	assert.False(t, b.Failure())
	assert.True(t, b.Failure())
	assert.False(t, b.Allow())
	require.ErrorIs(t, b.Check(), ErrOpen)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	c := &clock{t: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}

	var transitions []string

	b := New("google", Config{Threshold: 1, ResetAfter: time.Minute},
		WithClock(c.now),
		OnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	b.Failure()
	c.advance(time.Minute)

	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow(), "first trial call passes")
	assert.False(t, b.Allow(), "second caller waits for the trial")

	assert.True(t, b.Failure(), "failed trial reopens")
	assert.False(t, b.Allow())

	c.advance(time.Minute)
	assert.True(t, b.Allow())
	b.Success()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	assert.Equal(t, []string{
		"closed>open",
		"open>half_open",
		"half_open>open",
		"open>half_open",
		"half_open>closed",
	}, transitions)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := New("anthropic", Config{Threshold: 2})

	b.Failure()
	b.Success()
	assert.False(t, b.Failure(), "count restarts after a success")
	assert.Equal(t, StateClosed, b.State())
}

func TestConfig_Defaults(t *testing.T) {
	b := New("x", Config{})
	assert.Equal(t, DefaultConfig(), b.cfg)
}
