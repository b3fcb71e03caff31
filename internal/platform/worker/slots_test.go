package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/platform/schedule"
)

func TestDueSlot(t *testing.T) {
	plan := schedule.Daily("08:00", "20:00")
	slot := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		lastSlot time.Time
		wantDue  bool
	}{
		{"exactly at slot", slot, slot.Add(-12 * time.Hour), true},
		{"after slot", slot.Add(5 * time.Minute), slot.Add(-12 * time.Hour), true},
		{"already ran", slot.Add(5 * time.Minute), slot, false},
		{"before slot", slot.Add(-time.Minute), slot.Add(-12 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, due := DueSlot(plan, time.UTC, tt.now, tt.lastSlot)
			assert.Equal(t, tt.wantDue, due)

			if due {
				assert.True(t, got.Equal(slot))
			}
		})
	}
}

func TestSlotScheduler_RunsOncePerSlotInOrder(t *testing.T) {
	logger := zerolog.Nop()
	now := time.Date(2026, 1, 2, 7, 59, 0, 0, time.UTC)

	s := NewSlotScheduler(time.UTC, &logger)
	s.now = func() time.Time { return now }

	var order []string

	for _, name := range []string{"collect", "digest"} {
		s.AddTask(&SlotTask{
			Name: name,
			Plan: schedule.Daily("08:00"),
			Run: func(context.Context, *zerolog.Logger) error {
				order = append(order, name)
				return nil
			},
		})
	}

	require.NoError(t, s.CheckAndRun(context.Background()))
	assert.Empty(t, order, "yesterday's slot is not replayed")

	now = now.Add(2 * time.Minute)

	require.NoError(t, s.CheckAndRun(context.Background()))
	require.NoError(t, s.CheckAndRun(context.Background()))
	assert.Equal(t, []string{"collect", "digest"}, order)

	next, ok := s.NextSlot("digest")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC), next)
}

func TestSlotScheduler_ErrorsAndPanics(t *testing.T) {
	logger := zerolog.Nop()
	now := time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC)

	s := NewSlotScheduler(time.UTC, &logger)
	s.now = func() time.Time { return now }

	var reported error

	s.AddTask(&SlotTask{
		Name:    "failing",
		Plan:    schedule.Daily("07:30"),
		Run:     func(context.Context, *zerolog.Logger) error { return errors.New("boom") },
		OnError: func(err error) { reported = err },
	})
	s.AddTask(&SlotTask{
		Name: "panicking",
		Plan: schedule.Daily("07:30"),
		Run:  func(context.Context, *zerolog.Logger) error { panic("bad") },
	})

	now = now.Add(time.Hour)

	require.NoError(t, s.CheckAndRun(context.Background()))
	require.EqualError(t, reported, "boom")

	last, ok := s.LastSlot("panicking")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 2, 7, 30, 0, 0, time.UTC), last)
}

func TestLoop_PeriodicTasksAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs, steps int

	err := Loop(ctx, Config{
		Name:         "test",
		PollInterval: time.Millisecond,
		PeriodicTasks: []PeriodicTask{{
			Name:     "cleanup",
			Interval: time.Hour,
			Run: func(context.Context) error {
				runs++
				return nil
			},
		}},
		Process: func(context.Context) error {
			steps++
			if steps == 3 {
				return errors.New("stop")
			}

			return nil
		},
		OnError: func(error) bool { return false },
	})

	require.EqualError(t, err, "stop")
	assert.Equal(t, 1, runs, "interval task runs once within its interval")
	assert.Equal(t, 3, steps)
}

func TestWait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
