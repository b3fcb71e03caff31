package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEach_BoundsConcurrency(t *testing.T) {
	p := NewPool(3, nil)
	items := make([]int, 20)

	var inFlight, peak atomic.Int32

	errs := Each(context.Background(), p, items, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		return nil
	})

	require.Len(t, errs, 20)

	for _, err := range errs {
		assert.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestEach_ErrorsAndPanicsStayPerItem(t *testing.T) {
	p := NewPool(2, nil)
	boom := errors.New("boom")

	errs := Each(context.Background(), p, []int{0, 1, 2, 3}, func(_ context.Context, i int) error {
		switch i {
		case 1:
			return boom
		case 2:
			panic("bad user")
		default:
			return nil
		}
	})

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], boom)
	assert.ErrorIs(t, errs[2], ErrPanic)
	assert.NoError(t, errs[3])
}

func TestEach_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32

	errs := Each(ctx, NewPool(1, nil), []int{1, 2, 3}, func(context.Context, int) error {
		calls.Add(1)

		return nil
	})

	for i, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled, "item %d", i)
		}
	}
}

func TestEach_Empty(t *testing.T) {
	errs := Each(context.Background(), NewPool(4, nil), []string{}, func(context.Context, string) error {
		t.Fatal("should not be called")

		return nil
	})

	assert.Empty(t, errs)
}
