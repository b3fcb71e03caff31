package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPanic marks a job that panicked instead of returning.
var ErrPanic = errors.New("job panicked")

// Pool runs jobs on a fixed number of goroutines pulling from a shared queue.
type Pool struct {
	size   int
	logger *zerolog.Logger
}

func NewPool(size int, logger *zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{size: size, logger: getLogger(logger)}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Each calls fn for every item with at most pool-size calls in flight and
// returns one error slot per item. A panicking call is recovered and reported
// as ErrPanic. Items not yet started when ctx is canceled get ctx.Err().
func Each[T any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, item T) error) []error {
	errs := make([]error, len(items))
	queue := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < min(p.size, len(items)); w++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for i := range queue {
				errs[i] = p.runJob(ctx, worker, func(ctx context.Context) error { return fn(ctx, items[i]) })
			}
		}(w)
	}

	for i := range items {
		select {
		case queue <- i:
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				errs[j] = ctx.Err()
			}

			close(queue)
			wg.Wait()

			return errs
		}
	}

	close(queue)
	wg.Wait()

	return errs
}

func (p *Pool) runJob(ctx context.Context, worker int, job func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Int(logFieldWorker, worker).Msg("recovered from panic in pool job")

			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return job(ctx)
}
