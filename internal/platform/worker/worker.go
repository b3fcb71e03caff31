// Package worker holds the background building blocks of the pipeline: a
// bounded pool for per-user fan-out, a poll loop with interval tasks, and a
// scheduler that fires jobs at wall-clock slots.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// ProcessFunc is called each iteration of a Loop.
type ProcessFunc func(ctx context.Context) error

// PeriodicTask runs at a fixed interval inside a Loop. The first run happens
// on the first iteration.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	lastRun  time.Time
}

// Config configures the worker loop behavior.
type Config struct {
	Name         string
	PollInterval time.Duration

	// Process is called each iteration to do the main work.
	Process ProcessFunc

	PeriodicTasks []PeriodicTask

	// OnError is called when Process returns an error.
	// Return true to continue, false to exit the loop.
	OnError func(err error) bool

	Logger *zerolog.Logger

	now func() time.Time
}

// Loop runs Process and due periodic tasks every PollInterval until the
// context is canceled or OnError asks to stop.
func Loop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)

	if cfg.now == nil {
		cfg.now = time.Now
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	tasks := make([]PeriodicTask, len(cfg.PeriodicTasks))
	copy(tasks, cfg.PeriodicTasks)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("worker loop %s: %w", cfg.Name, err)
		}

		runPeriodicTasks(ctx, tasks, cfg.now(), logger)

		if err := runProcessStep(ctx, cfg, logger); err != nil {
			return err
		}

		if err := Wait(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func runPeriodicTasks(ctx context.Context, tasks []PeriodicTask, now time.Time, logger *zerolog.Logger) {
	for i := range tasks {
		task := &tasks[i]
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		if !task.lastRun.IsZero() && now.Sub(task.lastRun) < task.Interval {
			continue
		}

		task.lastRun = now

		func() {
			defer RecoverPanic(logger, task.Name)

			logger.Debug().Str(logFieldTask, task.Name).Msg("running periodic task")

			if err := task.Run(ctx); err != nil {
				logger.Error().Err(err).Str(logFieldTask, task.Name).Msg("periodic task failed")
			}
		}()
	}
}

func runProcessStep(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Process == nil {
		return nil
	}

	if err := cfg.Process(ctx); err != nil {
		if cfg.OnError != nil {
			if !cfg.OnError(err) {
				return err
			}

			return nil
		}

		logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Msg("process error")
	}

	return nil
}

// Wait blocks until duration elapses or context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}

	nop := zerolog.Nop()

	return &nop
}
