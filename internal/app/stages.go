package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/platform/observability"
	db "github.com/lueurxax/channel-digest/internal/storage"
)

// Stage names accepted by RunStage and POST /runs/{stage}.
const (
	StageIngest  = "ingest"
	StageFilter  = "filter"
	StageDigest  = "digest"
	StageDeliver = "deliver"
	StageCleanup = "cleanup"
	StageSweep   = "sweep"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusBusy    = "busy"
)

// locker serializes a stage across instances.
type locker interface {
	WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error
}

type stage struct {
	lockID int64
	run    func(ctx context.Context) (any, error)
}

// stageRunner runs named stages at most once at a time per process and,
// when a lock id is set, per database.
type stageRunner struct {
	stages map[string]stage
	locker locker
	logger *zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

func (a *App) newStageRunner() *stageRunner {
	return &stageRunner{
		locker:  a.database,
		logger:  a.logger,
		running: map[string]bool{},
		stages: map[string]stage{
			StageIngest: {db.LockIDIngest, func(ctx context.Context) (any, error) {
				return a.Ingest(ctx)
			}},
			StageFilter: {db.LockIDFilter, func(ctx context.Context) (any, error) {
				return a.Filter(ctx, 0)
			}},
			StageDigest: {db.LockIDDigest, func(ctx context.Context) (any, error) {
				return a.Digest(ctx, 0)
			}},
			StageDeliver: {db.LockIDDeliver, func(ctx context.Context) (any, error) {
				return a.Deliver(ctx)
			}},
			StageCleanup: {db.LockIDCleanup, func(ctx context.Context) (any, error) {
				return a.Cleanup(ctx, false)
			}},
			StageSweep: {0, func(ctx context.Context) (any, error) {
				return a.Sweep(ctx)
			}},
		},
	}
}

func (r *stageRunner) Run(ctx context.Context, name string) (any, error) {
	st, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", observability.ErrUnknownStage, name)
	}

	if !r.acquire(name) {
		observability.StageRuns.WithLabelValues(name, statusBusy).Inc()
		return nil, fmt.Errorf("%w: %s", observability.ErrStageBusy, name)
	}
	defer r.release(name)

	logger := r.logger.With().Str("stage", name).Logger()
	start := time.Now()

	var report any

	run := func(ctx context.Context) error {
		var err error
		report, err = st.run(ctx)

		return err
	}

	var err error
	if st.lockID != 0 && r.locker != nil {
		err = r.locker.WithAdvisoryLock(ctx, st.lockID, run)
	} else {
		err = run(ctx)
	}

	observability.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, db.ErrLockHeld):
		observability.StageRuns.WithLabelValues(name, statusBusy).Inc()
		logger.Warn().Msg("Stage is running on another instance")

		return nil, fmt.Errorf("%w: %s", observability.ErrStageBusy, name)
	case err != nil:
		observability.StageRuns.WithLabelValues(name, statusError).Inc()

		return report, fmt.Errorf("stage %s: %w", name, err)
	}

	observability.StageRuns.WithLabelValues(name, statusSuccess).Inc()
	observability.StageLastSuccess.WithLabelValues(name).SetToCurrentTime()
	logger.Info().Dur("duration", time.Since(start)).Msg("Stage completed")

	return report, nil
}

func (r *stageRunner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running[name] {
		return false
	}

	r.running[name] = true

	return true
}

func (r *stageRunner) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.running, name)
}
