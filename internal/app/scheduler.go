package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/platform/config"
	"github.com/lueurxax/channel-digest/internal/platform/schedule"
	"github.com/lueurxax/channel-digest/internal/platform/worker"
)

const (
	schedulerPollInterval = 30 * time.Second
	sweepInterval         = 24 * time.Hour

	taskCollect = "collect"
	taskDigest  = "digest"
)

// Schedule returns the pipeline schedule from SCHEDULE_FILE, or built from
// COLLECT_TIMES and DIGEST_TIMES in TIMEZONE.
func Schedule(cfg *config.Config) (schedule.Pipeline, error) {
	if cfg.ScheduleFile != "" {
		p, err := schedule.Load(cfg.ScheduleFile)
		if err != nil {
			return schedule.Pipeline{}, err
		}

		if p.Timezone == "" {
			p.Timezone = cfg.Timezone
		}

		return p, nil
	}

	return schedule.FromTimes(cfg.Timezone, cfg.CollectTimes, cfg.DigestTimes)
}

// RunScheduler runs collection (ingest then filter) and digest (generate then
// deliver) at their slots, with vector cleanup and the inactivity sweep on
// fixed intervals.
func (a *App) RunScheduler(ctx context.Context) error {
	pipeline, err := Schedule(a.cfg)
	if err != nil {
		return err
	}

	loc, err := pipeline.Location()
	if err != nil {
		return err
	}

	slots := worker.NewSlotScheduler(loc, a.logger)
	slots.AddTask(&worker.SlotTask{
		Name: taskCollect,
		Plan: pipeline.Collect,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			return a.runChain(ctx, StageIngest, StageFilter)
		},
	})
	slots.AddTask(&worker.SlotTask{
		Name: taskDigest,
		Plan: pipeline.Digest,
		Run: func(ctx context.Context, _ *zerolog.Logger) error {
			return a.runChain(ctx, StageDigest, StageDeliver)
		},
	})

	for _, name := range []string{taskCollect, taskDigest} {
		if next, ok := slots.NextSlot(name); ok {
			a.logger.Info().Str("task", name).Time("next", next).Msg("Scheduled")
		}
	}

	return worker.Loop(ctx, worker.Config{
		Name:         "scheduler",
		PollInterval: schedulerPollInterval,
		Process:      slots.CheckAndRun,
		PeriodicTasks: []worker.PeriodicTask{
			{Name: StageCleanup, Interval: a.cfg.CleanupInterval, Run: a.stageTask(StageCleanup)},
			{Name: StageSweep, Interval: sweepInterval, Run: a.stageTask(StageSweep)},
		},
		OnError: func(err error) bool {
			a.logger.Error().Err(err).Msg("scheduler step failed")
			return ctx.Err() == nil
		},
		Logger: a.logger,
	})
}

// RunOnce runs the whole pipeline a single time.
func (a *App) RunOnce(ctx context.Context) error {
	return a.runChain(ctx, StageIngest, StageFilter, StageDigest, StageDeliver)
}

// runChain runs stages in order and stops at the first failure.
func (a *App) runChain(ctx context.Context, stages ...string) error {
	for _, s := range stages {
		if _, err := a.RunStage(ctx, s); err != nil {
			return fmt.Errorf("pipeline stopped: %w", err)
		}
	}

	return nil
}

func (a *App) stageTask(name string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := a.RunStage(ctx, name)
		return err
	}
}
