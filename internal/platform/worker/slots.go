package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/platform/schedule"
)

// SlotTask runs once per slot of its plan.
type SlotTask struct {
	Name string
	Plan schedule.Plan
	Run  func(ctx context.Context, logger *zerolog.Logger) error

	// OnError is called when Run returns an error. Failed slots are not retried.
	OnError func(err error)

	lastSlot time.Time
}

// SlotScheduler fires tasks at wall-clock slots in one timezone. Call
// CheckAndRun from a poll loop; a slot that passed while the process was
// down is not replayed.
type SlotScheduler struct {
	tasks  []*SlotTask
	loc    *time.Location
	logger *zerolog.Logger
	now    func() time.Time
}

func NewSlotScheduler(loc *time.Location, logger *zerolog.Logger) *SlotScheduler {
	if loc == nil {
		loc = time.UTC
	}

	return &SlotScheduler{loc: loc, logger: logger, now: time.Now}
}

// AddTask registers a task. Slots before now are considered done.
func (s *SlotScheduler) AddTask(task *SlotTask) {
	if prev, ok, err := task.Plan.PreviousTimeBefore(s.loc, s.now()); err == nil && ok {
		task.lastSlot = prev
	}

	s.tasks = append(s.tasks, task)
}

// CheckAndRun runs, in registration order, every task whose latest slot has
// not run yet.
func (s *SlotScheduler) CheckAndRun(ctx context.Context) error {
	now := s.now()

	for _, task := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		slot, due := DueSlot(task.Plan, s.loc, now, task.lastSlot)
		if !due {
			continue
		}

		task.lastSlot = slot
		s.runTask(ctx, task, slot)
	}

	return nil
}

func (s *SlotScheduler) runTask(ctx context.Context, task *SlotTask, slot time.Time) {
	logger := s.logger.With().Str(logFieldTask, task.Name).Time("slot", slot).Logger()

	defer RecoverPanic(&logger, task.Name)

	logger.Info().Msgf("Starting scheduled %s", task.Name)

	if err := task.Run(ctx, &logger); err != nil {
		logger.Error().Err(err).Msgf("failed to run scheduled %s", task.Name)

		if task.OnError != nil {
			task.OnError(err)
		}
	}
}

// LastSlot returns the latest slot the task has run for.
func (s *SlotScheduler) LastSlot(taskName string) (time.Time, bool) {
	for _, task := range s.tasks {
		if task.Name == taskName {
			return task.lastSlot, true
		}
	}

	return time.Time{}, false
}

// NextSlot reports when the named task fires next.
func (s *SlotScheduler) NextSlot(taskName string) (time.Time, bool) {
	for _, task := range s.tasks {
		if task.Name == taskName {
			next, ok, err := task.Plan.NextAfter(s.loc, s.now())
			return next, ok && err == nil
		}
	}

	return time.Time{}, false
}

// DueSlot reports whether a slot of plan at or before now is later than
// lastSlot, returning that slot.
func DueSlot(plan schedule.Plan, loc *time.Location, now, lastSlot time.Time) (time.Time, bool) {
	slot, ok, err := plan.PreviousTimeBefore(loc, now.Add(time.Nanosecond))
	if err != nil || !ok {
		return time.Time{}, false
	}

	if !slot.After(lastSlot) {
		return time.Time{}, false
	}

	return slot, true
}
