// Package retention prunes old message vectors from the index. Raw messages
// and matches are kept; only the search side shrinks.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/channel-digest/internal/core/vectorindex"
)

// DefaultRetention keeps a month of vectors.
const DefaultRetention = 30 * 24 * time.Hour

type Report struct {
	Backend string    `json:"backend"`
	Cutoff  time.Time `json:"cutoff"`
	Deleted int64     `json:"deleted"`
	DryRun  bool      `json:"dry_run"`
}

type Cleaner struct {
	index     vectorindex.Index
	retention time.Duration
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewCleaner(index vectorindex.Index, retention time.Duration, logger *zerolog.Logger) *Cleaner {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Cleaner{index: index, retention: retention, logger: logger, now: time.Now}
}

// Run deletes vectors of messages older than the retention window. With
// dryRun it only counts them.
func (c *Cleaner) Run(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{
		Backend: c.index.Backend(),
		Cutoff:  c.now().Add(-c.retention).UTC(),
		DryRun:  dryRun,
	}

	n, err := c.index.DeleteOlderThan(ctx, report.Cutoff, dryRun)
	if err != nil {
		return report, fmt.Errorf("delete vectors before %s: %w", report.Cutoff.Format(time.RFC3339), err)
	}

	report.Deleted = n

	event := c.logger.Info()
	if n == 0 {
		event = c.logger.Debug()
	}

	event.
		Str("backend", report.Backend).
		Time("cutoff", report.Cutoff).
		Int64("deleted", n).
		Bool("dry_run", dryRun).
		Msg("Vector cleanup completed")

	return report, nil
}
