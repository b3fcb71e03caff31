package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/platform/htmlutils"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
	"github.com/lueurxax/channel-digest/internal/stats"
)

const hoursPerDay = 24

type statsOutput struct {
	Stats    domain.DailyStats  `json:"stats"`
	Analysis stats.TimeAnalysis `json:"analysis"`
}

func newStatsCmd(e *env) *cobra.Command {
	var (
		userID int64
		date   string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a user's daily statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now()

			if date != "" {
				var err error
				if day, err = dateparse.ParseIn(date, time.UTC); err != nil {
					return fmt.Errorf("parse --date %q: %w", date, err)
				}
			}

			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			user, err := database.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}

			topics, err := database.ListUserTopics(cmd.Context(), userID)
			if err != nil {
				return err
			}

			s, err := stats.NewLedger(database, &e.logger).Get(cmd.Context(), userID, day)
			if err != nil {
				return err
			}

			mode := domain.DigestModeSource
			if len(topics) > 0 {
				mode = domain.DigestModeTopic
			}

			out := statsOutput{Stats: s, Analysis: stats.TimeSaved(s)}

			return e.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintln(w, htmlutils.StripMarkup(stats.Block(s, mode, i18n.Normalize(user.Language))))
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().StringVar(&date, "date", "", "Day to show, any common date format (default today, UTC)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newSummariesCmd(e *env) *cobra.Command {
	var (
		userID int64
		since  string
		label  string
	)

	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List a user's recent digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			daysBack, err := parseDaysBack(since, time.Now())
			if err != nil {
				return err
			}

			a, err := e.application(cmd.Context())
			if err != nil {
				return err
			}

			digests, err := a.RecentDigests(cmd.Context(), userID, daysBack, label)
			if err != nil {
				return err
			}

			return e.print(cmd.OutOrStdout(), digests, func(w io.Writer) {
				writeDigests(w, digests)
			})
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "User id")
	cmd.Flags().StringVar(&since, "since", "", "How far back: days (7), a duration (72h) or a date")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Only digests with this label")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func writeDigests(w io.Writer, digests []domain.Digest) {
	if len(digests) == 0 {
		fmt.Fprintln(w, "no digests")
		return
	}

	for _, d := range digests {
		fmt.Fprintf(w, "=== %s [%s] %s\n", d.Title, d.Mode, d.CreatedAt.Format(time.RFC3339))
		fmt.Fprintln(w, htmlutils.StripMarkup(d.Content))
		fmt.Fprintln(w)
	}
}

// parseDaysBack accepts a day count, a Go duration or a date; a date counts
// whole days back from now. Empty means the default window.
func parseDaysBack(value string, now time.Time) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("--since %q: %w", value, coreerrors.ErrInvalidInput)
		}

		return n, nil
	}

	var span time.Duration

	if d, err := time.ParseDuration(value); err == nil {
		span = d
	} else {
		t, err := dateparse.ParseIn(value, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parse --since %q: %w", value, err)
		}

		span = now.Sub(t)
	}

	if span <= 0 {
		return 0, fmt.Errorf("--since %q is in the future: %w", value, coreerrors.ErrInvalidInput)
	}

	days := int((span + hoursPerDay*time.Hour - 1) / (hoursPerDay * time.Hour))

	return days, nil
}
