package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lueurxax/channel-digest/internal/app"
)

func newStageCmds(e *env) []*cobra.Command {
	var cmds []*cobra.Command

	simple := []struct {
		name  string
		short string
	}{
		{app.StageIngest, "Read followed channels into the store and vector index"},
		{app.StageDeliver, "Send today's digests through the bot"},
		{app.StageSweep, "Report inactive and blocked users"},
	}

	for _, s := range simple {
		name := s.name
		cmds = append(cmds, &cobra.Command{
			Use:   name,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return e.runWithApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
					return a.RunStage(ctx, name)
				})
			},
		})
	}

	var userID int64

	filterCmd := &cobra.Command{
		Use:   app.StageFilter,
		Short: "Match recent messages against user topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runWithApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if userID != 0 {
					return a.Filter(ctx, userID)
				}

				return a.RunStage(ctx, app.StageFilter)
			})
		},
	}
	filterCmd.Flags().Int64VarP(&userID, "user", "u", 0, "Only this user id")

	digestCmd := &cobra.Command{
		Use:   app.StageDigest,
		Short: "Generate digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runWithApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if userID != 0 {
					return a.Digest(ctx, userID)
				}

				return a.RunStage(ctx, app.StageDigest)
			})
		},
	}
	digestCmd.Flags().Int64VarP(&userID, "user", "u", 0, "Only this user id")

	var dryRun bool

	cleanupCmd := &cobra.Command{
		Use:   app.StageCleanup,
		Short: "Delete vectors older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runWithApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if dryRun {
					return a.Cleanup(ctx, true)
				}

				return a.RunStage(ctx, app.StageCleanup)
			})
		},
	}
	cleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count what would be deleted")

	return append(cmds, filterCmd, digestCmd, cleanupCmd)
}

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run ingest, filter, digest and deliver once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application(cmd.Context())
			if err != nil {
				return err
			}

			return a.RunOnce(cmd.Context())
		},
	}
}

func (e *env) runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	a, err := e.application(cmd.Context())
	if err != nil {
		return err
	}

	report, err := fn(cmd.Context(), a)
	if err != nil {
		return err
	}

	return e.print(cmd.OutOrStdout(), report, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %+v\n", cmd.Name(), report)
	})
}
