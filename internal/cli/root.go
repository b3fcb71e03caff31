// Package cli implements the digestctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/channel-digest/internal/app"
	"github.com/lueurxax/channel-digest/internal/platform/config"
	"github.com/lueurxax/channel-digest/internal/platform/logging"
	db "github.com/lueurxax/channel-digest/internal/storage"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// env opens dependencies lazily so that commands only pay for what they use.
type env struct {
	format string

	cfg      *config.Config
	logger   zerolog.Logger
	database *db.DB
	app      *app.App
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "digestctl",
		Short:         "Operate the channel digest pipeline",
		Long:          "Manual runs of pipeline stages, subscriber management and digest history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}

	root.PersistentFlags().StringVarP(&e.format, "format", "f", formatText, "Output format: json or text")

	root.AddCommand(
		newStageCmds(e)...,
	)
	root.AddCommand(
		newRunCmd(e),
		newStatsCmd(e),
		newSummariesCmd(e),
		newUserCmd(e),
		newFollowCmd(e),
		newTopicCmd(e),
		newMigrateCmd(e),
		newScheduleCmd(e),
	)

	return root
}

func (e *env) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	e.cfg = cfg
	e.logger = logging.New(cfg.AppEnv, cfg.LogLevel)

	return cfg, nil
}

func (e *env) db(ctx context.Context) (*db.DB, error) {
	if e.database != nil {
		return e.database, nil
	}

	cfg, err := e.config()
	if err != nil {
		return nil, err
	}

	database, err := db.New(ctx, cfg.PostgresDSN, &e.logger)
	if err != nil {
		return nil, err
	}

	e.database = database

	return database, nil
}

func (e *env) application(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	database, err := e.db(ctx)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, e.cfg, database, &e.logger)
	if err != nil {
		return nil, err
	}

	e.app = a

	return a, nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
	}

	if e.database != nil {
		e.database.Close()
	}
}

// print writes v as indented JSON, or through text when the format is text.
func (e *env) print(w io.Writer, v any, text func(w io.Writer)) error {
	if e.format == formatJSON || text == nil {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}

		_, err = fmt.Fprintln(w, string(b))

		return err
	}

	text(w)

	return nil
}
