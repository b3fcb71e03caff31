package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lueurxax/channel-digest/internal/app"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
	"github.com/lueurxax/channel-digest/internal/platform/schedule"
)

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage subscribers",
	}

	var (
		username string
		language string
	)

	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Register or update a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			u, err := database.UpsertUser(cmd.Context(), id, username, i18n.Normalize(language))
			if err != nil {
				return err
			}

			return e.print(cmd.OutOrStdout(), u, func(w io.Writer) {
				fmt.Fprintf(w, "user %d (%s) saved\n", u.ID, u.Language)
			})
		},
	}
	add.Flags().StringVar(&username, "username", "", "Telegram username")
	add.Flags().StringVar(&language, "lang", "en", "Digest language (en, uk)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			users, err := database.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			return e.print(cmd.OutOrStdout(), users, func(w io.Writer) {
				for _, u := range users {
					state := "active"
					if u.BlockedAt != nil {
						state = "blocked"
					}

					fmt.Fprintf(w, "%d\t%s\t%s\t%s\tlast seen %s\n", u.ID, u.Username, u.Language, state, u.LastSeen().Format(time.RFC3339))
				}
			})
		},
	}

	cmd.AddCommand(add, list)

	return cmd
}

func newFollowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "follow <user-id> <@channel>...",
		Short: "Subscribe a user to channels",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			var handles []string

			for _, h := range args[1:] {
				src, err := database.FollowSource(cmd.Context(), id, h)
				if err != nil {
					return err
				}

				handles = append(handles, src.Mention())
			}

			return e.print(cmd.OutOrStdout(), handles, func(w io.Writer) {
				fmt.Fprintf(w, "user %d follows %s\n", id, strings.Join(handles, ", "))
			})
		},
	}
}

func newTopicCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Manage user topics",
	}

	add := &cobra.Command{
		Use:   "add <user-id> <topic text>",
		Short: "Declare an interest",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			topic, err := database.AddTopic(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			return e.print(cmd.OutOrStdout(), topic, func(w io.Writer) {
				fmt.Fprintf(w, "topic %q added for user %d\n", topic.Text, id)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's topics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			topics, err := database.ListUserTopics(cmd.Context(), id)
			if err != nil {
				return err
			}

			return e.print(cmd.OutOrStdout(), topics, func(w io.Writer) {
				for _, t := range topics {
					cached := ""
					if t.HasEmbedding() {
						cached = " (embedded)"
					}

					fmt.Fprintf(w, "%s%s\n", t.Text, cached)
				}
			})
		},
	}

	cmd.AddCommand(add, list)

	return cmd
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := e.db(cmd.Context())
			if err != nil {
				return err
			}

			if err := database.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")

			return nil
		},
	}
}

func newScheduleCmd(e *env) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the next collection and digest slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}

			pipeline, err := app.Schedule(cfg)
			if err != nil {
				return err
			}

			loc, err := pipeline.Location()
			if err != nil {
				return err
			}

			upcoming := map[string][]time.Time{}

			for name, plan := range map[string]schedule.Plan{"collect": pipeline.Collect, "digest": pipeline.Digest} {
				if upcoming[name], err = nextSlots(plan, loc, time.Now(), count); err != nil {
					return err
				}
			}

			return e.print(cmd.OutOrStdout(), upcoming, func(w io.Writer) {
				for _, name := range []string{"collect", "digest"} {
					for _, t := range upcoming[name] {
						fmt.Fprintf(w, "%s\t%s\n", name, t.Format("Mon 2006-01-02 15:04 MST"))
					}
				}
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 3, "Slots to show per job")

	return cmd
}

func nextSlots(plan schedule.Plan, loc *time.Location, from time.Time, n int) ([]time.Time, error) {
	var out []time.Time

	for range n {
		next, ok, err := plan.NextAfter(loc, from)
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		out = append(out, next)
		from = next
	}

	return out, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("user id %q: %w", s, coreerrors.ErrInvalidInput)
	}

	return id, nil
}
