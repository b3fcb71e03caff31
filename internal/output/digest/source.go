package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/llm"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/htmlutils"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
)

// sourceStrategy summarizes raw messages per followed source for users
// without topics, asking the model to attribute each story once.
type sourceStrategy struct {
	sources  ports.SourceStore
	messages ports.MessageStore
	limit    int
}

func (s *sourceStrategy) Mode() domain.DigestMode { return domain.DigestModeSource }

func (s *sourceStrategy) Schema() *llm.Schema { return sourceSchema }

// Group returns up to limit newest messages per followed source. Sources are
// ordered by their newest message.
func (s *sourceStrategy) Group(ctx context.Context, user Subscriber, since time.Time) ([]Group, error) {
	sources, err := s.sources.ListUserSources(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var groups []Group

	for _, src := range sources {
		msgs, err := s.messages.ListSourceMessagesSince(ctx, src.ID, since, s.limit)
		if err != nil {
			return nil, fmt.Errorf("list messages for %s: %w", src.CanonicalHandle, err)
		}

		if len(msgs) == 0 {
			continue
		}

		g := Group{Key: src.CanonicalHandle}
		for _, m := range msgs {
			g.Items = append(g.Items, Item{Source: src.CanonicalHandle, Content: m.Content, OccurredAt: m.OccurredAt})
		}

		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Items[0].OccurredAt.After(groups[j].Items[0].OccurredAt)
	})

	return groups, nil
}

func (s *sourceStrategy) BuildPrompt(user Subscriber, groups []Group) string {
	return buildSourcePrompt(user.Language, groups)
}

func (s *sourceStrategy) FormatResult(user Subscriber, raw json.RawMessage, groups []Group, st domain.DailyStats) (Result, error) {
	var resp sourceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: %w", coreerrors.ErrMalformedResponse, err)
	}

	lang := user.Language

	if len(resp.SourceSummaries) == 0 {
		return Result{Content: i18n.Text(lang, i18n.NoUpdatesFromSourcesFmt, strings.Join(Keys(groups), listSeparator))}, nil
	}

	parts := header(lang, resp.OverallHeadline, resp.TLDR)

	for _, ss := range resp.SourceSummaries {
		parts = append(parts, displaySource(groups, ss.Source))

		if b := htmlutils.Clean(ss.Brief); b != "" {
			parts = append(parts, b+"\n")
		}

		for _, p := range cleanAll(ss.KeyPoints) {
			parts = append(parts, bulletPrefix+p)
		}

		if themes := cleanAll(ss.Themes); len(themes) > 0 {
			parts = append(parts, "\n<b>"+i18n.Text(lang, i18n.LabelThemes)+"</b> "+strings.Join(themes, listSeparator)+"\n")
		}

		parts = append(parts, "")
	}

	return Result{Relevant: true, Content: footer(parts, st, domain.DigestModeSource, lang)}, nil
}

// displaySource maps the model's source name back to a known @handle,
// tolerating case and punctuation differences.
func displaySource(groups []Group, name string) string {
	for _, g := range groups {
		if g.Key == name {
			return "@" + g.Key
		}
	}

	want := normalizeSourceKey(name)

	for _, g := range groups {
		if normalizeSourceKey(g.Key) == want {
			return "@" + g.Key
		}
	}

	return "@" + htmlutils.Clean(strings.TrimLeft(strings.TrimSpace(name), "@"))
}
