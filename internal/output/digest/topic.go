package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
	"github.com/lueurxax/channel-digest/internal/core/llm"
	"github.com/lueurxax/channel-digest/internal/core/ports"
	"github.com/lueurxax/channel-digest/internal/platform/htmlutils"
	"github.com/lueurxax/channel-digest/internal/platform/i18n"
)

// topicStrategy summarizes the user's filtered matches grouped by topic.
type topicStrategy struct {
	matches ports.MatchStore
	sources ports.SourceStore
}

func (s *topicStrategy) Mode() domain.DigestMode { return domain.DigestModeTopic }

func (s *topicStrategy) Schema() *llm.Schema { return topicSchema }

// Group returns matches since the cutoff, best score first then newest,
// grouped by topic in order of first appearance.
func (s *topicStrategy) Group(ctx context.Context, user Subscriber, since time.Time) ([]Group, error) {
	matches, err := s.matches.ListMatchesSince(ctx, user.ID, since)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}

		return matches[i].OccurredAt.After(matches[j].OccurredAt)
	})

	handles, err := sourceHandles(ctx, s.sources, user.ID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)

	var groups []Group

	for _, m := range matches {
		i, ok := index[m.Topic]
		if !ok {
			i = len(groups)
			index[m.Topic] = i
			groups = append(groups, Group{Key: m.Topic})
		}

		groups[i].Items = append(groups[i].Items, Item{
			Source:     handles[m.SourceID],
			Content:    m.Content,
			Score:      m.SimilarityScore,
			OccurredAt: m.OccurredAt,
		})
	}

	return groups, nil
}

func (s *topicStrategy) BuildPrompt(user Subscriber, groups []Group) string {
	interests := user.Topics
	if len(interests) == 0 {
		interests = Keys(groups)
	}

	return buildTopicPrompt(user.Language, interests, groups)
}

func (s *topicStrategy) FormatResult(user Subscriber, raw json.RawMessage, groups []Group, st domain.DailyStats) (Result, error) {
	var resp topicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: %w", coreerrors.ErrMalformedResponse, err)
	}

	lang := user.Language

	if !resp.IsRelevant || len(resp.TopicSummaries) == 0 {
		return Result{Content: i18n.Text(lang, i18n.NoUpdatesForTopicsFmt, strings.Join(Keys(groups), listSeparator))}, nil
	}

	parts := header(lang, resp.OverallHeadline, resp.TLDR)

	for _, ts := range resp.TopicSummaries {
		parts = append(parts, "<u><i>"+htmlutils.Clean(ts.Topic)+"</i></u>")

		if b := htmlutils.Clean(ts.Brief); b != "" {
			parts = append(parts, b+"\n")
		}

		for _, p := range cleanAll(ts.KeyPoints) {
			parts = append(parts, bulletPrefix+p+"\n")
		}

		if g, ok := findGroup(groups, ts.Topic); ok {
			if mentions := g.Sources(); len(mentions) > 0 {
				parts = append(parts, "<b>"+i18n.Text(lang, i18n.LabelSources)+"</b> "+strings.Join(mentions, listSeparator)+"\n")
			}
		}

		parts = append(parts, "")
	}

	return Result{Relevant: true, Content: footer(parts, st, domain.DigestModeTopic, lang)}, nil
}

// findGroup matches a topic name from the model exactly, then case-insensitively.
func findGroup(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Key == name {
			return g, true
		}
	}

	for _, g := range groups {
		if strings.EqualFold(g.Key, name) {
			return g, true
		}
	}

	return Group{}, false
}

func sourceHandles(ctx context.Context, store ports.SourceStore, userID int64) (map[uuid.UUID]string, error) {
	sources, err := store.ListUserSources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	out := make(map[uuid.UUID]string, len(sources))
	for _, src := range sources {
		out[src.ID] = src.CanonicalHandle
	}

	return out, nil
}
