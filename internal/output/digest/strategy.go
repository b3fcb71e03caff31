package digest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/llm"
)

// Item is one message fed to the model.
type Item struct {
	Source     string
	Content    string
	Score      float32
	OccurredAt time.Time
}

// Group is a topic or a source with its messages, in prompt order.
type Group struct {
	Key   string
	Items []Item
}

// Sources returns the distinct @handles of the group's items in first-seen order.
func (g Group) Sources() []string {
	seen := make(map[string]struct{}, len(g.Items))

	var out []string

	for _, it := range g.Items {
		if it.Source == "" {
			continue
		}

		mention := "@" + it.Source
		if _, ok := seen[mention]; ok {
			continue
		}

		seen[mention] = struct{}{}
		out = append(out, mention)
	}

	return out
}

// Keys returns the group keys in order.
func Keys(groups []Group) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}

	return keys
}

// Subscriber is a user together with the topics they declared.
type Subscriber struct {
	domain.User
	Topics []string
}

// Result is a formatted model response.
type Result struct {
	// Relevant is false when the model found nothing worth sending.
	Relevant bool
	// Content is the Telegram HTML digest, or the localized notice when not relevant.
	Content string
}

// Strategy is one way of turning a user's recent content into a digest.
type Strategy interface {
	Mode() domain.DigestMode
	Group(ctx context.Context, sub Subscriber, since time.Time) ([]Group, error)
	BuildPrompt(sub Subscriber, groups []Group) string
	Schema() *llm.Schema
	FormatResult(sub Subscriber, raw json.RawMessage, groups []Group, stats domain.DailyStats) (Result, error)
}

// filterBySize drops groups with fewer than minSize items.
func filterBySize(groups []Group, minSize int) []Group {
	out := groups[:0:0]

	for _, g := range groups {
		if len(g.Items) >= minSize {
			out = append(out, g)
		}
	}

	return out
}
