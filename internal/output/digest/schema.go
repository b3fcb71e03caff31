package digest

import "github.com/lueurxax/channel-digest/internal/core/llm"

func stringList(description string) *llm.Schema {
	return &llm.Schema{
		Type:        llm.TypeArray,
		Description: description,
		Items:       &llm.Schema{Type: llm.TypeString},
	}
}

var topicSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"overall_headline": {
			Type:        llm.TypeString,
			Description: "Compelling main headline that captures the most significant news across all topics",
		},
		"tldr": {
			Type:        llm.TypeString,
			Description: "Concise 2-3 sentence summary capturing the essence of all major developments",
		},
		"is_relevant": {
			Type:        llm.TypeBoolean,
			Description: "Whether there is truly valuable, non-redundant information matching any user interests",
		},
		"topic_summaries": {
			Type:        llm.TypeArray,
			Description: "Array of summaries for each relevant topic (empty if not relevant)",
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"topic": {Type: llm.TypeString},
					"brief": {
						Type:        llm.TypeString,
						Description: "Concise, engaging paragraph (1-2 sentences) in journalistic style, focusing on key developments without redundancy",
					},
					"key_points": stringList("3-5 concise bullet points with unique insights or takeaways (avoid repetition)"),
					"sources":    stringList("Sources referenced"),
				},
				Required: []string{"topic", "brief", "key_points", "sources"},
			},
		},
	},
	Required: []string{"overall_headline", "tldr", "is_relevant", "topic_summaries"},
}

var sourceSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"overall_headline": {
			Type:        llm.TypeString,
			Description: "Compelling main headline that captures the most significant news across all sources",
		},
		"tldr": {
			Type:        llm.TypeString,
			Description: "Concise 2-3 sentence summary capturing the essence of all major developments",
		},
		"source_summaries": {
			Type:        llm.TypeArray,
			Description: "Array of summaries for each source with unique, non-duplicated content",
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"source": {Type: llm.TypeString},
					"brief": {
						Type:        llm.TypeString,
						Description: "Concise paragraph focusing on unique content from this source only",
					},
					"key_points": stringList("3-5 unique insights exclusive to this source (no duplication across sources)"),
					"themes":     stringList("2-3 main themes unique to this source's coverage"),
				},
				Required: []string{"source", "brief", "key_points", "themes"},
			},
		},
	},
	Required: []string{"overall_headline", "tldr", "source_summaries"},
}

type topicResponse struct {
	OverallHeadline string         `json:"overall_headline"`
	TLDR            string         `json:"tldr"`
	IsRelevant      bool           `json:"is_relevant"`
	TopicSummaries  []topicSummary `json:"topic_summaries"`
}

type topicSummary struct {
	Topic     string   `json:"topic"`
	Brief     string   `json:"brief"`
	KeyPoints []string `json:"key_points"`
	Sources   []string `json:"sources"`
}

type sourceResponse struct {
	OverallHeadline string          `json:"overall_headline"`
	TLDR            string          `json:"tldr"`
	SourceSummaries []sourceSummary `json:"source_summaries"`
}

type sourceSummary struct {
	Source    string   `json:"source"`
	Brief     string   `json:"brief"`
	KeyPoints []string `json:"key_points"`
	Themes    []string `json:"themes"`
}
