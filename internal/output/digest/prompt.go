package digest

import (
	"fmt"
	"strings"

	"github.com/lueurxax/channel-digest/internal/platform/i18n"
)

const (
	promptLangPlaceholder      = "{{LANG_INSTRUCTION}}"
	promptInterestsPlaceholder = "{{USER_INTERESTS}}"
	promptTopicsPlaceholder    = "{{TOPICS}}"
	promptMessagesPlaceholder  = "{{MESSAGES}}"
)

const topicPrompt = `You are an engaging news curator. Analyze the messages and create captivating summaries for relevant topics.

{{LANG_INSTRUCTION}}

USER'S INTERESTS: {{USER_INTERESTS}}

TOPICS WITH MESSAGES: {{TOPICS}}

MESSAGES:
{{MESSAGES}}

INSTRUCTIONS:

1. OVERALL SUMMARY:
   - Create a compelling main headline capturing the most significant development across all topics
   - Headline MUST include at least one relevant emoji
   - Write a 2-3 sentence TL;DR that synthesizes the essence of all major news
   - TL;DR MUST include at least one relevant emoji

2. TOPIC-SPECIFIC CONTENT:
   - Evaluate if there's truly valuable, non-redundant information matching user's interests
   - For each relevant topic with meaningful updates:
     - Write a brief, vivid paragraph (1-2 sentences) in journalistic style, focusing on key developments
     - The brief MUST include at least one relevant emoji
     - List 3-5 key points as concise bullets with unique insights
     - Each bullet MUST include at least one relevant emoji

3. QUALITY FILTERS:
   - Be selective: ignore low-value, repetitive, or off-topic content
   - Only include topics with substantive, non-redundant content
   - If nothing relevant or engaging, set is_relevant to false and topic_summaries to empty array

STYLE:
- Keep it concise and exciting
- Include at least one emoji in EVERY section (headline, TL;DR, each topic brief, and each bullet)
- Distribute emojis evenly across sections; avoid clustering many emojis in one section and none in others
- Prefer 1 emoji per sentence/bullet (max 2 if it truly improves clarity)
- Avoid repeating the same emoji; choose context-appropriate emojis

Respond strictly as JSON matching the schema.`

const sourcePrompt = `You are an expert news curator and deduplication specialist. Analyze messages from various Telegram sources to create a comprehensive, non-redundant news summary.

{{LANG_INSTRUCTION}}

MESSAGES:
{{MESSAGES}}

INSTRUCTIONS:

1. DEDUPLICATION STRATEGY:
   - Identify all news stories/topics mentioned across sources
   - For each story, determine which source provides the BEST coverage (most detailed, authoritative, or comprehensive)
   - Assign each news item to only ONE source - the one with superior coverage
   - Remove redundant coverage from other sources entirely

2. OVERALL SUMMARY:
   - Create a compelling main headline capturing the most significant development
   - Headline MUST include at least one relevant emoji
   - Write a 2-3 sentence TL;DR that synthesizes the essence of all major news
   - TL;DR MUST include at least one relevant emoji

3. SOURCE-SPECIFIC CONTENT:
   - For each source, include ONLY unique content not covered better elsewhere
   - Write brief paragraphs focusing exclusively on this source's unique contributions
   - The brief MUST include at least one relevant emoji
   - List 3-5 key points that are exclusive to this source (no repetition across sources)
   - Each bullet MUST include at least one relevant emoji
   - Identify themes unique to this source's coverage angle
   - Themes MUST NOT include emojis; use plain-text keywords only

4. QUALITY FILTERS:
   - Ignore low-value, repetitive, spam, or trivial content
   - Only include sources with substantive, unique contributions
   - If a source has no unique value after deduplication, exclude it entirely
   - Prioritize newsworthy, engaging content

5. CONTENT ASSIGNMENT RULES:
   - Breaking news: assign to the source that reported it first or most comprehensively
   - Analysis/opinion: assign to the source with the most insightful take
   - Updates: assign to the source with the most recent or detailed information
   - Context/background: assign to the source providing the best context

Focus on creating a cohesive, non-redundant news digest where each source adds unique value.

STYLE:
- Keep it professional yet lively
- Include at least one emoji in EVERY section (headline, TL;DR, each source brief, and each bullet)
- Avoid repeating the same emoji; choose context-appropriate emojis
- Do NOT use emojis in themes

Respond strictly as JSON matching the provided schema.`

func buildTopicPrompt(lang string, interests []string, groups []Group) string {
	var sb strings.Builder

	for _, g := range groups {
		fmt.Fprintf(&sb, "\n## TOPIC: %s\n", g.Key)

		for i, it := range g.Items {
			source := it.Source
			if source == "" {
				source = strings.TrimSpace(unknownSource)
			}

			fmt.Fprintf(&sb, "\n%d. From [%s] (Score: %.3f)\n", i+1, source, it.Score)
			fmt.Fprintf(&sb, "   Date: %s\n", it.OccurredAt.UTC().Format(dateTimeLayout))
			fmt.Fprintf(&sb, "   Content: %s\n", it.Content)
		}
	}

	return strings.NewReplacer(
		promptLangPlaceholder, i18n.Instruction(lang),
		promptInterestsPlaceholder, quoteList(interests),
		promptTopicsPlaceholder, quoteList(Keys(groups)),
		promptMessagesPlaceholder, sb.String(),
	).Replace(topicPrompt)
}

func buildSourcePrompt(lang string, groups []Group) string {
	var sb strings.Builder

	for _, g := range groups {
		fmt.Fprintf(&sb, "\n## SOURCE: %s\n", g.Key)

		for _, it := range g.Items {
			fmt.Fprintf(&sb, "   Date: %s\n", it.OccurredAt.UTC().Format(dateTimeLayout))
			fmt.Fprintf(&sb, "   Content: %s\n", it.Content)
		}
	}

	return strings.NewReplacer(
		promptLangPlaceholder, i18n.Instruction(lang),
		promptMessagesPlaceholder, sb.String(),
	).Replace(sourcePrompt)
}

// quoteList renders ["a", "b"].
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return "[" + strings.Join(quoted, listSeparator) + "]"
}
