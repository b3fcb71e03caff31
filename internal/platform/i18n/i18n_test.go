package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/channel-digest/internal/core/domain"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, domain.LanguageUkrainian, Normalize("uk"))
	assert.Equal(t, domain.LanguageUkrainian, Normalize("uk-UA"))
	assert.Equal(t, domain.LanguageEnglish, Normalize("en-US"))
	assert.Equal(t, domain.LanguageEnglish, Normalize("de"))
	assert.Equal(t, domain.LanguageEnglish, Normalize(""))
}

func TestText(t *testing.T) {
	assert.Equal(t, "Коротко:", Text(domain.LanguageUkrainian, LabelTLDR))
	assert.Equal(t, "TL;DR:", Text("fr", LabelTLDR))
	assert.Equal(t, "matched 3 topics", Text(domain.LanguageEnglish, StatsMatchedTopicsFmt, 3))
	assert.Equal(t, "відповідних тем: 2", Text(domain.LanguageUkrainian, StatsMatchedTopicsFmt, 2))
}

func TestInstruction(t *testing.T) {
	assert.Contains(t, Instruction(domain.LanguageUkrainian), "Respond in Ukrainian language")
	assert.Contains(t, Instruction(domain.LanguageEnglish), "Respond in English language")
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	en := catalog[domain.LanguageEnglish]

	for lang, entries := range catalog {
		assert.Len(t, entries, len(en), lang)

		for key := range en {
			assert.Contains(t, entries, key, "%s missing %s", lang, key)
		}
	}
}
