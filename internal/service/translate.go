package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/GTDGit/dealfinder/pkg/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

const translateSystemPrompt = "You translate e-commerce search queries. Reply with the translation only."

const translatePrompt = `Translate this product search query from Hebrew to English.
Keep brand names and model numbers as they are. Reply with the English query only, in lower case, without quotes or explanations.

Query: `

// TranslationCache stores finished translations.
type TranslationCache interface {
	GetTranslation(ctx context.Context, text string) (string, bool)
	SetTranslation(ctx context.Context, text, translated string)
}

// Translator turns Hebrew queries into English ones. Other input passes through.
type Translator struct {
	oracle Oracle
	cache  TranslationCache
}

// NewTranslator creates a translator. cache may be nil.
func NewTranslator(oracle Oracle, cache TranslationCache) *Translator {
	return &Translator{oracle: oracle, cache: cache}
}

// NormalizeQuery trims the query, collapses inner whitespace and applies NFC.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(norm.NFC.String(q)), " ")
}

// ContainsHebrew reports whether s has any Hebrew letter.
func ContainsHebrew(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hebrew, r) {
			return true
		}
	}
	return false
}

// Translate returns the English form of query and the tokens spent. When the
// oracle fails the normalised input is returned unchanged.
func (t *Translator) Translate(ctx context.Context, query string) (string, llm.Usage) {
	query = NormalizeQuery(query)
	if query == "" || !ContainsHebrew(query) {
		return query, llm.Usage{}
	}

	if t.cache != nil {
		if cached, ok := t.cache.GetTranslation(ctx, query); ok {
			return cached, llm.Usage{}
		}
	}

	resp, usage, err := t.oracle.Complete(ctx, translateSystemPrompt, translatePrompt+query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Translation failed, searching with original query")
		return query, usage
	}

	translated := strings.ToLower(NormalizeQuery(strings.Trim(llm.StripCodeFence(resp), "\"'`")))
	if translated == "" {
		log.Warn().Str("query", query).Msg("Empty translation, searching with original query")
		return query, usage
	}

	if t.cache != nil {
		t.cache.SetTranslation(ctx, query, translated)
	}
	return translated, usage
}
