package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/pkg/llm"
	"github.com/rs/zerolog/log"
)

// Oracle is a text completion backend.
type Oracle interface {
	Complete(ctx context.Context, system, prompt string) (string, llm.Usage, error)
}

const relevanceSystemPrompt = "You are a strict e-commerce product classifier. Respond with ONLY a valid JSON object, no explanations and no markdown."

const relevancePrompt = `Search query: %q

For every numbered product title below decide whether the product is in EXACTLY the same product category as the search query.
Accessories, spare parts, cases, covers, chargers, tools or refills for the product are NOT a match, even when the title mentions the query words.
Products from a different category are NOT a match.

Reply with a JSON object mapping every index to 0 (exact category match) or 1 (not a match), for example {"0":0,"1":1}.

Titles:
%s`

// RelevanceFilter keeps the candidates an oracle judges to be in the query's category.
type RelevanceFilter struct {
	oracle     Oracle
	batchSize  int
	maxResults int
}

// NewRelevanceFilter creates a filter asking about batchSize titles per oracle
// call and keeping at most maxResults records.
func NewRelevanceFilter(oracle Oracle, batchSize, maxResults int) *RelevanceFilter {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxResults <= 0 {
		maxResults = 4
	}
	return &RelevanceFilter{oracle: oracle, batchSize: batchSize, maxResults: maxResults}
}

// Filter returns up to maxResults relevant records in their input order and
// the tokens spent. A batch whose verdict cannot be parsed contributes nothing.
func (f *RelevanceFilter) Filter(ctx context.Context, query string, records []models.ProductRecord) ([]models.ProductRecord, llm.Usage) {
	var usage llm.Usage
	kept := make([]models.ProductRecord, 0, f.maxResults)

	for start := 0; start < len(records) && len(kept) < f.maxResults; start += f.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+f.batchSize, len(records))
		batch := records[start:end]

		resp, u, err := f.oracle.Complete(ctx, relevanceSystemPrompt, buildRelevancePrompt(query, batch))
		usage = usage.Add(u)
		if err != nil {
			log.Warn().Err(err).Int("batch_start", start).Msg("Relevance oracle call failed, skipping batch")
			continue
		}

		matches, err := parseVerdicts(resp, len(batch))
		if err != nil {
			log.Warn().Err(err).Int("batch_start", start).Str("response", truncate(resp, 200)).Msg("Malformed relevance verdict, skipping batch")
			continue
		}
		for _, idx := range matches {
			kept = append(kept, records[start+idx])
			if len(kept) == f.maxResults {
				break
			}
		}
	}
	return kept, usage
}

func buildRelevancePrompt(query string, batch []models.ProductRecord) string {
	var b strings.Builder
	for i, r := range batch {
		fmt.Fprintf(&b, "%d: %s\n", i, r.Title)
	}
	return fmt.Sprintf(relevancePrompt, query, b.String())
}

// parseVerdicts returns the sorted batch-relative indices judged 0.
// Keys outside [0, n) and verdicts other than 0 are ignored.
func parseVerdicts(resp string, n int) ([]int, error) {
	resp = llm.StripCodeFence(resp)
	if resp == "" {
		return nil, fmt.Errorf("empty verdict")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}

	matches := make([]int, 0, len(raw))
	for key, v := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || idx < 0 || idx >= n {
			continue
		}
		if verdictIsMatch(v) {
			matches = append(matches, idx)
		}
	}
	sort.Ints(matches)
	return matches, nil
}

func verdictIsMatch(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 0
	case string:
		return strings.TrimSpace(t) == "0"
	default:
		return false
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
