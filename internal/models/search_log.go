package models

import "time"

// SearchSource identifies the surface a search came from.
type SearchSource string

const (
	SearchSourceTelegram SearchSource = "telegram"
	SearchSourceAPI      SearchSource = "api"
)

// SearchLog is one persisted pipeline run.
type SearchLog struct {
	ID               string       `db:"id" json:"id"`
	Source           SearchSource `db:"source" json:"source"`
	OwnerID          int64        `db:"owner_id" json:"ownerId"`
	Query            string       `db:"query" json:"query"`
	TranslatedQuery  string       `db:"translated_query" json:"translatedQuery"`
	Category         *string      `db:"category" json:"category,omitempty"`
	Outcome          string       `db:"outcome" json:"outcome"`
	CandidateCount   int          `db:"candidate_count" json:"candidateCount"`
	ResultCount      int          `db:"result_count" json:"resultCount"`
	PromptTokens     int          `db:"prompt_tokens" json:"promptTokens"`
	CompletionTokens int          `db:"completion_tokens" json:"completionTokens"`
	CostUSD          float64      `db:"cost_usd" json:"costUsd"`
	DurationMs       int64        `db:"duration_ms" json:"durationMs"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
}

// SearchLogFilter narrows the admin listing.
type SearchLogFilter struct {
	Source  SearchSource
	Outcome string
	Limit   int
	Offset  int
}
