package llm

// Per-million token prices in USD for the default model.
const (
	PromptPricePerMillion     = 0.15
	CompletionPricePerMillion = 0.60
)

// Usage accumulates token counts across oracle calls of one search.
// It is a plain value; callers own and merge their own copies.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	Calls            int `json:"calls"`
}

// Add returns the sum of u and other, counting other as one call when it used tokens.
func (u Usage) Add(other Usage) Usage {
	calls := other.Calls
	if calls == 0 && (other.PromptTokens > 0 || other.CompletionTokens > 0) {
		calls = 1
	}
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		Calls:            u.Calls + calls,
	}
}

func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Cost estimates the spend in USD.
func (u Usage) Cost() float64 {
	return float64(u.PromptTokens)/1e6*PromptPricePerMillion +
		float64(u.CompletionTokens)/1e6*CompletionPricePerMillion
}
