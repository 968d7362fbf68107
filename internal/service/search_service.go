package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/GTDGit/dealfinder/internal/events"
	"github.com/GTDGit/dealfinder/internal/metrics"
	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/tracing"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
	"github.com/GTDGit/dealfinder/pkg/llm"
)

// SearchClient runs the upstream product query.
type SearchClient interface {
	Search(ctx context.Context, keywords string, count int) (*aliexpress.Payload, error)
	HotProducts(ctx context.Context, keywords string, count int) (*aliexpress.Payload, error)
}

// CategoryFinder guesses the category of a query.
type CategoryFinder interface {
	FindBestCategory(ctx context.Context, keywords string) (Category, bool)
}

// ResultCache stores finished result sets by translated query.
type ResultCache interface {
	GetResults(ctx context.Context, query string) ([]models.ProductRecord, bool)
	SetResults(ctx context.Context, query string, records []models.ProductRecord)
}

// SearchLogWriter persists finished searches.
type SearchLogWriter interface {
	Create(ctx context.Context, entry *models.SearchLog) error
}

// SearchRequest is one user query.
type SearchRequest struct {
	Query   string
	Source  models.SearchSource
	OwnerID int64
}

// StageTiming is the wall time of one pipeline stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"-"`
	Millis   int64         `json:"ms"`
}

// SearchResult is the outcome of a pipeline run together with its accounting.
type SearchResult struct {
	Query           string                 `json:"query"`
	TranslatedQuery string                 `json:"translatedQuery"`
	Category        string                 `json:"category,omitempty"`
	Candidates      int                    `json:"candidates"`
	Records         []models.ProductRecord `json:"products"`
	Usage           llm.Usage              `json:"usage"`
	CostUSD         float64                `json:"costUsd"`
	Timings         []StageTiming          `json:"timings"`
	Duration        time.Duration          `json:"-"`
	Cached          bool                   `json:"cached"`
	Outcome         Outcome                `json:"outcome"`
}

func (r *SearchResult) stage(name string, start time.Time) {
	d := time.Since(start)
	r.Timings = append(r.Timings, StageTiming{Stage: name, Duration: d, Millis: d.Milliseconds()})
	metrics.ObserveStage(name, d)
}

// PipelineOptions tunes SearchService.
type PipelineOptions struct {
	Candidates     int
	UseHotProducts bool
}

// SearchDeps wires the pipeline stages and optional collaborators.
// Categories, Results, Logs and Events may be nil.
type SearchDeps struct {
	Client     SearchClient
	Translator *Translator
	Relevance  *RelevanceFilter
	Enricher   *DetailEnricher
	Ranker     *Ranker
	Links      *LinkResolver
	Categories CategoryFinder
	Results    ResultCache
	Logs       SearchLogWriter
	Events     events.Publisher
}

// SearchService runs query -> translate -> search -> transform -> volume sort ->
// relevance -> enrich -> rank -> short links.
type SearchService struct {
	deps SearchDeps
	opts PipelineOptions
}

func NewSearchService(deps SearchDeps, opts PipelineOptions) *SearchService {
	if opts.Candidates <= 0 {
		opts.Candidates = 49
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	return &SearchService{deps: deps, opts: opts}
}

// Search runs the pipeline. The returned result is never nil; its Outcome
// tells the caller which user message applies.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) *SearchResult {
	ctx, span := tracing.StartSpan(ctx, "search.pipeline")
	defer span.End()

	started := time.Now()
	res := &SearchResult{Query: NormalizeQuery(req.Query)}
	res.Outcome = s.run(ctx, res)
	res.Duration = time.Since(started)
	res.CostUSD = res.Usage.Cost()

	span.SetAttributes(
		attribute.String("search.outcome", string(res.Outcome)),
		attribute.Int("search.results", len(res.Records)),
	)
	s.finish(ctx, req, res)
	return res
}

func (s *SearchService) run(ctx context.Context, res *SearchResult) Outcome {
	if res.Query == "" {
		return OutcomeInvalidRequest
	}

	// 1. Translate
	start := time.Now()
	stageCtx, span := tracing.StartSpan(ctx, "search.translate")
	translated, usage := s.deps.Translator.Translate(stageCtx, res.Query)
	span.End()
	res.TranslatedQuery = translated
	res.Usage = res.Usage.Add(usage)
	res.stage("translate", start)

	if s.deps.Results != nil {
		if cached, ok := s.deps.Results.GetResults(ctx, translated); ok {
			res.Cached = true
			res.Candidates = len(cached)
			res.Records = cached
			s.guessCategory(ctx, res)
			return OutcomeOK
		}
	}

	// 2. Upstream search
	start = time.Now()
	stageCtx, span = tracing.StartSpan(ctx, "search.upstream")
	var (
		payload *aliexpress.Payload
		err     error
	)
	if s.opts.UseHotProducts {
		payload, err = s.deps.Client.HotProducts(stageCtx, translated, s.opts.Candidates)
	} else {
		payload, err = s.deps.Client.Search(stageCtx, translated, s.opts.Candidates)
	}
	span.End()
	res.stage("search", start)
	if err != nil {
		if errors.Is(err, aliexpress.ErrNoCredentials) {
			log.Warn().Err(err).Str("query", translated).Msg("Search rate limited on every credential")
			return OutcomeRateLimited
		}
		log.Error().Err(err).Str("query", translated).Msg("Upstream search failed")
		return OutcomeFailed
	}

	records := SortByVolume(ToRecords(payload))
	res.Candidates = len(records)
	if len(records) == 0 {
		return OutcomeNoResults
	}

	// 3. Relevance
	start = time.Now()
	stageCtx, span = tracing.StartSpan(ctx, "search.relevance")
	records, usage = s.deps.Relevance.Filter(stageCtx, translated, records)
	span.End()
	res.Usage = res.Usage.Add(usage)
	res.stage("relevance", start)
	if len(records) == 0 {
		return OutcomeNoResults
	}

	// 4. Enrich, then rank on the enriched stats
	start = time.Now()
	stageCtx, span = tracing.StartSpan(ctx, "search.enrich")
	records = s.deps.Enricher.Enrich(stageCtx, records)
	span.End()
	res.stage("enrich", start)

	start = time.Now()
	records = s.deps.Ranker.Rank(records)
	res.stage("rank", start)

	// 5. Short links
	start = time.Now()
	stageCtx, span = tracing.StartSpan(ctx, "search.links")
	records = s.deps.Links.Resolve(stageCtx, records)
	span.End()
	res.stage("links", start)

	res.Records = records
	s.guessCategory(ctx, res)
	if s.deps.Results != nil {
		s.deps.Results.SetResults(ctx, translated, records)
	}
	return OutcomeOK
}

func (s *SearchService) guessCategory(ctx context.Context, res *SearchResult) {
	if s.deps.Categories == nil {
		return
	}
	if c, ok := s.deps.Categories.FindBestCategory(ctx, res.TranslatedQuery); ok {
		res.Category = c.Path
	}
}

// finish emits the summary log, metrics, the search log row and the event.
func (s *SearchService) finish(ctx context.Context, req SearchRequest, res *SearchResult) {
	metrics.SearchesTotal.WithLabelValues(string(req.Source), string(res.Outcome)).Inc()
	metrics.OracleTokensTotal.WithLabelValues("prompt").Add(float64(res.Usage.PromptTokens))
	metrics.OracleTokensTotal.WithLabelValues("completion").Add(float64(res.Usage.CompletionTokens))

	evt := log.Info().
		Str("source", string(req.Source)).
		Int64("owner_id", req.OwnerID).
		Str("query", res.Query).
		Str("translated_query", res.TranslatedQuery).
		Str("outcome", string(res.Outcome)).
		Bool("cached", res.Cached).
		Int("candidates", res.Candidates).
		Int("results", len(res.Records)).
		Int("prompt_tokens", res.Usage.PromptTokens).
		Int("completion_tokens", res.Usage.CompletionTokens).
		Float64("cost_usd", res.CostUSD).
		Dur("duration", res.Duration)
	for _, t := range res.Timings {
		evt = evt.Int64("ms_"+t.Stage, t.Millis)
	}
	evt.Msg("Search finished")

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id := uuid.New().String()
	if s.deps.Logs != nil {
		entry := &models.SearchLog{
			ID:               id,
			Source:           req.Source,
			OwnerID:          req.OwnerID,
			Query:            res.Query,
			TranslatedQuery:  res.TranslatedQuery,
			Outcome:          string(res.Outcome),
			CandidateCount:   res.Candidates,
			ResultCount:      len(res.Records),
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			CostUSD:          res.CostUSD,
			DurationMs:       res.Duration.Milliseconds(),
			CreatedAt:        time.Now(),
		}
		if res.Category != "" {
			entry.Category = &res.Category
		}
		if err := s.deps.Logs.Create(bg, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to persist search log")
		}
	}

	productIDs := make([]string, len(res.Records))
	for i, r := range res.Records {
		productIDs[i] = r.ProductID
	}
	err := s.deps.Events.PublishSearchCompleted(bg, &events.SearchCompleted{
		EventType:       events.EventTypeSearchCompleted,
		EventID:         id,
		Source:          string(req.Source),
		OwnerID:         req.OwnerID,
		Query:           res.Query,
		TranslatedQuery: res.TranslatedQuery,
		Outcome:         string(res.Outcome),
		ProductIDs:      productIDs,
		CostUSD:         res.CostUSD,
		DurationMs:      res.Duration.Milliseconds(),
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to publish search event")
	}
}
