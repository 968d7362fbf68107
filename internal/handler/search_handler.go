package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/internal/middleware"
	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/service"
	"github.com/GTDGit/dealfinder/internal/utils"
)

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) *service.SearchResult
}

var outcomeMessages = map[service.Outcome]string{
	service.OutcomeNoResults:      "No matching products found",
	service.OutcomeRateLimited:    "Upstream rate limit reached on every credential, try again later",
	service.OutcomeExpired:        "Search session expired, run a new search",
	service.OutcomeExhausted:      "Nothing more to show for this search",
	service.OutcomeUnauthorized:   "Only the owner of this search can page through it",
	service.OutcomeInvalidRequest: "Invalid request",
	service.OutcomeFailed:         "Search failed, try again",
}

// SearchHandler exposes the pipeline and its pagination over HTTP.
type SearchHandler struct {
	searcher Searcher
	pager    *service.Pager
	timeout  time.Duration
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher Searcher, pager *service.Pager, timeout time.Duration) *SearchHandler {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &SearchHandler{searcher: searcher, pager: pager, timeout: timeout}
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Search runs a new search and returns its first page.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		utils.ErrorFrom(c, utils.ErrEmptyQuery, "Field 'query' is required")
		return
	}

	res := h.run(c, req.Query)
	if res.Outcome != service.OutcomeOK {
		respondOutcome(c, res.Outcome)
		return
	}

	page, outcome := h.pager.Start(scopeOf(c), middleware.GetOwnerID(c), res.Records)
	if outcome != service.OutcomeOK {
		respondOutcome(c, outcome)
		return
	}

	utils.Success(c, http.StatusOK, "Search completed", gin.H{
		"query":           res.Query,
		"translatedQuery": res.TranslatedQuery,
		"category":        res.Category,
		"page":            page,
	})
}

// GetPage serves a further page of a previous search.
func (h *SearchHandler) GetPage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("page"))
	if err != nil || index < 0 {
		utils.ErrorFrom(c, utils.ErrInvalidPage, "Page must be a non-negative integer")
		return
	}

	page, outcome := h.pager.Page(scopeOf(c), c.Param("sessionId"), index, middleware.GetOwnerID(c))
	if outcome != service.OutcomeOK {
		respondOutcome(c, outcome)
		return
	}
	utils.Success(c, http.StatusOK, "Page retrieved", page)
}

// GetCost runs the pipeline and reports its token usage, cost and timings.
func (h *SearchHandler) GetCost(c *gin.Context) {
	name := strings.TrimSpace(c.Query("product_name"))
	if name == "" {
		utils.ErrorFrom(c, utils.ErrEmptyQuery, "Query parameter 'product_name' is required")
		return
	}

	res := h.run(c, name)
	utils.Success(c, http.StatusOK, "Cost estimated", gin.H{
		"query":           res.Query,
		"translatedQuery": res.TranslatedQuery,
		"outcome":         res.Outcome,
		"candidates":      res.Candidates,
		"results":         len(res.Records),
		"usage":           res.Usage,
		"totalTokens":     res.Usage.TotalTokens(),
		"costUsd":         res.CostUSD,
		"durationMs":      res.Duration.Milliseconds(),
		"timings":         res.Timings,
	})
}

func (h *SearchHandler) run(c *gin.Context, query string) *service.SearchResult {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	return h.searcher.Search(ctx, service.SearchRequest{
		Query:   query,
		Source:  models.SearchSourceAPI,
		OwnerID: middleware.GetOwnerID(c),
	})
}

func scopeOf(c *gin.Context) string {
	return cache.OwnerScope(middleware.GetClientID(c))
}

func respondOutcome(c *gin.Context, outcome service.Outcome) {
	msg, ok := outcomeMessages[outcome]
	if !ok {
		msg = outcomeMessages[service.OutcomeFailed]
	}
	utils.ErrorFrom(c, outcome.Err(), msg)
}
