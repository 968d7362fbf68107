package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/repository"
	"github.com/GTDGit/dealfinder/internal/utils"
)

// SearchLogStore reads persisted searches.
type SearchLogStore interface {
	List(ctx context.Context, filter models.SearchLogFilter) ([]models.SearchLog, int, error)
	Stats(ctx context.Context, filter models.SearchLogFilter) ([]repository.SearchLogStats, error)
}

type SearchLogHandler struct {
	store SearchLogStore
}

func NewSearchLogHandler(store SearchLogStore) *SearchLogHandler {
	return &SearchLogHandler{store: store}
}

// ListSearchLogs handles GET /v1/admin/search-logs?source=&outcome=&page=&limit=
func (h *SearchLogHandler) ListSearchLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filter := filterFrom(c)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	logs, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list search logs")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list search logs")
		return
	}
	if logs == nil {
		logs = []models.SearchLog{}
	}
	utils.SuccessWithPagination(c, http.StatusOK, "Search logs retrieved", logs, page, limit, total)
}

// GetStats handles GET /v1/admin/search-logs/stats
func (h *SearchLogHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context(), filterFrom(c))
	if err != nil {
		log.Error().Err(err).Msg("Failed to aggregate search logs")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to aggregate search logs")
		return
	}
	utils.Success(c, http.StatusOK, "Search stats retrieved", stats)
}

func filterFrom(c *gin.Context) models.SearchLogFilter {
	return models.SearchLogFilter{
		Source:  models.SearchSource(c.Query("source")),
		Outcome: c.Query("outcome"),
	}
}
