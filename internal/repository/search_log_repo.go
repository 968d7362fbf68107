package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/dealfinder/internal/models"
)

// SearchLogRepository provides access to the search_logs table.
type SearchLogRepository struct {
	db *sqlx.DB
}

// NewSearchLogRepository creates a new SearchLogRepository.
func NewSearchLogRepository(db *sqlx.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

// Create inserts a finished search.
func (r *SearchLogRepository) Create(ctx context.Context, entry *models.SearchLog) error {
	const q = `
		INSERT INTO search_logs (
			id, source, owner_id, query, translated_query, category, outcome,
			candidate_count, result_count, prompt_tokens, completion_tokens,
			cost_usd, duration_ms, created_at
		) VALUES (
			:id, :source, :owner_id, :query, :translated_query, :category, :outcome,
			:candidate_count, :result_count, :prompt_tokens, :completion_tokens,
			:cost_usd, :duration_ms, :created_at
		)`
	if _, err := r.db.NamedExecContext(ctx, q, entry); err != nil {
		return fmt.Errorf("failed to insert search log: %w", err)
	}
	return nil
}

// List returns search logs matching filter, newest first, and the total count.
func (r *SearchLogRepository) List(ctx context.Context, filter models.SearchLogFilter) ([]models.SearchLog, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM search_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count search logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(filter.Offset, 0))
	q := fmt.Sprintf(`SELECT * FROM search_logs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var logs []models.SearchLog
	if err := r.db.SelectContext(ctx, &logs, q, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list search logs: %w", err)
	}
	return logs, total, nil
}

// SearchLogStats aggregates searches per outcome.
type SearchLogStats struct {
	Outcome     string  `db:"outcome" json:"outcome"`
	Count       int     `db:"count" json:"count"`
	TotalCost   float64 `db:"total_cost" json:"totalCostUsd"`
	AvgDuration float64 `db:"avg_duration" json:"avgDurationMs"`
}

// Stats returns per-outcome aggregates for logs matching filter.
func (r *SearchLogRepository) Stats(ctx context.Context, filter models.SearchLogFilter) ([]SearchLogStats, error) {
	where, args := filterClause(filter)
	q := `
		SELECT outcome, COUNT(*) AS count,
		       COALESCE(SUM(cost_usd), 0) AS total_cost,
		       COALESCE(AVG(duration_ms), 0) AS avg_duration
		FROM search_logs` + where + `
		GROUP BY outcome
		ORDER BY count DESC`

	var stats []SearchLogStats
	if err := r.db.SelectContext(ctx, &stats, q, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate search logs: %w", err)
	}
	return stats, nil
}

func filterClause(filter models.SearchLogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Source != "" {
		args = append(args, filter.Source)
		conds = append(conds, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		conds = append(conds, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
