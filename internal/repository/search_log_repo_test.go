package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/models"
)

func TestFilterClause(t *testing.T) {
	where, args := filterClause(models.SearchLogFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = filterClause(models.SearchLogFilter{Source: models.SearchSourceAPI, Outcome: "ok"})
	assert.Equal(t, " WHERE source = $1 AND outcome = $2", where)
	assert.Equal(t, []any{models.SearchSourceAPI, "ok"}, args)

	where, args = filterClause(models.SearchLogFilter{Outcome: "no_results"})
	assert.Equal(t, " WHERE outcome = $1", where)
	assert.Len(t, args, 1)
}

// Requires a migrated Postgres at TEST_DATABASE_URL.
func TestSearchLogRepository_CreateAndList(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	repo := NewSearchLogRepository(db)
	ctx := context.Background()
	category := "Consumer Electronics > Speakers"
	entry := &models.SearchLog{
		ID:              uuid.New().String(),
		Source:          models.SearchSourceAPI,
		OwnerID:         7,
		Query:           "speaker",
		TranslatedQuery: "speaker",
		Category:        &category,
		Outcome:         "ok",
		ResultCount:     4,
		CostUSD:         0.0012,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repo.Create(ctx, entry))

	logs, total, err := repo.List(ctx, models.SearchLogFilter{Source: models.SearchSourceAPI, Limit: 10})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	require.NotEmpty(t, logs)

	stats, err := repo.Stats(ctx, models.SearchLogFilter{Source: models.SearchSourceAPI})
	require.NoError(t, err)
	assert.NotEmpty(t, stats)

	_, err = db.ExecContext(ctx, `DELETE FROM search_logs WHERE id = $1`, entry.ID)
	require.NoError(t, err)
}
