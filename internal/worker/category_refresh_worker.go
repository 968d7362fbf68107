package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// TaxonomyRefresher is the category cache the worker keeps fresh.
type TaxonomyRefresher interface {
	Stale() bool
	Refresh(ctx context.Context) error
}

// CategoryRefreshWorker periodically refetches the category taxonomy once
// the cached copy is older than its TTL.
type CategoryRefreshWorker struct {
	categories TaxonomyRefresher
	interval   time.Duration
}

// NewCategoryRefreshWorker constructs a CategoryRefreshWorker.
func NewCategoryRefreshWorker(categories TaxonomyRefresher, interval time.Duration) *CategoryRefreshWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CategoryRefreshWorker{
		categories: categories,
		interval:   interval,
	}
}

// Start begins the refresh loop and listens for context cancellation.
func (w *CategoryRefreshWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting category refresh worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Category refresh worker stopped")
			return
		}
	}
}

func (w *CategoryRefreshWorker) run(ctx context.Context) {
	if !w.categories.Stale() {
		return
	}

	log.Info().Msg("Refreshing category taxonomy...")
	start := time.Now()
	if err := w.categories.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to refresh category taxonomy")
		return
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Category taxonomy refreshed")
}
