package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// NewRequestGate returns the single-slot limiter shared by every outbound
// detail and link call. Each Wait reserves the next slot at least spacing
// after the previous one; the HTTP call itself runs outside the limiter.
func NewRequestGate(spacing time.Duration) *rate.Limiter {
	if spacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(spacing), 1)
}

// DetailFetcher fetches the dropshipping detail record of one product.
type DetailFetcher interface {
	ProductDetail(ctx context.Context, productID string) (*aliexpress.Payload, error)
}

// DetailEnricher fills rating, sales and review counts from per-product
// detail calls issued by a bounded worker pool.
type DetailEnricher struct {
	client  DetailFetcher
	gate    *rate.Limiter
	workers int
}

func NewDetailEnricher(client DetailFetcher, gate *rate.Limiter, workers int) *DetailEnricher {
	if workers <= 0 {
		workers = 10
	}
	if gate == nil {
		gate = NewRequestGate(0)
	}
	return &DetailEnricher{client: client, gate: gate, workers: workers}
}

// Enrich returns a copy of records with detail fields merged in by index.
// A failed fetch leaves that record's fields absent and does not affect others.
func (e *DetailEnricher) Enrich(ctx context.Context, records []models.ProductRecord) []models.ProductRecord {
	out := make([]models.ProductRecord, len(records))
	copy(out, records)
	if len(out) == 0 {
		return out
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(e.workers, len(out)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				e.enrichOne(ctx, &out[i])
			}
		}()
	}

	for i := range out {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (e *DetailEnricher) enrichOne(ctx context.Context, rec *models.ProductRecord) {
	if rec.ProductID == "" {
		return
	}
	if err := e.gate.Wait(ctx); err != nil {
		return
	}

	payload, err := e.client.ProductDetail(ctx, rec.ProductID)
	if err != nil {
		log.Warn().Err(err).Str("product_id", rec.ProductID).Msg("Product detail fetch failed")
		return
	}

	info := payload.Object("result", "ae_item_base_info_dto")
	if info == nil {
		log.Debug().Str("product_id", rec.ProductID).Msg("Product detail has no base info")
		return
	}
	str := func(key string) string {
		s, _ := info.String(key)
		return strings.TrimSpace(s)
	}

	rec.Rating = ParseFloat(str("avg_evaluation_rating"))
	rec.SalesCount = ParseCount(str("sales_count"))
	rec.ReviewCount = ParseCount(str("evaluation_count"))
	if subject := str("subject"); subject != "" {
		rec.Subject = subject
	}
}
