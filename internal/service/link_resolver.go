package service

import (
	"context"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// LinkGenerator converts source links into tracked short links.
type LinkGenerator interface {
	GenerateLinks(ctx context.Context, sourceLinks []string) (map[string]string, error)
}

// LinkResolver rewrites affiliate links to short links in a single batch call.
type LinkResolver struct {
	client LinkGenerator
	gate   *rate.Limiter
}

func NewLinkResolver(client LinkGenerator, gate *rate.Limiter) *LinkResolver {
	if gate == nil {
		gate = NewRequestGate(0)
	}
	return &LinkResolver{client: client, gate: gate}
}

// Resolve returns a copy of records with short links where the upstream
// returned one. Unresolved links are kept; errors are only logged.
func (l *LinkResolver) Resolve(ctx context.Context, records []models.ProductRecord) []models.ProductRecord {
	out := make([]models.ProductRecord, len(records))
	copy(out, records)

	sources := make([]string, 0, len(out))
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		if r.AffiliateLink == "" || seen[r.AffiliateLink] {
			continue
		}
		seen[r.AffiliateLink] = true
		sources = append(sources, r.AffiliateLink)
	}
	if len(sources) == 0 {
		return out
	}

	if err := l.gate.Wait(ctx); err != nil {
		return out
	}
	links, err := l.client.GenerateLinks(ctx, sources)
	if err != nil {
		log.Warn().Err(err).Int("links", len(sources)).Msg("Short link generation failed, keeping source links")
		return out
	}

	resolved := 0
	for i := range out {
		if short, ok := links[out[i].AffiliateLink]; ok && short != "" {
			out[i].AffiliateLink = short
			resolved++
		}
	}
	if resolved < len(out) {
		log.Debug().Int("resolved", resolved).Int("total", len(out)).Msg("Some links kept their source value")
	}
	return out
}
