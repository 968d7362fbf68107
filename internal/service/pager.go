package service

import (
	"errors"

	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/internal/metrics"
	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/utils"
	"github.com/rs/zerolog/log"
)

// Page is one served slice of a search session.
type Page struct {
	SessionID string                 `json:"sessionId"`
	Index     int                    `json:"page"`
	Products  []models.ProductRecord `json:"products"`
	HasMore   bool                   `json:"hasMore"`
	Total     int                    `json:"total"`
}

// Pager turns session store state into page outcomes.
type Pager struct {
	sessions *cache.SessionRegistry
	pageSize int
}

func NewPager(sessions *cache.SessionRegistry, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = 4
	}
	return &Pager{sessions: sessions, pageSize: pageSize}
}

func (p *Pager) PageSize() int {
	return p.pageSize
}

// Start stores a finished result set for owner and serves its first page.
func (p *Pager) Start(scope string, ownerID int64, records []models.ProductRecord) (Page, Outcome) {
	if len(records) == 0 {
		return Page{}, OutcomeNoResults
	}
	store := p.sessions.For(scope)
	id := store.CreateSession(ownerID, records)
	return p.serve(store, id, 0, ownerID)
}

// Page serves page index of a session to requester. Checks run in order:
// session missing, requester not the owner, session already exhausted.
func (p *Pager) Page(scope, sessionID string, index int, requesterID int64) (Page, Outcome) {
	if index < 0 || sessionID == "" {
		return p.record(Page{}, OutcomeInvalidRequest)
	}

	store, ok := p.sessions.Peek(scope)
	if !ok {
		return p.record(Page{}, OutcomeExpired)
	}
	page, outcome := p.serve(store, sessionID, index, requesterID)
	if outcome == OutcomeUnauthorized {
		log.Warn().Str("session_id", sessionID).Int64("requester", requesterID).Msg("Pagination attempt by non-owner")
	}
	return p.record(page, outcome)
}

func (p *Pager) serve(store *cache.SessionStore, id string, index int, requesterID int64) (Page, Outcome) {
	sp, err := store.ServePage(id, index, p.pageSize, requesterID)
	switch {
	case errors.Is(err, utils.ErrSessionExpired):
		return Page{}, OutcomeExpired
	case errors.Is(err, utils.ErrUnauthorized):
		return Page{}, OutcomeUnauthorized
	case errors.Is(err, utils.ErrSessionExhausted):
		return Page{}, OutcomeExhausted
	case err != nil:
		return Page{}, OutcomeInvalidRequest
	case len(sp.Products) == 0:
		return Page{}, OutcomeExhausted
	}

	return Page{
		SessionID: id,
		Index:     index,
		Products:  sp.Products,
		HasMore:   sp.HasMore,
		Total:     sp.Total,
	}, OutcomeOK
}

func (p *Pager) record(page Page, outcome Outcome) (Page, Outcome) {
	metrics.PagesServedTotal.WithLabelValues(string(outcome)).Inc()
	return page, outcome
}
