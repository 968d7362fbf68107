package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
	"github.com/rs/zerolog/log"
)

// CategoryFetcher downloads the affiliate category taxonomy.
type CategoryFetcher interface {
	Categories(ctx context.Context) (*aliexpress.Payload, error)
}

// Category is one node of the taxonomy.
type Category struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Depth    int    `json:"depth"`
	Leaf     bool   `json:"leaf"`
}

// Taxonomy is a parsed category tree.
type Taxonomy struct {
	Categories []Category
}

// ParseTaxonomy builds categories with their full name paths from a raw
// category.get response. Nodes without a name are dropped.
func ParseTaxonomy(body []byte) *Taxonomy {
	payload := &aliexpress.Payload{Method: aliexpress.MethodCategoryGet, Body: body}
	raw := payload.List("resp_result", "result", "categories", "category")

	type node struct {
		id, parent, name string
		leaf             bool
	}
	nodes := make(map[string]node, len(raw))
	order := make([]string, 0, len(raw))
	hasChildren := make(map[string]bool)
	for _, r := range raw {
		id, _ := r.String("category_id")
		name, _ := r.String("category_name")
		if id == "" || name == "" {
			continue
		}
		parent, _ := r.String("parent_category_id")
		if parent == "0" {
			parent = ""
		}
		leaf, _ := r.String("is_leaf")
		nodes[id] = node{id: id, parent: parent, name: name, leaf: leaf == "true"}
		order = append(order, id)
		if parent != "" {
			hasChildren[parent] = true
		}
	}

	t := &Taxonomy{Categories: make([]Category, 0, len(order))}
	for _, id := range order {
		n := nodes[id]
		var path []string
		seen := make(map[string]bool)
		for cur, ok := n, true; ok && !seen[cur.id]; cur, ok = nodes[cur.parent] {
			seen[cur.id] = true
			path = append(path, cur.name)
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		t.Categories = append(t.Categories, Category{
			ID:       n.id,
			ParentID: n.parent,
			Name:     n.name,
			Path:     strings.Join(path, " > "),
			Depth:    len(path),
			Leaf:     n.leaf || !hasChildren[n.id],
		})
	}
	return t
}

// Scoring weights of FindBest.
const (
	scoreNameHit  = 15
	scorePathHit  = 5
	scoreLeaf     = 25
	scorePerDepth = 2
)

// FindBest scores every category against the keywords: a keyword found in
// the name adds 15, found anywhere in the path adds 5, leaves add 25 and each
// level of depth adds 2. Numeric tokens are ignored. Categories matching no
// keyword are never returned.
func (t *Taxonomy) FindBest(keywords string) (Category, bool) {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(keywords)) {
		if !isNumeric(tok) {
			tokens = append(tokens, tok)
		}
	}
	if t == nil || len(tokens) == 0 {
		return Category{}, false
	}

	var (
		best      Category
		bestScore = -1
	)
	for _, c := range t.Categories {
		name := strings.ToLower(c.Name)
		path := strings.ToLower(c.Path)

		hits, score := 0, 0
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				score += scoreNameHit
				hits++
			}
			if strings.Contains(path, tok) {
				score += scorePathHit
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		if c.Leaf {
			score += scoreLeaf
		}
		score += c.Depth * scorePerDepth

		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore >= 0
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// CategoryService serves the taxonomy from memory, the persistent cache, or
// the upstream, in that order, refetching once the cached copy is older than ttl.
type CategoryService struct {
	client CategoryFetcher
	store  cache.TaxonomyStore
	ttl    time.Duration

	mu        sync.RWMutex
	taxonomy  *Taxonomy
	fetchedAt time.Time
	now       func() time.Time
}

func NewCategoryService(client CategoryFetcher, store cache.TaxonomyStore, ttl time.Duration) *CategoryService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CategoryService{client: client, store: store, ttl: ttl, now: time.Now}
}

// Taxonomy returns a fresh taxonomy. A stale or missing cache triggers a refetch;
// if that fails the stale copy is served when one exists.
func (s *CategoryService) Taxonomy(ctx context.Context) (*Taxonomy, error) {
	s.mu.RLock()
	t, fetchedAt := s.taxonomy, s.fetchedAt
	s.mu.RUnlock()
	if t != nil && s.now().Sub(fetchedAt) < s.ttl {
		return t, nil
	}

	body, storedAt, err := s.store.Load(ctx)
	switch {
	case err == nil && s.now().Sub(storedAt) < s.ttl:
		t = ParseTaxonomy(body)
		s.set(t, storedAt)
		return t, nil
	case err != nil && !errors.Is(err, cache.ErrTaxonomyMissing):
		log.Warn().Err(err).Msg("Category cache read failed")
	}

	if refreshErr := s.Refresh(ctx); refreshErr != nil {
		if t != nil {
			log.Warn().Err(refreshErr).Msg("Category refresh failed, serving stale taxonomy")
			return t, nil
		}
		if len(body) > 0 {
			log.Warn().Err(refreshErr).Msg("Category refresh failed, serving stale cache file")
			t = ParseTaxonomy(body)
			s.set(t, storedAt)
			return t, nil
		}
		return nil, refreshErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxonomy, nil
}

// Refresh fetches the taxonomy from the upstream and persists it.
func (s *CategoryService) Refresh(ctx context.Context) error {
	payload, err := s.client.Categories(ctx)
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	t := ParseTaxonomy(payload.Body)
	if len(t.Categories) == 0 {
		return errors.New("fetch categories: empty taxonomy")
	}
	if err := s.store.Save(ctx, payload.Body); err != nil {
		log.Warn().Err(err).Msg("Category cache write failed")
	}
	s.set(t, s.now())
	log.Info().Int("categories", len(t.Categories)).Msg("Category taxonomy refreshed")
	return nil
}

// FindBestCategory returns the best matching category for keywords.
func (s *CategoryService) FindBestCategory(ctx context.Context, keywords string) (Category, bool) {
	t, err := s.Taxonomy(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Category taxonomy unavailable")
		return Category{}, false
	}
	return t.FindBest(keywords)
}

// Stale reports whether the in-memory taxonomy needs a refresh.
func (s *CategoryService) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxonomy == nil || s.now().Sub(s.fetchedAt) >= s.ttl
}

func (s *CategoryService) set(t *Taxonomy, fetchedAt time.Time) {
	s.mu.Lock()
	s.taxonomy, s.fetchedAt = t, fetchedAt
	s.mu.Unlock()
}
