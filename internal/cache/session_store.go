package cache

import (
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/utils"
)

// DefaultSessionCapacity is the number of searches retained per chat.
const DefaultSessionCapacity = 10

// searchSession is one search's retained result set. Products are fixed at
// creation; only exhausted changes, and only from false to true.
type searchSession struct {
	id        string
	ownerID   int64
	products  []models.ProductRecord
	createdAt time.Time
	exhausted bool
}

// SessionView is a read-only snapshot of a session.
type SessionView struct {
	ID        string
	OwnerID   int64
	Size      int
	Exhausted bool
	CreatedAt time.Time
}

// idGenerator issues time-derived ids that strictly increase even when the
// clock does not advance between calls.
type idGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{now: time.Now}
}

func (g *idGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.now().UnixNano()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return strconv.FormatInt(n, 36)
}

// SessionStore keeps the most recent searches of one chat. Page reads do not
// refresh recency, so the oldest created session is evicted first.
type SessionStore struct {
	mu       sync.RWMutex
	sessions *lru.Cache[string, *searchSession]
	ids      *idGenerator
}

// NewSessionStore creates a store retaining at most capacity sessions.
func NewSessionStore(capacity int) *SessionStore {
	return newSessionStore(capacity, newIDGenerator())
}

func newSessionStore(capacity int, ids *idGenerator) *SessionStore {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	sessions, err := lru.New[string, *searchSession](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &SessionStore{sessions: sessions, ids: ids}
}

// CreateSession stores a copy of products and returns the new session id.
func (s *SessionStore) CreateSession(ownerID int64, products []models.ProductRecord) string {
	owned := make([]models.ProductRecord, len(products))
	copy(owned, products)

	id := s.ids.next()
	s.mu.Lock()
	s.sessions.Add(id, &searchSession{
		id:        id,
		ownerID:   ownerID,
		products:  owned,
		createdAt: time.Now(),
	})
	s.mu.Unlock()
	return id
}

// GetPage returns records [page*size, page*size+size) and whether more remain.
// Serving the last record, or asking past the end, marks the session exhausted;
// the latter returns an empty slice. Unknown ids return ErrSessionExpired.
func (s *SessionStore) GetPage(id string, page, size int) ([]models.ProductRecord, bool, error) {
	if page < 0 || size <= 0 {
		return nil, false, utils.ErrInvalidPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Peek(id)
	if !ok {
		return nil, false, utils.ErrSessionExpired
	}
	out, hasMore := sess.slice(page, size)
	return out, hasMore, nil
}

// SessionPage is one page served by ServePage.
type SessionPage struct {
	Products []models.ProductRecord
	HasMore  bool
	Total    int
}

// ServePage is GetPage for a requester, with the ownership and exhaustion
// checks made under the same lock as the read. Checks run in order: unknown
// id (ErrSessionExpired), requester not the owner (ErrUnauthorized), session
// already exhausted (ErrSessionExhausted).
func (s *SessionStore) ServePage(id string, page, size int, requesterID int64) (SessionPage, error) {
	if page < 0 || size <= 0 {
		return SessionPage{}, utils.ErrInvalidPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Peek(id)
	switch {
	case !ok:
		return SessionPage{}, utils.ErrSessionExpired
	case sess.ownerID != requesterID:
		return SessionPage{}, utils.ErrUnauthorized
	case sess.exhausted:
		return SessionPage{}, utils.ErrSessionExhausted
	}
	out, hasMore := sess.slice(page, size)
	return SessionPage{Products: out, HasMore: hasMore, Total: len(sess.products)}, nil
}

// slice copies one page out and flips exhausted once the end is reached.
// Callers hold the store lock.
func (sess *searchSession) slice(page, size int) ([]models.ProductRecord, bool) {
	start := page * size
	if start >= len(sess.products) {
		sess.exhausted = true
		return []models.ProductRecord{}, false
	}
	end := min(start+size, len(sess.products))

	out := make([]models.ProductRecord, end-start)
	copy(out, sess.products[start:end])

	hasMore := end < len(sess.products)
	if !hasMore {
		sess.exhausted = true
	}
	return out, hasMore
}

// Lookup returns a snapshot of the session without touching its state.
func (s *SessionStore) Lookup(id string) (SessionView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions.Peek(id)
	if !ok {
		return SessionView{}, false
	}
	return SessionView{
		ID:        sess.id,
		OwnerID:   sess.ownerID,
		Size:      len(sess.products),
		Exhausted: sess.exhausted,
		CreatedAt: sess.createdAt,
	}, true
}

// IsAuthorized reports whether requesterID created the session.
func (s *SessionStore) IsAuthorized(id string, requesterID int64) bool {
	view, ok := s.Lookup(id)
	return ok && view.OwnerID == requesterID
}

// Len returns the number of retained sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.Len()
}

// SessionRegistry hands out one SessionStore per scope (a chat or an API
// owner). Scopes themselves are LRU-bounded.
type SessionRegistry struct {
	mu       sync.Mutex
	stores   *lru.Cache[string, *SessionStore]
	capacity int
	ids      *idGenerator
}

// NewSessionRegistry creates a registry keeping up to maxScopes stores of
// perScope sessions each.
func NewSessionRegistry(maxScopes, perScope int) *SessionRegistry {
	if maxScopes <= 0 {
		maxScopes = 10000
	}
	stores, err := lru.New[string, *SessionStore](maxScopes)
	if err != nil {
		panic(err)
	}
	return &SessionRegistry{stores: stores, capacity: perScope, ids: newIDGenerator()}
}

// For returns the store for scope, creating it on first use.
func (r *SessionRegistry) For(scope string) *SessionStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.stores.Get(scope); ok {
		return store
	}
	store := newSessionStore(r.capacity, r.ids)
	r.stores.Add(scope, store)
	return store
}

// Peek returns the store for scope if it exists.
func (r *SessionRegistry) Peek(scope string) (*SessionStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores.Get(scope)
}

// ChatScope and OwnerScope build registry keys.
func ChatScope(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func OwnerScope(ownerID string) string {
	return "api:" + ownerID
}
