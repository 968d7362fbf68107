package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/utils"
)

func makeRecords(n int) []models.ProductRecord {
	out := make([]models.ProductRecord, n)
	for i := range out {
		out[i] = models.ProductRecord{ProductID: strconv.Itoa(i), Title: "item " + strconv.Itoa(i)}
	}
	return out
}

func ids(records []models.ProductRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ProductID
	}
	return out
}

func TestGetPage_ContiguousSlices(t *testing.T) {
	s := NewSessionStore(10)
	id := s.CreateSession(1, makeRecords(12))

	p0, more0, err := s.GetPage(id, 0, 3)
	require.NoError(t, err)
	p1, more1, err := s.GetPage(id, 1, 3)
	require.NoError(t, err)
	both, _, err := s.GetPage(id, 0, 6)
	require.NoError(t, err)

	assert.True(t, more0)
	assert.True(t, more1)
	assert.Equal(t, ids(both), append(ids(p0), ids(p1)...))
}

func TestGetPage_ExhaustsOnLastPage(t *testing.T) {
	s := NewSessionStore(10)
	id := s.CreateSession(1, makeRecords(12))

	page, more, err := s.GetPage(id, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, ids(page))
	assert.True(t, more)

	view, _ := s.Lookup(id)
	assert.False(t, view.Exhausted)

	page, more, err = s.GetPage(id, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"9", "10", "11"}, ids(page))
	assert.False(t, more)

	view, _ = s.Lookup(id)
	assert.True(t, view.Exhausted)
}

func TestGetPage_BeyondDataExhausts(t *testing.T) {
	s := NewSessionStore(10)
	id := s.CreateSession(1, makeRecords(5))

	page, more, err := s.GetPage(id, 7, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, more)

	view, ok := s.Lookup(id)
	require.True(t, ok)
	assert.True(t, view.Exhausted)

	page, _, err = s.GetPage(id, 8, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGetPage_UnknownSession(t *testing.T) {
	s := NewSessionStore(10)
	_, _, err := s.GetPage("nope", 0, 3)
	assert.ErrorIs(t, err, utils.ErrSessionExpired)

	id := s.CreateSession(1, makeRecords(1))
	_, _, err = s.GetPage(id, -1, 3)
	assert.ErrorIs(t, err, utils.ErrInvalidPage)
}

func TestCreateSession_EvictsOldest(t *testing.T) {
	s := NewSessionStore(10)
	var created []string
	for i := 0; i < 11; i++ {
		created = append(created, s.CreateSession(1, makeRecords(2)))
	}

	assert.Equal(t, 10, s.Len())
	_, ok := s.Lookup(created[0])
	assert.False(t, ok)
	_, ok = s.Lookup(created[10])
	assert.True(t, ok)
}

func TestCreateSession_CopiesProducts(t *testing.T) {
	s := NewSessionStore(10)
	records := makeRecords(3)
	id := s.CreateSession(1, records)
	records[0].Title = "mutated"

	page, _, err := s.GetPage(id, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "item 0", page[0].Title)
}

func TestIsAuthorized(t *testing.T) {
	s := NewSessionStore(10)
	id := s.CreateSession(42, makeRecords(3))

	assert.True(t, s.IsAuthorized(id, 42))
	for _, other := range []int64{0, 1, -42, 43} {
		assert.False(t, s.IsAuthorized(id, other))
	}
	assert.False(t, s.IsAuthorized("missing", 42))
}

func TestIDGenerator_Monotonic(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	g := &idGenerator{now: func() time.Time { return fixed }}

	a := g.next()
	b := g.next()
	assert.NotEqual(t, a, b)

	an, _ := strconv.ParseInt(a, 36, 64)
	bn, _ := strconv.ParseInt(b, 36, 64)
	assert.Equal(t, an+1, bn)
}

func TestSessionRegistry_ScopesAreIsolated(t *testing.T) {
	r := NewSessionRegistry(100, 10)
	a := r.For(ChatScope(1))
	b := r.For(ChatScope(2))

	id := a.CreateSession(1, makeRecords(3))
	_, ok := b.Lookup(id)
	assert.False(t, ok)
	assert.Same(t, a, r.For(ChatScope(1)))

	_, ok = r.Peek(OwnerScope("nobody"))
	assert.False(t, ok)
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	s := NewSessionStore(200)
	id := s.CreateSession(1, makeRecords(100))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for p := 0; p < 10; p++ {
				page, _, err := s.GetPage(id, p, 10)
				assert.NoError(t, err)
				assert.Len(t, page, 10)
				assert.Equal(t, strconv.Itoa(p*10), page[0].ProductID)
				s.CreateSession(int64(w), makeRecords(1))
			}
		}(w)
	}
	wg.Wait()
}

func TestSessionStore_ServePage(t *testing.T) {
	s := NewSessionStore(10)
	id := s.CreateSession(42, makeRecords(5))

	_, err := s.ServePage("missing", 0, 3, 42)
	assert.ErrorIs(t, err, utils.ErrSessionExpired)

	_, err = s.ServePage(id, 0, 3, 43)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)

	_, err = s.ServePage(id, -1, 3, 42)
	assert.ErrorIs(t, err, utils.ErrInvalidPage)

	first, err := s.ServePage(id, 0, 3, 42)
	require.NoError(t, err)
	assert.Len(t, first.Products, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, 5, first.Total)

	last, err := s.ServePage(id, 1, 3, 42)
	require.NoError(t, err)
	assert.Len(t, last.Products, 2)
	assert.False(t, last.HasMore)

	_, err = s.ServePage(id, 1, 3, 42)
	assert.ErrorIs(t, err, utils.ErrSessionExhausted)
}
