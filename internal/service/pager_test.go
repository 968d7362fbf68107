package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/cache"
)

func TestPager_TwelveProductsPageSizeThree(t *testing.T) {
	pager := NewPager(cache.NewSessionRegistry(10, 10), 3)
	scope := cache.ChatScope(100)

	first, outcome := pager.Start(scope, 7, titled(12))
	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []string{"0", "1", "2"}, productIDs(first.Products))
	assert.True(t, first.HasMore)
	assert.Equal(t, 12, first.Total)

	for page := 1; page <= 2; page++ {
		p, outcome := pager.Page(scope, first.SessionID, page, 7)
		require.Equal(t, OutcomeOK, outcome)
		assert.True(t, p.HasMore)
	}

	last, outcome := pager.Page(scope, first.SessionID, 3, 7)
	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []string{"9", "10", "11"}, productIDs(last.Products))
	assert.False(t, last.HasMore)

	_, outcome = pager.Page(scope, first.SessionID, 4, 7)
	assert.Equal(t, OutcomeExhausted, outcome)
}

func TestPager_Outcomes(t *testing.T) {
	registry := cache.NewSessionRegistry(10, 10)
	pager := NewPager(registry, 4)
	scope := cache.ChatScope(1)

	_, outcome := pager.Start(scope, 7, nil)
	assert.Equal(t, OutcomeNoResults, outcome)

	first, outcome := pager.Start(scope, 7, titled(8))
	require.Equal(t, OutcomeOK, outcome)

	_, outcome = pager.Page(scope, first.SessionID, 1, 8)
	assert.Equal(t, OutcomeUnauthorized, outcome)

	_, outcome = pager.Page(scope, "unknown", 1, 7)
	assert.Equal(t, OutcomeExpired, outcome)

	_, outcome = pager.Page(cache.ChatScope(2), first.SessionID, 1, 7)
	assert.Equal(t, OutcomeExpired, outcome)

	_, outcome = pager.Page(scope, first.SessionID, -1, 7)
	assert.Equal(t, OutcomeInvalidRequest, outcome)

	// unauthorized attempt did not change state
	p, outcome := pager.Page(scope, first.SessionID, 1, 7)
	require.Equal(t, OutcomeOK, outcome)
	assert.False(t, p.HasMore)

	_, outcome = pager.Page(scope, first.SessionID, 1, 7)
	assert.Equal(t, OutcomeExhausted, outcome)
}

func TestPager_PageBeyondDataIsExhausted(t *testing.T) {
	pager := NewPager(cache.NewSessionRegistry(10, 10), 4)
	scope := cache.ChatScope(1)
	first, _ := pager.Start(scope, 7, titled(6))

	_, outcome := pager.Page(scope, first.SessionID, 5, 7)
	assert.Equal(t, OutcomeExhausted, outcome)
	_, outcome = pager.Page(scope, first.SessionID, 1, 7)
	assert.Equal(t, OutcomeExhausted, outcome)
}

func TestPager_SinglePageSessionExhaustsImmediately(t *testing.T) {
	pager := NewPager(cache.NewSessionRegistry(10, 10), 4)
	scope := cache.ChatScope(1)

	first, outcome := pager.Start(scope, 7, titled(4))
	require.Equal(t, OutcomeOK, outcome)
	assert.False(t, first.HasMore)

	_, outcome = pager.Page(scope, first.SessionID, 1, 7)
	assert.Equal(t, OutcomeExhausted, outcome)
}

func TestPager_ConcurrentClicksServeLastPageOnce(t *testing.T) {
	pager := NewPager(cache.NewSessionRegistry(10, 10), 4)
	scope := cache.ChatScope(1)
	first, outcome := pager.Start(scope, 7, titled(8))
	require.Equal(t, OutcomeOK, outcome)

	const clicks = 32
	outcomes := make([]Outcome, clicks)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, outcomes[i] = pager.Page(scope, first.SessionID, 1, 7)
		}(i)
	}
	close(start)
	wg.Wait()

	counts := map[Outcome]int{}
	for _, o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[OutcomeOK])
	assert.Equal(t, clicks-1, counts[OutcomeExhausted])
}

func TestOutcomeErrDistinct(t *testing.T) {
	seen := map[string]Outcome{}
	for _, o := range []Outcome{OutcomeNoResults, OutcomeRateLimited, OutcomeExpired, OutcomeExhausted, OutcomeUnauthorized, OutcomeInvalidRequest, OutcomeFailed} {
		err := o.Err()
		require.Error(t, err)
		_, dup := seen[err.Error()]
		assert.False(t, dup, "outcome %s shares an error", o)
		seen[err.Error()] = o
	}
	assert.NoError(t, OutcomeOK.Err())
}
