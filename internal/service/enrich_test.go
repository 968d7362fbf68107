package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/pkg/aliexpress"
)

type fakeDetails struct {
	mu       sync.Mutex
	calls    []time.Time
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fail     map[string]bool
}

func (f *fakeDetails) ProductDetail(_ context.Context, id string) (*aliexpress.Payload, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	f.mu.Unlock()

	// finish in random order
	time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
	if f.fail[id] {
		return nil, errors.New("detail failed")
	}
	body := fmt.Sprintf(`{"aliexpress_ds_product_get_response":{"result":{"ae_item_base_info_dto":{
		"avg_evaluation_rating":"4.%s","sales_count":"%s,000+","evaluation_count":"%s","subject":"subject %s"}}}}`, id, id, id, id)
	return &aliexpress.Payload{Method: aliexpress.MethodProductGet, Body: []byte(body)}, nil
}

func TestDetailEnricher_MergesByIndex(t *testing.T) {
	records := make([]models.ProductRecord, 20)
	for i := range records {
		records[i] = models.ProductRecord{ProductID: fmt.Sprint(i + 1)}
	}
	fetcher := &fakeDetails{fail: map[string]bool{"3": true}}
	e := NewDetailEnricher(fetcher, NewRequestGate(0), 10)

	out := e.Enrich(context.Background(), records)
	require.Len(t, out, 20)

	for i, r := range out {
		id := fmt.Sprint(i + 1)
		assert.Equal(t, id, r.ProductID)
		if id == "3" {
			assert.False(t, r.Rating.Valid)
			assert.False(t, r.SalesCount.Valid)
			assert.False(t, r.ReviewCount.Valid)
			assert.Empty(t, r.Subject)
			continue
		}
		assert.True(t, r.SalesCount.Valid)
		assert.Equal(t, int64(i+1)*1000, r.SalesCount.Value)
		assert.Equal(t, int64(i+1), r.ReviewCount.Value)
		assert.Equal(t, "subject "+id, r.Subject)
	}
	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int32(10))
	assert.False(t, records[0].SalesCount.Valid)
}

func TestDetailEnricher_SharedSpacing(t *testing.T) {
	records := make([]models.ProductRecord, 5)
	for i := range records {
		records[i] = models.ProductRecord{ProductID: fmt.Sprint(i + 1)}
	}
	fetcher := &fakeDetails{}
	spacing := 20 * time.Millisecond
	e := NewDetailEnricher(fetcher, NewRequestGate(spacing), 5)

	e.Enrich(context.Background(), records)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Len(t, fetcher.calls, 5)
	first, last := fetcher.calls[0], fetcher.calls[0]
	for _, c := range fetcher.calls {
		if c.Before(first) {
			first = c
		}
		if c.After(last) {
			last = c
		}
	}
	// five slots need at least four spacings
	assert.GreaterOrEqual(t, last.Sub(first), 4*spacing-5*time.Millisecond)
}

func TestDetailEnricher_MissingBaseInfo(t *testing.T) {
	fetcher := detailFunc(func(ctx context.Context, id string) (*aliexpress.Payload, error) {
		return &aliexpress.Payload{Method: aliexpress.MethodProductGet, Body: []byte(`{"aliexpress_ds_product_get_response":{"rsp_code":"404"}}`)}, nil
	})
	out := NewDetailEnricher(fetcher, nil, 2).Enrich(context.Background(), []models.ProductRecord{{ProductID: "1", Title: "t"}})
	assert.Equal(t, "t", out[0].DisplayTitle())
	assert.False(t, out[0].Rating.Valid)
}

type detailFunc func(ctx context.Context, id string) (*aliexpress.Payload, error)

func (f detailFunc) ProductDetail(ctx context.Context, id string) (*aliexpress.Payload, error) {
	return f(ctx, id)
}
