package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeRefresher struct {
	stale     atomic.Bool
	refreshes atomic.Int32
	err       error
}

func (f *fakeRefresher) Stale() bool { return f.stale.Load() }

func (f *fakeRefresher) Refresh(context.Context) error {
	f.refreshes.Add(1)
	if f.err != nil {
		return f.err
	}
	f.stale.Store(false)
	return nil
}

func TestCategoryRefreshWorker_RefreshesWhenStale(t *testing.T) {
	r := &fakeRefresher{}
	r.stale.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewCategoryRefreshWorker(r, 10*time.Millisecond).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.refreshes.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), r.refreshes.Load(), "fresh taxonomy is not refetched")

	r.stale.Store(true)
	assert.Eventually(t, func() bool { return r.refreshes.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCategoryRefreshWorker_KeepsRetryingOnError(t *testing.T) {
	r := &fakeRefresher{err: errors.New("down")}
	r.stale.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewCategoryRefreshWorker(r, 10*time.Millisecond).Start(ctx)

	assert.Eventually(t, func() bool { return r.refreshes.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
