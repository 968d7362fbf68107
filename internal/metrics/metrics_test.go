package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUpstreamObserver(t *testing.T) {
	counter := UpstreamAttemptsTotal.WithLabelValues("aliexpress.affiliate.product.query", "rate_limit")
	before := testutil.ToFloat64(counter)

	UpstreamObserver{}.ObserveAttempt("aliexpress.affiliate.product.query", "rate_limit", 20*time.Millisecond)
	UpstreamObserver{}.ObserveAttempt("aliexpress.affiliate.product.query", "rate_limit", 30*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestObserveStage(t *testing.T) {
	ObserveStage("relevance", 300*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(StageDuration, "dealfinder_stage_duration_seconds"))
}
