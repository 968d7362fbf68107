package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingPublisher struct {
	n      int
	err    error
	closed bool
}

func (c *countingPublisher) PublishSearchCompleted(context.Context, *SearchCompleted) error {
	c.n++
	return c.err
}

func (c *countingPublisher) Close() error {
	c.closed = true
	return nil
}

func TestMultiPublisher(t *testing.T) {
	failing := &countingPublisher{err: errors.New("broker down")}
	ok := &countingPublisher{}
	m := MultiPublisher{failing, ok, NopPublisher{}}

	err := m.PublishSearchCompleted(context.Background(), &SearchCompleted{EventID: "1"})
	assert.EqualError(t, err, "broker down")
	assert.Equal(t, 1, failing.n)
	assert.Equal(t, 1, ok.n)

	assert.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}
