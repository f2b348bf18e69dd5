package connector

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
)

type countingConnector struct {
	calls atomic.Int32
}

func (c *countingConnector) Kind() string { return "count" }

func (c *countingConnector) Search(context.Context, string, Credentials, int) ([]core.RetrievedItem, error) {
	c.calls.Add(1)
	return []core.RetrievedItem{{ID: "x"}}, nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingConnector{}
	// One token, refilled every ten seconds.
	c := NewRateLimited(inner, 0.1, 1)
	assert.Equal(t, "count", c.Kind())

	items, err := c.Search(context.Background(), "q", Credentials{}, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "q", Credentials{}, 1)
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}
