package connector

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/becomeliminal/nim-recall/core"
)

// RateLimited caps how often the wrapped connector is called. Callers wait
// for a token; a context deadline that expires first fails the search.
type RateLimited struct {
	Connector
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond searches with the given burst.
func NewRateLimited(c Connector, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		Connector: c,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Search implements Connector.
func (r *RateLimited) Search(ctx context.Context, query string, creds Credentials, limit int) ([]core.RetrievedItem, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", r.Kind(), err)
	}
	return r.Connector.Search(ctx, query, creds, limit)
}
