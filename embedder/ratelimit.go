package embedder

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Generator with a token-bucket rate limiter so bulk
// ingestion cannot overwhelm the embedding service.
type RateLimited struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewRateLimited creates a rate-limited Generator allowing rps requests per
// second with the given burst.
func NewRateLimited(inner Generator, rps float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for a token, then delegates. A canceled context aborts
// the wait.
func (r *RateLimited) Generate(ctx context.Context, imageRef string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Generate(ctx, imageRef)
}

// Dimension implements Generator.
func (r *RateLimited) Dimension() int {
	return r.inner.Dimension()
}
