package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    TextGenerator
	limiter *rate.Limiter
}

// NewRateLimited paces calls to next at most rpm per minute. rpm <= 0
// returns next unchanged. Waiting honours ctx; nothing is retried.
func NewRateLimited(next TextGenerator, rpm int) TextGenerator {
	if rpm <= 0 {
		return next
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (r *rateLimited) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ContentResponse{}, fmt.Errorf("rate limiter error: %w", err)
	}
	return r.next.GenerateContent(ctx, prompt)
}

// Close forwards to the wrapped generator when it holds resources.
func (r *rateLimited) Close() error {
	if c, ok := r.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
