// Package ratelimit paces outbound calls to the archive service.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum wall-clock interval between calls. One Pacer
// instance must gate every outbound request (index queries and snapshot
// fetches alike) so the aggregate request rate stays bounded no matter
// which subsystem is calling.
type Pacer struct {
	limiter *rate.Limiter
}

// New builds a Pacer with the given minimum interval. An interval of
// zero or less disables throttling.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the interval since the previous permit has elapsed,
// or the context is canceled.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
