package llm

import (
	"context"
	"fmt"
)

// Limiter is the subset of pkg/ratelimit.Limiter a RateLimitedInvoker
// needs: a shared-state requests-per-minute gate keyed by provider name.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (bool, error)
}

// ErrRateLimited is wrapped into the error RateLimitedInvoker.Invoke
// returns when the configured budget is exhausted; it satisfies
// ErrRetryable so a RateLimitedInvoker composes with RetryingInvoker.
var ErrRateLimited = fmt.Errorf("llm: %w: rate limit exceeded", ErrRetryable)

// RateLimitedInvoker enforces a per-provider requests-per-minute budget
// via a shared Limiter before delegating to Inner, so multiple
// orchestrator instances draw down the same budget instead of each
// enforcing its own in-process limit.
type RateLimitedInvoker struct {
	Inner        Invoker
	Limiter      Limiter
	ProviderName string
	RPM          int
}

// NewRateLimitedInvoker wraps inner with a Limiter-backed budget of rpm
// requests per minute for providerName.
func NewRateLimitedInvoker(inner Invoker, limiter Limiter, providerName string, rpm int) *RateLimitedInvoker {
	return &RateLimitedInvoker{Inner: inner, Limiter: limiter, ProviderName: providerName, RPM: rpm}
}

// Invoke checks the shared budget before delegating to Inner. A Limiter
// error is treated as retryable rather than failing the call outright,
// since it most often reflects a transient Redis hiccup.
func (r *RateLimitedInvoker) Invoke(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Response, error) {
	allowed, err := r.Limiter.Allow(ctx, r.ProviderName, r.RPM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}
	return r.Inner.Invoke(ctx, messages, temperature, maxTokens)
}
