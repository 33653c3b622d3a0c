// Package llm provides a synchronous LLM invocation interface used by
// the query-generation phases. It keeps the teacher's conversation
// message vocabulary (pkg/agent/llm_client.go's Role* constants and
// ConversationMessage) but drops the gRPC/streaming transport: callers
// here want one shaped answer per phase, not a chunk stream.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Conversation message roles, kept from the teacher's vocabulary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a prompt sent to the LLM.
type Message struct {
	Role    string
	Content string
}

// Response is the LLM's answer to an Invoke call.
type Response struct {
	Content   string
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// Invoker calls an LLM synchronously. Implementations wrap a specific
// provider's HTTP/SDK client.
type Invoker interface {
	Invoke(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Response, error)
}

// ErrRetryable marks provider errors that are safe to retry (rate limits,
// transient network failures); implementations wrap their underlying
// error with this sentinel via errors.Join or a custom Unwrap.
var ErrRetryable = errors.New("llm: retryable error")

// RetryingInvoker wraps an Invoker with exponential backoff retry on
// retryable errors, grounded on the teacher's use of
// cenkalti/backoff/v4 for its own upstream call retries.
type RetryingInvoker struct {
	Inner   Invoker
	MaxWait time.Duration
}

// NewRetryingInvoker wraps inner with a capped exponential backoff policy.
func NewRetryingInvoker(inner Invoker, maxWait time.Duration) *RetryingInvoker {
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &RetryingInvoker{Inner: inner, MaxWait: maxWait}
}

// Invoke retries inner.Invoke while the returned error wraps ErrRetryable,
// backing off exponentially up to MaxWait total.
func (r *RetryingInvoker) Invoke(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Response, error) {
	policy := backoff.WithContext(backoff.WithMaxElapsedTime(backoff.NewExponentialBackOff(), r.MaxWait), ctx)

	var resp *Response
	err := backoff.Retry(func() error {
		var err error
		resp, err = r.Inner.Invoke(ctx, messages, temperature, maxTokens)
		if err != nil && errors.Is(err, ErrRetryable) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy)

	if err != nil {
		return nil, err
	}
	return resp, nil
}
