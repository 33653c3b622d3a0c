// Package fake provides a deterministic llm.Invoker stub for tests that
// exercise the orchestrator and query-generation phases without a real
// provider call, mirroring the teacher's test/e2e/mock_llm.go approach of
// scripting canned responses instead of hitting a network endpoint.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/tarsy-labs/queryweave/pkg/llm"
)

// Invoker returns scripted responses in call order, or a single Response
// repeated for every call if only one was configured.
type Invoker struct {
	mu        sync.Mutex
	Responses []*llm.Response
	Err       error
	calls     int
	Requests  []Request
}

// Request captures one call's arguments for assertions in tests.
type Request struct {
	Messages    []llm.Message
	Temperature float64
	MaxTokens   int
}

var _ llm.Invoker = (*Invoker)(nil)

// New builds an Invoker that returns responses in order.
func New(responses ...*llm.Response) *Invoker {
	return &Invoker{Responses: responses}
}

// Invoke records the call and returns the next scripted response.
func (f *Invoker) Invoke(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, Request{Messages: messages, Temperature: temperature, MaxTokens: maxTokens})

	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return nil, fmt.Errorf("fake.Invoker: no responses configured")
	}

	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}

// CallCount reports how many times Invoke has been called.
func (f *Invoker) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
