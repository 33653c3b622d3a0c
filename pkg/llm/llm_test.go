package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedInvoker struct {
	failures int
	err      error
	resp     *Response
}

func (s *scriptedInvoker) Invoke(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Response, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.Join(ErrRetryable, s.err)
	}
	return s.resp, nil
}

func TestRetryingInvoker_RetriesRetryableErrors(t *testing.T) {
	inner := &scriptedInvoker{failures: 2, err: errors.New("rate limited"), resp: &Response{Content: "ok"}}
	r := NewRetryingInvoker(inner, 5*time.Second)

	resp, err := r.Invoke(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 0, inner.failures)
}

func TestRetryingInvoker_PermanentErrorStopsImmediately(t *testing.T) {
	failing := &failingInvoker{err: errors.New("bad request")}
	r := NewRetryingInvoker(failing, time.Second)

	_, err := r.Invoke(context.Background(), nil, 0, 0)
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
}

type failingInvoker struct {
	err   error
	calls int
}

func (f *failingInvoker) Invoke(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Response, error) {
	f.calls++
	return nil, f.err
}
