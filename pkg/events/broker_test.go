package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_SubscribeAndDispatch(t *testing.T) {
	b := NewBroker(nil)
	ch, unsubscribe := b.Subscribe("conversation:1", 4)
	defer unsubscribe()

	assert.Equal(t, 1, b.SubscriberCount("conversation:1"))

	b.Dispatch("conversation:1", []byte(`{"type":"orchestrator.progress"}`))

	select {
	case payload := <-ch:
		assert.Contains(t, string(payload), "orchestrator.progress")
	default:
		t.Fatal("expected a dispatched payload")
	}
}

func TestBroker_DispatchToNoSubscribersIsNoop(t *testing.T) {
	b := NewBroker(nil)
	assert.NotPanics(t, func() {
		b.Dispatch("conversation:nobody", []byte("{}"))
	})
}

func TestBroker_DispatchDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(nil)
	ch, unsubscribe := b.Subscribe("conversation:1", 1)
	defer unsubscribe()

	b.Dispatch("conversation:1", []byte("first"))
	b.Dispatch("conversation:1", []byte("second")) // dropped, buffer full

	assert.Equal(t, []byte("first"), <-ch)
	select {
	case <-ch:
		t.Fatal("expected only the first payload to survive")
	default:
	}
}

func TestBroker_UnsubscribeRemovesSubscriber(t *testing.T) {
	b := NewBroker(nil)
	_, unsubscribe := b.Subscribe("conversation:1", 1)
	require.Equal(t, 1, b.SubscriberCount("conversation:1"))

	unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount("conversation:1"))
}

type fakeCatchupQuerier struct {
	events []CatchupEvent
	err    error
}

func (f *fakeCatchupQuerier) GetCatchupEvents(_ context.Context, _ string, _ int64, limit int) ([]CatchupEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func TestBroker_Catchup(t *testing.T) {
	q := &fakeCatchupQuerier{events: []CatchupEvent{
		{ID: 1, Payload: map[string]any{"type": "orchestrator.progress"}},
		{ID: 2, Payload: map[string]any{"type": "orchestrator.result"}},
	}}
	b := NewBroker(q)

	out := make(chan []byte, 4)
	hasMore, err := b.Catchup(t.Context(), "conversation:1", 0, out)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, out, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(<-out, &first))
	assert.Equal(t, float64(1), first["db_event_id"])
}

func TestBroker_Catchup_NilQuerier(t *testing.T) {
	b := NewBroker(nil)
	out := make(chan []byte, 1)
	hasMore, err := b.Catchup(t.Context(), "conversation:1", 0, out)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, out)
}

func TestBroker_Catchup_PropagatesError(t *testing.T) {
	b := NewBroker(&fakeCatchupQuerier{err: assert.AnError})
	out := make(chan []byte, 1)
	_, err := b.Catchup(t.Context(), "conversation:1", 0, out)
	assert.ErrorIs(t, err, assert.AnError)
}
