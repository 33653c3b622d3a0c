package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingDispatcher struct {
	channel string
	payload []byte
}

func (r *recordingDispatcher) Dispatch(channel string, payload []byte) {
	r.channel = channel
	r.payload = payload
}

func TestNewNotifyListener(t *testing.T) {
	d := &recordingDispatcher{}
	listener := NewNotifyListener("host=localhost dbname=test", d)

	assert.NotNil(t, listener)
	assert.Equal(t, "host=localhost dbname=test", listener.connString)
	assert.NotNil(t, listener.channels)
	assert.Equal(t, d, listener.dispatcher)
}

func TestNotifyListener_ChannelTrackingWithoutConnection(t *testing.T) {
	// Without calling Start(), the listener has no connection. Subscribe
	// and Unsubscribe must fail/no-op gracefully rather than block.
	listener := NewNotifyListener("host=localhost dbname=test", &recordingDispatcher{})

	t.Run("subscribe without connection returns error", func(t *testing.T) {
		err := listener.Subscribe(t.Context(), "conversation:test")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not established")
	})

	t.Run("unsubscribe without connection is a no-op", func(t *testing.T) {
		err := listener.Unsubscribe(t.Context(), "conversation:test")
		assert.NoError(t, err)
	})

	t.Run("not listening by default", func(t *testing.T) {
		assert.False(t, listener.isListening("conversation:test"))
	})
}
