package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// catchupLimit is the maximum number of events returned in a catchup
// response. If more events are missed, a caller is told to fall back to
// a full reload rather than paginate.
const catchupLimit = 200

// CatchupEvent holds one row returned by a catchup query.
type CatchupEvent struct {
	ID      int64
	Payload map[string]any
}

// CatchupQuerier reads persisted events for catchup delivery to a newly
// (re)subscribed caller. Implemented by Store.
type CatchupQuerier interface {
	GetCatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]CatchupEvent, error)
}

// Broker is the in-process fan-out counterpart to the teacher's
// WebSocket ConnectionManager, retargeted to a plain Go interface since
// HTTP/WebSocket transport is out of scope here (spec.md §1 Non-goals):
// any in-process caller — an embedding CLI, a test, a future transport
// adapter — subscribes to a conversation's channel and receives each
// Dispatch as a []byte off a buffered channel. It implements Dispatcher
// so a NotifyListener can drive it directly from PostgreSQL NOTIFY.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan []byte
	next int

	catchup CatchupQuerier
}

// NewBroker constructs a Broker. catchup may be nil, in which case
// Subscribe never replays history to a new subscriber.
func NewBroker(catchup CatchupQuerier) *Broker {
	return &Broker{
		subs:    make(map[string]map[int]chan []byte),
		catchup: catchup,
	}
}

// Subscribe registers a new listener on channel and returns a receive-only
// channel of raw event payloads plus an unsubscribe func. buf sizes the
// delivery channel; a slow subscriber that fills it will miss subsequent
// events rather than block the dispatching goroutine.
func (b *Broker) Subscribe(channel string, buf int) (<-chan []byte, func()) {
	ch := make(chan []byte, buf)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	id := b.next
	b.next++
	b.subs[channel][id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if set, ok := b.subs[channel]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(b.subs, channel)
			}
		}
		b.mu.Unlock()
		close(ch)
	}

	return ch, unsubscribe
}

// Dispatch implements Dispatcher: it fans payload out to every current
// subscriber of channel, dropping it for any subscriber whose buffer is
// full rather than blocking.
func (b *Broker) Dispatch(channel string, payload []byte) {
	b.mu.RLock()
	set := b.subs[channel]
	targets := make([]chan []byte, 0, len(set))
	for _, ch := range set {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- payload:
		default:
			slog.Warn("dropping event for slow subscriber", "channel", channel)
		}
	}
}

// SubscriberCount reports how many subscribers currently listen on channel.
func (b *Broker) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Catchup sends every persisted event on channel since sinceID (exclusive)
// to out, in order, capped at catchupLimit+1 to detect overflow. It
// reports hasMore so a caller can decide whether to fall back to a full
// reload instead of paginating.
func (b *Broker) Catchup(ctx context.Context, channel string, sinceID int64, out chan<- []byte) (hasMore bool, err error) {
	if b.catchup == nil {
		return false, nil
	}

	events, err := b.catchup.GetCatchupEvents(ctx, channel, sinceID, catchupLimit+1)
	if err != nil {
		return false, err
	}

	hasMore = len(events) > catchupLimit
	if hasMore {
		events = events[:catchupLimit]
	}

	for _, evt := range events {
		evt.Payload["db_event_id"] = evt.ID
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return hasMore, ctx.Err()
		}
	}
	return hasMore, nil
}
