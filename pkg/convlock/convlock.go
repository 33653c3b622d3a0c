// Package convlock serializes turn persistence per conversation, so two
// concurrent requests against the same conversation can never race on
// TurnNumber assignment. Generalized from the teacher's pkg/mcp.Client
// reinitMu pattern (one *sync.Mutex per server id, lazily created in a
// sync.Map) from server ids to conversation ids.
package convlock

import (
	"sync"

	"github.com/google/uuid"
)

// Registry hands out a per-conversation mutex on demand.
type Registry struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Lock acquires the mutex for conversationID, creating it on first use.
func (r *Registry) Lock(conversationID uuid.UUID) {
	r.mutexFor(conversationID).Lock()
}

// Unlock releases the mutex for conversationID.
func (r *Registry) Unlock(conversationID uuid.UUID) {
	r.mutexFor(conversationID).Unlock()
}

// WithLock runs fn while holding conversationID's mutex.
func (r *Registry) WithLock(conversationID uuid.UUID, fn func() error) error {
	r.Lock(conversationID)
	defer r.Unlock(conversationID)
	return fn()
}

func (r *Registry) mutexFor(conversationID uuid.UUID) *sync.Mutex {
	muI, _ := r.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return muI.(*sync.Mutex)
}
