package convlock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_WithLock_SerializesSameConversation(t *testing.T) {
	r := New()
	id := uuid.New()

	var counter int64
	var maxObserved int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.WithLock(id, func() error {
				n := atomic.AddInt64(&counter, 1)
				if n > atomic.LoadInt64(&maxObserved) {
					atomic.StoreInt64(&maxObserved, n)
				}
				atomic.AddInt64(&counter, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), maxObserved, "only one goroutine should hold a conversation's lock at a time")
}

func TestRegistry_DifferentConversationsDoNotBlock(t *testing.T) {
	r := New()
	a, b := uuid.New(), uuid.New()

	r.Lock(a)
	defer r.Unlock(a)

	done := make(chan struct{})
	go func() {
		r.Lock(b)
		r.Unlock(b)
		close(done)
	}()
	<-done
}
