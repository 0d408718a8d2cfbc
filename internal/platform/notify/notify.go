// Package notify is a small synchronous publish/subscribe registry.
package notify

import (
	"sort"
	"sync"
	"sync/atomic"
)

type subscription[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Registry delivers published values to subscribers in subscription order, on the
// publisher's goroutine and outside the registry lock. The zero value is ready to use.
type Registry[T any] struct {
	mu   sync.Mutex
	subs map[int]*subscription[T]
	next int
}

// Subscribe registers fn. The returned function is idempotent; once it returns, fn is not
// invoked by later Publish calls.
func (r *Registry[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s := &subscription[T]{fn: fn}
	s.active.Store(true)

	r.mu.Lock()
	if r.subs == nil {
		r.subs = make(map[int]*subscription[T])
	}
	id := r.next
	r.next++
	r.subs[id] = s
	r.mu.Unlock()

	return func() {
		if !s.active.Swap(false) {
			return
		}
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Registry[T]) Publish(v T) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]*subscription[T], 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.subs[id])
	}
	r.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.fn(v)
		}
	}
}

// Len reports the number of live subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
