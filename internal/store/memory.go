// Package store provides an in-memory reactive key/value store satisfying
// the watcher's store contract.
package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"

	"github.com/fennwick/sigtap/core/watch"
	"github.com/fennwick/sigtap/errs"
	"github.com/fennwick/sigtap/internal/observability"
)

// MemoryConfig configures the in-memory store's notification behavior.
type MemoryConfig struct {
	// NotifyRate caps invalidation dispatches per second. Zero means no cap.
	NotifyRate float64
	// NotifyBurst sets the dispatch burst allowance when NotifyRate is set.
	NotifyBurst int
}

func (c MemoryConfig) normalize() MemoryConfig {
	if c.NotifyRate <= 0 {
		c.NotifyRate = float64(rate.Inf)
	}
	if c.NotifyBurst <= 0 {
		c.NotifyBurst = 1
	}
	return c
}

// MemoryStore is an ordered, mutable field set that notifies subscribers
// after any field's value actually changes. Field order is insertion order
// and serves as the store's natural order.
//
// A single notifier goroutine dispatches callbacks, so callbacks for one
// subscription are never invoked concurrently with each other. Pending
// invalidations coalesce behind a one-slot dirty flag; a callback always
// observes the latest state because it re-snapshots on entry, so coalescing
// never drops the final value of a burst.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string
	values map[string]any
	subs   map[string]*subscription
	closed bool

	dirty   chan struct{}
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type subscription struct {
	id    string
	fn    func()
	store *MemoryStore
	once  sync.Once
}

// Cancel removes the subscription from the store. Canceling twice is a no-op.
func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s.id)
		s.store.mu.Unlock()
	})
}

// NewMemoryStore creates a reactive store and starts its notifier.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	s := new(MemoryStore)
	s.values = make(map[string]any)
	s.subs = make(map[string]*subscription)
	s.dirty = make(chan struct{}, 1)
	s.limiter = rate.NewLimiter(rate.Limit(cfg.NotifyRate), cfg.NotifyBurst)
	s.ctx = ctx
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.notify()
	return s
}

// Set stores a field value, appending the field to the natural order on
// first write. Subscribers are notified only when the value actually changed.
func (s *MemoryStore) Set(name string, value any) {
	if name == "" {
		return
	}
	s.mu.Lock()
	prev, existed := s.values[name]
	if !existed {
		s.order = append(s.order, name)
	}
	s.values[name] = value
	s.mu.Unlock()

	if !existed || !reflect.DeepEqual(prev, value) {
		s.invalidate()
	}
}

// Delete removes a field entirely. Subscribers see the removal as a change.
func (s *MemoryStore) Delete(name string) {
	s.mu.Lock()
	_, existed := s.values[name]
	if existed {
		delete(s.values, name)
		for i, field := range s.order {
			if field == name {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if existed {
		s.invalidate()
	}
}

// Snapshot returns all fields in natural order.
func (s *MemoryStore) Snapshot() []watch.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields := make([]watch.Field, 0, len(s.order))
	for _, name := range s.order {
		fields = append(fields, watch.Field{Name: name, Value: s.values[name]})
	}
	return fields
}

// OnInvalidate registers a callback fired after any field's value changes.
func (s *MemoryStore) OnInvalidate(fn func()) (watch.Subscription, error) {
	if fn == nil {
		return nil, errs.New("store/subscribe", errs.CodeInvalid,
			errs.WithMessage("callback required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errs.New("store/subscribe", errs.CodeUnavailable,
			errs.WithMessage("store closed"))
	}
	sub := &subscription{id: uuid.NewString(), fn: fn, store: s}
	s.subs[sub.id] = sub
	return sub, nil
}

// Close stops the notifier and refuses further subscriptions. Blocks until
// any in-flight dispatch completes.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

func (s *MemoryStore) invalidate() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *MemoryStore) notify() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
		s.dispatch()
	}
}

func (s *MemoryStore) dispatch() {
	s.mu.RLock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		var catcher panics.Catcher
		catcher.Try(sub.fn)
		if recovered := catcher.Recovered(); recovered != nil {
			observability.Log().Error("invalidation callback panicked",
				observability.Field{Key: "subscription", Value: sub.id},
				observability.Field{Key: "panic", Value: recovered.String()},
			)
		}
	}
}
