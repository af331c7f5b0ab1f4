// Package watch observes a reactive store and logs one signal event per
// observed field transition, using snapshot-diff semantics.
package watch

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fennwick/sigtap/core/signal"
	"github.com/fennwick/sigtap/errs"
	"github.com/fennwick/sigtap/internal/observability"
	"github.com/fennwick/sigtap/lib/render"
)

// Field is one named store value in the store's natural order.
type Field struct {
	Name  string
	Value any
}

// Store is the reactive store handle consumed by the watcher. The store
// guarantees that Snapshot called synchronously inside an invalidation
// callback reflects the post-change state, that callbacks fire at least once
// per distinct change, and that callbacks for one subscription are never
// invoked concurrently with each other.
type Store interface {
	Snapshot() []Field
	OnInvalidate(fn func()) (Subscription, error)
}

// Subscription cancels invalidation delivery when no longer needed.
type Subscription interface {
	Cancel()
}

// AbsentMarker renders a field missing from one side of a diff.
const AbsentMarker = "<absent>"

// ChangeRecord describes one observed field transition. It exists only
// transiently while producing signal events.
type ChangeRecord struct {
	Name string
	Old  string
	New  string
}

// Session tracks the previous snapshot between invalidation callbacks.
// Sessions are fully independent: starting two watchers against one store
// gives each its own snapshot slot.
//
// Callback-vs-callback serialization is the store's guarantee. The session's
// own mutex covers the interactions the store does not serialize: Stop racing
// an in-flight callback, and a callback delivered while Start is still
// emitting the baseline summary.
type Session struct {
	id    string
	store Store
	sink  signal.Sink
	sub   Subscription

	mu     sync.Mutex
	prev   []Field
	active bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session is still observing the store.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop cancels invalidation delivery and resets the session snapshot. It
// waits for an in-flight callback to finish before tearing down, so no diff
// emission overlaps the reset. Stopping twice is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.prev = nil
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// Start begins watching the given store, emitting one NOTICE summarizing the
// initial snapshot and thereafter one NOTICE per changed field. It fails with
// NoActiveStore when no live store handle is supplied and SinkUnavailable
// when the sink collaborator is missing; no events are emitted on failure.
//
// The session mutex is held across subscription and the baseline emit, so an
// invalidation delivered during Start blocks until the summary NOTICE is out:
// the summary always precedes the first per-field change event. Stores
// deliver callbacks asynchronously, never from inside OnInvalidate itself.
func Start(store Store, sink signal.Sink) (*Session, error) {
	if store == nil {
		return nil, errs.New("watch/start", errs.CodeNoActiveStore,
			errs.WithMessage("reactive store handle required"))
	}
	if sink == nil {
		return nil, errs.New("watch/start", errs.CodeSinkUnavailable,
			errs.WithMessage("signal sink required"))
	}

	s := &Session{
		id:    uuid.NewString(),
		store: store,
		sink:  sink,
	}
	s.mu.Lock()
	s.prev = store.Snapshot()
	s.active = true
	sub, err := store.OnInvalidate(s.onInvalidate)
	if err != nil {
		s.active = false
		s.prev = nil
		s.mu.Unlock()
		return nil, errs.New("watch/start", errs.CodeNoActiveStore,
			errs.WithMessage("store refused invalidation subscription"),
			errs.WithCause(err))
	}
	s.sub = sub

	sink.Emit(signal.KindNotice, summarize(s.prev))
	fields := len(s.prev)
	s.mu.Unlock()

	observability.Log().Debug("reactive watch started",
		observability.Field{Key: "session", Value: s.id},
		observability.Field{Key: "fields", Value: fields},
	)
	return s, nil
}

func (s *Session) onInvalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	next := s.store.Snapshot()
	changes := Diff(s.prev, next)
	for _, rec := range changes {
		s.sink.Emit(signal.KindNotice,
			fmt.Sprintf("field %s: %s -> %s", rec.Name, rec.Old, rec.New))
	}
	if len(changes) > 0 {
		observability.Telemetry().IncCounter(observability.MetricFieldChanges,
			float64(len(changes)), map[string]string{"session": s.id})
	}
	s.prev = next
}

// Diff compares two snapshots by structural equality and returns one record
// per differing field. Order is deterministic for a given snapshot pair: the
// new snapshot's store order first, then fields removed since the old
// snapshot in old-snapshot order.
func Diff(old, next []Field) []ChangeRecord {
	oldValues := make(map[string]any, len(old))
	for _, f := range old {
		oldValues[f.Name] = f.Value
	}

	var records []ChangeRecord
	seen := make(map[string]struct{}, len(next))
	for _, f := range next {
		seen[f.Name] = struct{}{}
		oldValue, existed := oldValues[f.Name]
		if existed && reflect.DeepEqual(oldValue, f.Value) {
			continue
		}
		oldText := AbsentMarker
		if existed {
			oldText = render.Value(oldValue)
		}
		records = append(records, ChangeRecord{
			Name: f.Name,
			Old:  oldText,
			New:  render.Value(f.Value),
		})
	}
	for _, f := range old {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		records = append(records, ChangeRecord{
			Name: f.Name,
			Old:  render.Value(f.Value),
			New:  AbsentMarker,
		})
	}
	return records
}

// summarize serializes a snapshot as flat key/value text in store order.
func summarize(fields []Field) string {
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, f.Name+": "+render.Value(f.Value))
	}
	return strings.Join(pairs, ", ")
}
