// Package hook installs signal interceptors through a central registry.
//
// Installing a hook wraps the dispatch slot for one signal kind so every
// raise also forwards an event into a signal sink. Interception is strictly
// additive: the original behavior, including a FATAL abort, is preserved and
// never suppressed.
package hook

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/fennwick/sigtap/core/signal"
	"github.com/fennwick/sigtap/errs"
	"github.com/fennwick/sigtap/internal/observability"
	"github.com/fennwick/sigtap/lib/render"
)

// Dispatch slots are process-global, so registration ownership is too: at
// most one active registration exists per signal kind regardless of how many
// Registry values installs go through. Without this, a second registry would
// wrap an already-wrapped slot and duplicate every event.
var (
	slotMu     sync.Mutex
	slotOwners = make(map[signal.Kind]*Hook)
)

// Hook is the capability returned by a successful install. Holding it allows
// the interceptor to be removed and the original behavior restored.
type Hook struct {
	kind     signal.Kind
	original signal.RaiseFunc
}

// Kind returns the signal kind this hook intercepts.
func (h *Hook) Kind() signal.Kind {
	return h.kind
}

// Remove uninstalls the interceptor and restores the original behavior.
// Removing twice is a no-op.
func (h *Hook) Remove() {
	if h == nil {
		return
	}
	slotMu.Lock()
	defer slotMu.Unlock()
	if slotOwners[h.kind] != h {
		return
	}
	signal.Swap(h.kind, h.original)
	delete(slotOwners, h.kind)
}

// Registry is the install surface for signal interception. All registries
// share the process-wide slot ownership, so Install is idempotent across
// instances as well as per instance.
type Registry struct{}

// NewRegistry constructs a hook registry.
func NewRegistry() *Registry {
	return new(Registry)
}

// Install wraps the dispatch slot for kind so that every raise also emits one
// event into sink. Installing a kind that already has an active registration
// returns the existing hook without re-wrapping; stacked interceptors would
// duplicate events on every subsequent raise.
func (r *Registry) Install(kind signal.Kind, sink signal.Sink) (*Hook, error) {
	if !kind.Valid() {
		return nil, errs.New("hook/install", errs.CodeUnsupportedSignal,
			errs.WithMessage(fmt.Sprintf("unsupported signal kind %q", string(kind))),
			errs.WithRemediation("use NOTICE, WARNING, or FATAL"))
	}
	if sink == nil {
		return nil, errs.New("hook/install", errs.CodeSinkUnavailable,
			errs.WithMessage("signal sink required"))
	}

	slotMu.Lock()
	defer slotMu.Unlock()
	if existing, ok := slotOwners[kind]; ok {
		return existing, nil
	}

	original, ok := signal.Current(kind)
	if !ok || original == nil {
		return nil, errs.New("hook/install", errs.CodeUnsupportedSignal,
			errs.WithMessage(fmt.Sprintf("no behavior registered for kind %q", string(kind))))
	}
	signal.Swap(kind, intercept(kind, sink, original))

	h := &Hook{kind: kind, original: original}
	slotOwners[kind] = h
	return h, nil
}

// Installed reports whether kind currently has an active registration.
func (r *Registry) Installed(kind signal.Kind) bool {
	slotMu.Lock()
	defer slotMu.Unlock()
	_, ok := slotOwners[kind]
	return ok
}

// intercept builds the wrapped behavior for one dispatch slot.
//
// NOTICE does not abort, so its event is emitted immediately before the
// original behavior runs. WARNING and FATAL emit from a deferred unwind hook:
// a FATAL raise aborts the call stack, and deferring the emit guarantees the
// event is recorded before unwinding propagates past the interceptor
// (log-then-abort, never abort-without-log).
func intercept(kind signal.Kind, sink signal.Sink, original signal.RaiseFunc) signal.RaiseFunc {
	if kind == signal.KindNotice {
		return func(args ...any) {
			emit(sink, kind, signal.NoticeText(args))
			original(args...)
		}
	}
	return func(args ...any) {
		payload := render.Join(args)
		defer emit(sink, kind, payload)
		original(args...)
	}
}

// emit isolates the sink call so a defective sink cannot mask or replace the
// original signal's propagation.
func emit(sink signal.Sink, kind signal.Kind, text string) {
	var catcher panics.Catcher
	catcher.Try(func() {
		sink.Emit(kind, text)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		observability.Telemetry().IncCounter(observability.MetricSinkEmitFailures, 1,
			map[string]string{"kind": string(kind)})
		observability.Log().Error("signal sink emit failed",
			observability.Field{Key: "kind", Value: string(kind)},
			observability.Field{Key: "panic", Value: recovered.String()},
		)
		return
	}
	observability.Telemetry().IncCounter(observability.MetricSignalsIntercepted, 1,
		map[string]string{"kind": string(kind)})
}
