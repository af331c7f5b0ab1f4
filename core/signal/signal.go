// Package signal defines the built-in signal taxonomy, the raise dispatch
// table, and the sink contract consumed by interceptors.
package signal

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fennwick/sigtap/lib/render"
)

// Kind enumerates the built-in signal categories.
type Kind string

const (
	// KindNotice marks an informational notice.
	KindNotice Kind = "NOTICE"
	// KindWarning marks a warning.
	KindWarning Kind = "WARNING"
	// KindFatal marks a fatal error that aborts the current call stack.
	KindFatal Kind = "FATAL"
)

// Valid reports whether k names a supported signal kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNotice, KindWarning, KindFatal:
		return true
	default:
		return false
	}
}

// Event is an immutable record of one raised signal.
type Event struct {
	Kind     Kind
	Payload  string
	RaisedAt time.Time
}

// Sink accepts signal events and durably records them. Implementations are
// assumed synchronous and side-effect-only; errors are the sink's own concern.
type Sink interface {
	Emit(kind Kind, text string)
}

// RaiseFunc is the behavior installed in a dispatch slot. NOTICE receives the
// message text as its sole argument; WARNING and FATAL receive the raise
// site's positional arguments.
type RaiseFunc func(args ...any)

// Abort carries a FATAL payload up the stack. Raised via panic so that a
// fatal signal aborts the enclosing operation; callers recover it at the
// boundary they consider fatal-safe.
type Abort struct {
	Payload string
}

func (a Abort) Error() string {
	return a.Payload
}

var (
	tableMu sync.RWMutex
	table   = map[Kind]RaiseFunc{
		KindNotice:  defaultNotice,
		KindWarning: defaultWarning,
		KindFatal:   defaultFatal,
	}
)

// Notice raises an informational notice through the current NOTICE behavior.
func Notice(text string) {
	lookup(KindNotice)(text)
}

// Warning raises a warning. The payload is the concatenation of all
// arguments' renderings with no separator.
func Warning(args ...any) {
	lookup(KindWarning)(args...)
}

// Fatal raises a fatal error and aborts the current call stack. The payload
// follows the same no-separator concatenation rule as Warning.
func Fatal(args ...any) {
	lookup(KindFatal)(args...)
}

// Current returns the behavior presently installed for kind.
func Current(kind Kind) (RaiseFunc, bool) {
	tableMu.RLock()
	defer tableMu.RUnlock()
	fn, ok := table[kind]
	return fn, ok
}

// Swap replaces the dispatch slot for kind and returns the previous behavior.
// Unknown kinds are rejected so the slot set stays a fixed enumeration.
func Swap(kind Kind, fn RaiseFunc) (RaiseFunc, bool) {
	if !kind.Valid() || fn == nil {
		return nil, false
	}
	tableMu.Lock()
	defer tableMu.Unlock()
	prev := table[kind]
	table[kind] = fn
	return prev, true
}

func lookup(kind Kind) RaiseFunc {
	tableMu.RLock()
	defer tableMu.RUnlock()
	return table[kind]
}

// NoticeText extracts the NOTICE payload from raise arguments, stripping a
// single trailing line terminator from the message.
func NoticeText(args []any) string {
	text := render.Join(args)
	text = strings.TrimSuffix(text, "\n")
	return strings.TrimSuffix(text, "\r")
}

func defaultNotice(args ...any) {
	fmt.Fprintln(os.Stderr, NoticeText(args))
}

func defaultWarning(args ...any) {
	fmt.Fprintln(os.Stderr, "warning: "+render.Join(args))
}

func defaultFatal(args ...any) {
	panic(Abort{Payload: render.Join(args)})
}
