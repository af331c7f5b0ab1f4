package store

import (
	"testing"
	"time"

	"github.com/fennwick/sigtap/core/watch"
	"github.com/fennwick/sigtap/errs"
	"github.com/fennwick/sigtap/internal/sink"
)

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for invalidation")
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()

	store.Set("mean", 0)
	store.Set("sd", 1)
	store.Set("trim", 0.2)

	fields := store.Snapshot()
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	want := []string{"mean", "sd", "trim"}
	for i, name := range want {
		if fields[i].Name != name {
			t.Fatalf("field %d: expected %q, got %q", i, name, fields[i].Name)
		}
	}
}

func TestSetNotifiesSubscriber(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()

	notified := make(chan struct{}, 1)
	sub, err := store.OnInvalidate(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	store.Set("mean", 5)
	waitSignal(t, notified)
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()
	store.Set("mean", 5)

	notified := make(chan struct{}, 1)
	sub, err := store.OnInvalidate(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	store.Set("mean", 5)
	select {
	case <-notified:
		t.Fatal("expected no notification for unchanged value")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDeleteNotifiesAndRemovesFromOrder(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()
	store.Set("mean", 0)
	store.Set("sd", 1)

	notified := make(chan struct{}, 1)
	sub, err := store.OnInvalidate(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	store.Delete("mean")
	waitSignal(t, notified)

	fields := store.Snapshot()
	if len(fields) != 1 || fields[0].Name != "sd" {
		t.Fatalf("unexpected snapshot after delete: %+v", fields)
	}

	store.Delete("mean") // absent, no effect
}

func TestSubscribeValidation(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	_, err := store.OnInvalidate(nil)
	if errs.CodeOf(err) != errs.CodeInvalid {
		t.Fatalf("expected invalid_request for nil callback, got %v", err)
	}

	store.Close()
	store.Close() // second close is a no-op
	_, err = store.OnInvalidate(func() {})
	if errs.CodeOf(err) != errs.CodeUnavailable {
		t.Fatalf("expected unavailable after close, got %v", err)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()

	notified := make(chan struct{}, 4)
	sub, err := store.OnInvalidate(func() {
		notified <- struct{}{}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	store.Set("mean", 1)
	waitSignal(t, notified)

	sub.Cancel()
	sub.Cancel()
	store.Set("mean", 2)
	select {
	case <-notified:
		t.Fatal("expected no notification after cancel")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	defer store.Close()

	first, err := store.OnInvalidate(func() {
		panic("subscriber defect")
	})
	if err != nil {
		t.Fatalf("subscribe first: %v", err)
	}
	defer first.Cancel()

	notified := make(chan struct{}, 1)
	second, err := store.OnInvalidate(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe second: %v", err)
	}
	defer second.Cancel()

	store.Set("mean", 1)
	waitSignal(t, notified)
}

func TestWatcherEndToEnd(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{NotifyRate: 500, NotifyBurst: 8})
	defer store.Close()
	store.Set("mean", 0)
	store.Set("sd", 1)

	capture := sink.NewCaptureSink()
	session, err := watch.Start(store, capture)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer session.Stop()

	initial := capture.Events()
	if len(initial) != 1 || initial[0].Payload != "mean: 0, sd: 1" {
		t.Fatalf("unexpected initial snapshot events: %+v", initial)
	}
	capture.Reset()

	store.Set("mean", 5)
	deadline := time.Now().Add(2 * time.Second)
	for {
		events := capture.Events()
		if len(events) > 0 {
			if events[0].Payload != "field mean: 0 -> 5" {
				t.Fatalf("unexpected change payload: %q", events[0].Payload)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for change event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
