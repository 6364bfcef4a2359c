package client

import (
	"testing"

	"github.com/example/snipsync/internal/types"
)

func TestSubscribeCancelDetachesHandler(t *testing.T) {
	ch := NewChannel("ws://localhost:8080/ws", "client-1", zeroLogger())

	var first, second int
	cancel := ch.Subscribe(func(types.Event) { first++ })
	ch.Subscribe(func(types.Event) { second++ })

	evt := types.Event{EventID: "e1", Type: types.EventDeleted, ID: "a"}
	ch.dispatch(evt)
	cancel()
	ch.dispatch(evt)

	if first != 1 {
		t.Fatalf("cancelled handler must stop receiving, got %d deliveries", first)
	}
	if second != 2 {
		t.Fatalf("remaining handler should keep receiving, got %d deliveries", second)
	}

	// A second cancel of the same handle is a no-op.
	cancel()
	ch.dispatch(evt)
	if second != 3 {
		t.Fatalf("repeated cancel must not touch other handlers, got %d", second)
	}
}

func TestSubscriptionSetReleasesEverything(t *testing.T) {
	ch := NewChannel("ws://localhost:8080/ws", "client-1", zeroLogger())

	var a, b int
	var subs SubscriptionSet
	subs.Add(ch.Subscribe(func(types.Event) { a++ }))
	subs.Add(ch.Subscribe(func(types.Event) { b++ }))

	evt := types.Event{EventID: "e1", Type: types.EventDeleted, ID: "a"}
	ch.dispatch(evt)
	if a != 1 || b != 1 {
		t.Fatalf("expected both handlers to receive, got a=%d b=%d", a, b)
	}

	subs.Release()
	ch.dispatch(evt)
	if a != 1 || b != 1 {
		t.Fatalf("released handlers must receive nothing further, got a=%d b=%d", a, b)
	}

	subs.Release()
	if a != 1 || b != 1 {
		t.Fatalf("release must be idempotent, got a=%d b=%d", a, b)
	}
}
