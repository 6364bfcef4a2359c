package broadcast

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/types"
	"github.com/example/snipsync/internal/ws"
)

func TestDuplicateEventsSuppressedWithinTTL(t *testing.T) {
	b := NewRedisBroadcaster(nil, ws.NewConnectionRegistry(), zerolog.New(io.Discard))
	b.dedupeTTL = 50 * time.Millisecond

	id := types.EventID("evt-1")
	if b.isDuplicate(id) {
		t.Fatalf("first sighting must not be a duplicate")
	}
	if !b.isDuplicate(id) {
		t.Fatalf("second sighting within the TTL must be suppressed")
	}

	time.Sleep(60 * time.Millisecond)
	if b.isDuplicate(id) {
		t.Fatalf("sightings after the TTL should pass again")
	}
}

func TestDistinctEventsPass(t *testing.T) {
	b := NewRedisBroadcaster(nil, ws.NewConnectionRegistry(), zerolog.New(io.Discard))

	if b.isDuplicate("evt-a") || b.isDuplicate("evt-b") {
		t.Fatalf("distinct event ids must not collide")
	}
}
