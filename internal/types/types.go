package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SnippetID identifies a stored snippet. It is assigned by the store on
// creation and never changes afterwards.
type SnippetID string

// ClientID identifies a connected client for self-echo filtering.
type ClientID string

// EventID is a globally unique identifier for a broadcast event, used for
// duplicate suppression in the relay.
type EventID string

// DefaultCode is the placeholder body assigned to freshly created snippets.
const DefaultCode = "// Start coding here\n"

// DefaultLanguage is the language tag applied when a snippet is created
// without one.
const DefaultLanguage = "javascript"

// Snippet is a named, language-tagged unit of stored code text.
type Snippet struct {
	ID          SnippetID `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SnippetFields is the mutable field set sent on create and update calls.
// The store is the source of truth for the final shape; responses carry the
// normalized Snippet.
type SnippetFields struct {
	Name        string `json:"name"`
	Language    string `json:"language,omitempty"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate rejects field sets that must never reach the store.
func (f SnippetFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("snippet name must not be empty")
	}
	return nil
}

// EventType enumerates snippet lifecycle broadcasts.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is the broadcast channel payload. Created and updated events carry
// the full snippet record; deleted events carry only the identifier.
type Event struct {
	EventID EventID   `json:"event_id"`
	Origin  ClientID  `json:"origin,omitempty"`
	Type    EventType `json:"type"`
	Snippet *Snippet  `json:"snippet,omitempty"`
	ID      SnippetID `json:"id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// SnippetID returns the identifier the event refers to, regardless of shape.
func (e Event) SnippetID() SnippetID {
	if e.Snippet != nil {
		return e.Snippet.ID
	}
	return e.ID
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event from its wire representation and rejects
// envelopes that cannot be merged.
func DecodeEvent(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch evt.Type {
	case EventCreated, EventUpdated:
		if evt.Snippet == nil || evt.Snippet.ID == "" {
			return Event{}, fmt.Errorf("%s event missing snippet record", evt.Type)
		}
	case EventDeleted:
		if evt.SnippetID() == "" {
			return Event{}, fmt.Errorf("deleted event missing snippet id")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return evt, nil
}
