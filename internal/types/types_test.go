package types

import "testing"

func TestDecodeEventRejectsMalformedEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"unknown type", `{"event_id":"e1","type":"renamed"}`},
		{"created without snippet", `{"event_id":"e1","type":"created"}`},
		{"updated with empty id", `{"event_id":"e1","type":"updated","snippet":{"id":""}}`},
		{"deleted without id", `{"event_id":"e1","type":"deleted"}`},
	}
	for _, tc := range cases {
		if _, err := DecodeEvent([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected decode failure", tc.name)
		}
	}
}

func TestDecodeEventRoundTrip(t *testing.T) {
	snippet := &Snippet{ID: "s1", Name: "alpha", Language: "go", Code: "package main\n"}
	evt := Event{EventID: "e1", Origin: "client-1", Type: EventUpdated, Snippet: snippet}

	data, err := evt.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SnippetID() != "s1" {
		t.Fatalf("expected snippet id s1, got %q", decoded.SnippetID())
	}
	if decoded.SentAt.IsZero() {
		t.Fatalf("encode should stamp sent_at")
	}
}

func TestDeletedEventCarriesBareID(t *testing.T) {
	evt := Event{EventID: "e1", Type: EventDeleted, ID: "s9"}
	data, err := evt.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Snippet != nil {
		t.Fatalf("deleted events must not carry a record")
	}
	if decoded.SnippetID() != "s9" {
		t.Fatalf("expected id s9, got %q", decoded.SnippetID())
	}
}
