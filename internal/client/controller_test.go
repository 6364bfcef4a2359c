package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/types"
)

type fakeStore struct {
	mu       sync.Mutex
	listing  []types.Snippet
	queries  []string
	created  types.Snippet
	updated  types.Snippet
	failAll  bool
	notFound bool
	deletes  []types.SnippetID
}

func (f *fakeStore) List(_ context.Context, search string) ([]types.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("store unavailable")
	}
	f.queries = append(f.queries, search)
	out := make([]types.Snippet, len(f.listing))
	copy(out, f.listing)
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, fields types.SnippetFields) (types.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return types.Snippet{}, errors.New("store unavailable")
	}
	f.created.Name = fields.Name
	return f.created, nil
}

func (f *fakeStore) Update(_ context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return types.Snippet{}, errors.New("store unavailable")
	}
	if f.notFound {
		return types.Snippet{}, &APIError{Op: "update snippet", Status: http.StatusNotFound, Message: "snippet not found"}
	}
	f.updated = types.Snippet{ID: id, Name: fields.Name, Language: fields.Language, Code: fields.Code, Description: fields.Description}
	return f.updated, nil
}

func (f *fakeStore) Delete(_ context.Context, id types.SnippetID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("store unavailable")
	}
	if f.notFound {
		return &APIError{Op: "delete snippet", Status: http.StatusNotFound, Message: "snippet not found"}
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeStore) queriesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func zeroLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func snip(id, name string) types.Snippet {
	return types.Snippet{ID: types.SnippetID(id), Name: name, Language: "go", Code: "package main\n"}
}

func TestLoadReplacesListAndClearsDanglingSelection(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha"), snip("b", "beta")}}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{})

	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}
	if _, ok := ctrl.Select("b"); !ok {
		t.Fatalf("expected to select b")
	}

	store.mu.Lock()
	store.listing = []types.Snippet{snip("a", "alpha")}
	store.mu.Unlock()

	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("reload err: %v", err)
	}
	if _, ok := ctrl.Selected(); ok {
		t.Fatalf("selection should be cleared when the snippet vanished from the listing")
	}
	if got := len(ctrl.Snippets()); got != 1 {
		t.Fatalf("expected 1 snippet after reload, got %d", got)
	}
}

func TestLoadFailureLeavesListIntact(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha")}}
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{Notifier: notifier})

	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}

	store.mu.Lock()
	store.failAll = true
	store.mu.Unlock()

	if err := ctrl.Load(context.Background(), ""); err == nil {
		t.Fatalf("expected load failure")
	}
	if got := len(ctrl.Snippets()); got != 1 {
		t.Fatalf("failed load must not clobber the list, got %d entries", got)
	}
	if notifier.count() == 0 {
		t.Fatalf("expected an error notification")
	}
}

func TestSearchCoalescesRapidQueries(t *testing.T) {
	store := &fakeStore{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{SearchDebounce: 20 * time.Millisecond})

	ctrl.Search("a")
	ctrl.Search("ab")
	ctrl.Search("abc")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if qs := store.queriesSeen(); len(qs) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	qs := store.queriesSeen()
	if len(qs) != 1 {
		t.Fatalf("expected exactly one request, got %d: %v", len(qs), qs)
	}
	if qs[0] != "abc" {
		t.Fatalf("expected the final query to win, got %q", qs[0])
	}
}

func TestCreatePrependsAndSelects(t *testing.T) {
	store := &fakeStore{
		listing: []types.Snippet{snip("old", "older")},
		created: snip("new", ""),
	}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}

	created, err := ctrl.Create(context.Background(), types.SnippetFields{Name: "fresh"})
	if err != nil {
		t.Fatalf("create err: %v", err)
	}

	list := ctrl.Snippets()
	if len(list) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(list))
	}
	if list[0].ID != created.ID {
		t.Fatalf("new snippet should be first, got %q", list[0].ID)
	}
	selected, ok := ctrl.Selected()
	if !ok || selected.ID != created.ID {
		t.Fatalf("new snippet should be selected")
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{Notifier: notifier})

	if _, err := ctrl.Create(context.Background(), types.SnippetFields{Name: "   "}); err == nil {
		t.Fatalf("expected validation failure")
	}
	if got := len(ctrl.Snippets()); got != 0 {
		t.Fatalf("nothing should be inserted, got %d", got)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one warning, got %d", notifier.count())
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha"), snip("b", "beta"), snip("c", "gamma")}}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}

	if _, err := ctrl.Update(context.Background(), "b", types.SnippetFields{Name: "beta2"}); err != nil {
		t.Fatalf("update err: %v", err)
	}

	list := ctrl.Snippets()
	if len(list) != 3 {
		t.Fatalf("update must not change the count, got %d", len(list))
	}
	if list[1].ID != "b" || list[1].Name != "beta2" {
		t.Fatalf("expected b replaced in place, got %+v", list[1])
	}
	if list[0].ID != "a" || list[2].ID != "c" {
		t.Fatalf("order must be preserved")
	}
}

func TestDeleteClearsSelection(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha"), snip("b", "beta")}}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}
	ctrl.Select("a")

	if err := ctrl.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("delete err: %v", err)
	}
	if _, ok := ctrl.Selected(); ok {
		t.Fatalf("selection should clear when the selected snippet is deleted")
	}
	if got := len(ctrl.Snippets()); got != 1 {
		t.Fatalf("expected 1 remaining snippet, got %d", got)
	}
}

func TestDeleteToleratesAlreadyDeletedRemote(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha"), snip("b", "beta")}, notFound: true}
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{Notifier: notifier})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}

	// Another client already removed the snippet; deleting it again succeeds.
	if err := ctrl.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("delete of an already-gone snippet must succeed, got %v", err)
	}
	list := ctrl.Snippets()
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("local entry should still be removed, got %+v", list)
	}
	if notifier.count() != 0 {
		t.Fatalf("no error toast for a converged delete, got %d notes", notifier.count())
	}
}

func TestUpdateMissingRemoteDropsLocalEntry(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha")}, notFound: true}
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{Notifier: notifier})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}
	ctrl.Select("a")

	if _, err := ctrl.Update(context.Background(), "a", types.SnippetFields{Name: "alpha2"}); err == nil {
		t.Fatalf("save against a deleted snippet must fail")
	}
	if got := len(ctrl.Snippets()); got != 0 {
		t.Fatalf("stale entry should be dropped, got %d", got)
	}
	if _, ok := ctrl.Selected(); ok {
		t.Fatalf("selection should clear with the dropped entry")
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one deleted-elsewhere warning, got %d", notifier.count())
	}
}

func TestApplyRemoteCreatedIsIdempotent(t *testing.T) {
	store := &fakeStore{created: snip("dup", "")}
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{Notifier: notifier})

	created, err := ctrl.Create(context.Background(), types.SnippetFields{Name: "mine"})
	if err != nil {
		t.Fatalf("create err: %v", err)
	}

	// The broadcast echo of our own create must not double-insert.
	evt := types.Event{EventID: "e1", Type: types.EventCreated, Snippet: &created}
	ctrl.ApplyRemote(evt)
	ctrl.ApplyRemote(evt)

	if got := len(ctrl.Snippets()); got != 1 {
		t.Fatalf("self-echo must be a no-op, got %d entries", got)
	}

	other := snip("other", "theirs")
	ctrl.ApplyRemote(types.Event{EventID: "e2", Type: types.EventCreated, Snippet: &other})
	list := ctrl.Snippets()
	if len(list) != 2 || list[0].ID != "other" {
		t.Fatalf("genuinely new snippet should be prepended, got %+v", list)
	}
}

func TestApplyRemoteUpdatedRefreshesSelection(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha")}}
	var refreshed []types.Snippet
	ctrl := NewController(store, zeroLogger(), ControllerConfig{
		OnSelectedUpdated: func(s types.Snippet) { refreshed = append(refreshed, s) },
	})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}
	ctrl.Select("a")

	updated := snip("a", "alpha-v2")
	ctrl.ApplyRemote(types.Event{EventID: "e1", Type: types.EventUpdated, Snippet: &updated})

	selected, ok := ctrl.Selected()
	if !ok || selected.Name != "alpha-v2" {
		t.Fatalf("selection should reflect the remote update, got %+v", selected)
	}
	if len(refreshed) != 1 || refreshed[0].Name != "alpha-v2" {
		t.Fatalf("expected one selection refresh callback, got %v", refreshed)
	}
}

func TestApplyRemoteUpdatedUnknownIDIsIgnored(t *testing.T) {
	store := &fakeStore{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{})

	ghost := snip("ghost", "nobody")
	ctrl.ApplyRemote(types.Event{EventID: "e1", Type: types.EventUpdated, Snippet: &ghost})

	if got := len(ctrl.Snippets()); got != 0 {
		t.Fatalf("update for unknown id must not insert, got %d", got)
	}
}

func TestApplyRemoteDeletedClosesSelection(t *testing.T) {
	store := &fakeStore{listing: []types.Snippet{snip("a", "alpha")}}
	var closed []types.SnippetID
	notifier := &recordingNotifier{}
	ctrl := NewController(store, zeroLogger(), ControllerConfig{
		Notifier:          notifier,
		OnSelectedDeleted: func(id types.SnippetID) { closed = append(closed, id) },
	})
	if err := ctrl.Load(context.Background(), ""); err != nil {
		t.Fatalf("load err: %v", err)
	}
	ctrl.Select("a")

	evt := types.Event{EventID: "e1", Type: types.EventDeleted, ID: "a"}
	ctrl.ApplyRemote(evt)
	ctrl.ApplyRemote(evt)

	if got := len(ctrl.Snippets()); got != 0 {
		t.Fatalf("expected empty list, got %d", got)
	}
	if len(closed) != 1 || closed[0] != "a" {
		t.Fatalf("expected one close callback for a, got %v", closed)
	}
	if notifier.count() != 1 {
		t.Fatalf("duplicate delete must not re-notify, got %d notes", notifier.count())
	}
}
