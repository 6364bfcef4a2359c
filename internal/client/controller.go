package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/types"
)

// DefaultSearchDebounce is the quiet window applied to rapid query changes
// before a list reload is issued.
const DefaultSearchDebounce = 300 * time.Millisecond

// StoreClient is the remote snippet store surface the controller depends on.
// *API satisfies it; tests substitute fakes.
type StoreClient interface {
	List(ctx context.Context, search string) ([]types.Snippet, error)
	Create(ctx context.Context, fields types.SnippetFields) (types.Snippet, error)
	Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error)
	Delete(ctx context.Context, id types.SnippetID) error
}

// ControllerConfig tunes controller behaviour.
type ControllerConfig struct {
	// SearchDebounce overrides the quiet window for debounced searches.
	SearchDebounce time.Duration
	// Notifier receives user-facing toasts. Optional.
	Notifier Notifier
	// OnChange is invoked after every list or selection mutation so views can
	// re-render. Optional; called without the controller lock held.
	OnChange func()
	// OnSelectedUpdated fires when a remote update touches the currently
	// selected snippet, so the editor session can refresh its displayed
	// fields. Optional.
	OnSelectedUpdated func(types.Snippet)
	// OnSelectedDeleted fires when the selected snippet is deleted remotely,
	// signalling the editor session to close. Optional.
	OnSelectedDeleted func(types.SnippetID)
}

// Controller is the single authoritative holder of the snippet list and the
// current selection. Local mutations, store responses, and inbound broadcast
// events all merge here, keyed by snippet identifier: applying the same
// create, update, or delete twice is a no-op, which is the sole defense
// against self-echo and duplicate delivery.
type Controller struct {
	store             StoreClient
	notifier          Notifier
	onChange          func()
	onSelectedUpdated func(types.Snippet)
	onSelectedDeleted func(types.SnippetID)
	logger            zerolog.Logger
	debounce          time.Duration

	mu         sync.Mutex
	snippets   []types.Snippet
	selectedID types.SnippetID
	hasSelect  bool
	timer      *time.Timer
	pendingQ   string
}

// NewController constructs a controller over the given store client.
func NewController(store StoreClient, logger zerolog.Logger, cfg ControllerConfig) *Controller {
	debounce := cfg.SearchDebounce
	if debounce <= 0 {
		debounce = DefaultSearchDebounce
	}
	return &Controller{
		store:             store,
		notifier:          cfg.Notifier,
		onChange:          cfg.OnChange,
		onSelectedUpdated: cfg.OnSelectedUpdated,
		onSelectedDeleted: cfg.OnSelectedDeleted,
		logger:            logger,
		debounce:          debounce,
	}
}

// Snippets returns a copy of the current list.
func (c *Controller) Snippets() []types.Snippet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Snippet, len(c.snippets))
	copy(out, c.snippets)
	return out
}

// Selected returns the currently selected snippet, if any.
func (c *Controller) Selected() (types.Snippet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSelect {
		return types.Snippet{}, false
	}
	if snippet, ok := c.findLocked(c.selectedID); ok {
		return snippet, true
	}
	return types.Snippet{}, false
}

// Select marks the snippet with the given identifier as selected.
func (c *Controller) Select(id types.SnippetID) (types.Snippet, bool) {
	c.mu.Lock()
	snippet, ok := c.findLocked(id)
	if ok {
		c.selectedID = id
		c.hasSelect = true
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return snippet, ok
}

// ClearSelection drops the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.selectedID = ""
	c.hasSelect = false
	c.mu.Unlock()
	c.changed()
}

// Load fetches the list from the store, optionally filtered server-side, and
// replaces the local list wholesale. On failure the local list is left
// unchanged.
func (c *Controller) Load(ctx context.Context, search string) error {
	snippets, err := c.store.List(ctx, search)
	if err != nil {
		c.notify(SeverityError, fmt.Sprintf("Failed to load snippets: %v", err))
		return err
	}

	c.mu.Lock()
	c.snippets = snippets
	if c.hasSelect {
		if _, ok := c.findLocked(c.selectedID); !ok {
			c.selectedID = ""
			c.hasSelect = false
		}
	}
	c.mu.Unlock()

	c.changed()
	return nil
}

// Search schedules a debounced reload for the given query. Successive calls
// within the quiet window are coalesced so only the last query issues a
// request.
func (c *Controller) Search(query string) {
	c.mu.Lock()
	c.pendingQ = query
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		q := c.pendingQ
		c.timer = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_ = c.Load(ctx, q)
	})
	c.mu.Unlock()
}

// Create validates and submits a new snippet. Nothing is inserted locally
// before the store confirms; on success the returned snippet is prepended and
// selected so the caller can open it for editing.
func (c *Controller) Create(ctx context.Context, fields types.SnippetFields) (types.Snippet, error) {
	if err := fields.Validate(); err != nil {
		c.notify(SeverityWarn, err.Error())
		return types.Snippet{}, err
	}

	snippet, err := c.store.Create(ctx, fields)
	if err != nil {
		c.notify(SeverityError, fmt.Sprintf("Failed to create snippet: %v", err))
		return types.Snippet{}, err
	}

	c.mu.Lock()
	c.prependLocked(snippet)
	c.selectedID = snippet.ID
	c.hasSelect = true
	c.mu.Unlock()

	c.changed()
	return snippet, nil
}

// Update pushes the field set to the store and, on success, replaces the
// matching entry in place with the server's normalized representation. The
// list is untouched on failure.
func (c *Controller) Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error) {
	if err := fields.Validate(); err != nil {
		c.notify(SeverityWarn, err.Error())
		return types.Snippet{}, err
	}

	snippet, err := c.store.Update(ctx, id, fields)
	if err != nil {
		if isNotFound(err) {
			// The snippet vanished remotely between our last refresh and this
			// save. Drop the stale entry so the list converges.
			c.mu.Lock()
			c.removeLocked(id)
			c.mu.Unlock()
			c.notify(SeverityWarn, "Snippet was deleted elsewhere; changes not saved")
			c.changed()
			return types.Snippet{}, err
		}
		c.notify(SeverityError, fmt.Sprintf("Failed to save snippet: %v", err))
		return types.Snippet{}, err
	}

	c.mu.Lock()
	c.replaceLocked(snippet)
	c.mu.Unlock()

	c.changed()
	return snippet, nil
}

// Delete removes the snippet from the store and then from the local list,
// clearing the selection when it pointed at the removed entry. A snippet that
// is already gone remotely counts as deleted; the local removal proceeds.
func (c *Controller) Delete(ctx context.Context, id types.SnippetID) error {
	if err := c.store.Delete(ctx, id); err != nil && !isNotFound(err) {
		c.notify(SeverityError, fmt.Sprintf("Failed to delete snippet: %v", err))
		return err
	}

	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()

	c.changed()
	return nil
}

// ApplyRemote merges an inbound broadcast event into the list. Merge
// decisions are keyed solely by snippet identifier, with no field-level
// conflict resolution. Whichever write is applied last in arrival order wins.
func (c *Controller) ApplyRemote(evt types.Event) {
	switch evt.Type {
	case types.EventCreated:
		c.applyRemoteCreated(*evt.Snippet)
	case types.EventUpdated:
		c.applyRemoteUpdated(*evt.Snippet)
	case types.EventDeleted:
		c.applyRemoteDeleted(evt.SnippetID())
	default:
		c.logger.Warn().Str("type", string(evt.Type)).Msg("ignoring unknown broadcast event")
	}
}

func (c *Controller) applyRemoteCreated(snippet types.Snippet) {
	c.mu.Lock()
	if _, ok := c.findLocked(snippet.ID); ok {
		// Self-echo or duplicate delivery: the entry is already present.
		c.mu.Unlock()
		return
	}
	c.prependLocked(snippet)
	c.mu.Unlock()

	c.notify(SeverityInfo, fmt.Sprintf("Snippet %q was created elsewhere", snippet.Name))
	c.changed()
}

func (c *Controller) applyRemoteUpdated(snippet types.Snippet) {
	c.mu.Lock()
	if _, ok := c.findLocked(snippet.ID); !ok {
		c.mu.Unlock()
		c.logger.Warn().Str("snippet", string(snippet.ID)).Msg("remote update for unknown snippet; ignoring")
		return
	}
	c.replaceLocked(snippet)
	wasSelected := c.hasSelect && c.selectedID == snippet.ID
	c.mu.Unlock()

	if wasSelected && c.onSelectedUpdated != nil {
		c.onSelectedUpdated(snippet)
	}
	c.notify(SeverityInfo, fmt.Sprintf("Snippet %q was updated elsewhere", snippet.Name))
	c.changed()
}

func (c *Controller) applyRemoteDeleted(id types.SnippetID) {
	c.mu.Lock()
	removed, existed := c.findLocked(id)
	if !existed {
		c.mu.Unlock()
		return
	}
	wasSelected := c.hasSelect && c.selectedID == id
	c.removeLocked(id)
	c.mu.Unlock()

	if wasSelected && c.onSelectedDeleted != nil {
		c.onSelectedDeleted(id)
	}

	name := removed.Name
	if name == "" {
		name = string(id)
	}
	c.notify(SeverityWarn, fmt.Sprintf("Snippet %q was deleted elsewhere", name))
	c.changed()
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

func (c *Controller) findLocked(id types.SnippetID) (types.Snippet, bool) {
	for _, s := range c.snippets {
		if s.ID == id {
			return s, true
		}
	}
	return types.Snippet{}, false
}

func (c *Controller) prependLocked(snippet types.Snippet) {
	c.snippets = append([]types.Snippet{snippet}, c.snippets...)
}

func (c *Controller) replaceLocked(snippet types.Snippet) {
	for i := range c.snippets {
		if c.snippets[i].ID == snippet.ID {
			c.snippets[i] = snippet
			return
		}
	}
}

func (c *Controller) removeLocked(id types.SnippetID) {
	for i := range c.snippets {
		if c.snippets[i].ID == id {
			c.snippets = append(c.snippets[:i], c.snippets[i+1:]...)
			break
		}
	}
	if c.hasSelect && c.selectedID == id {
		c.selectedID = ""
		c.hasSelect = false
	}
}

func (c *Controller) notify(severity Severity, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notification{Severity: severity, Message: msg})
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
