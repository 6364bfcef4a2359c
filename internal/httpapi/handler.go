package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/observability"
	"github.com/example/snipsync/internal/storage"
	"github.com/example/snipsync/internal/types"
)

// Store is the persistence surface the handler depends on.
type Store interface {
	List(ctx context.Context, search string) ([]types.Snippet, error)
	Get(ctx context.Context, id types.SnippetID) (types.Snippet, error)
	Create(ctx context.Context, fields types.SnippetFields) (types.Snippet, error)
	Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error)
	Delete(ctx context.Context, id types.SnippetID) error
}

// Publisher delivers snippet events to the broadcast channel. A publish
// failure degrades the mutation to a store-only operation; it never fails the
// HTTP request.
type Publisher interface {
	Publish(ctx context.Context, evt types.Event) error
}

// Handler exposes snippet CRUD under /snippets and emits a broadcast event
// after every successful mutation.
type Handler struct {
	store  Store
	pub    Publisher
	logger zerolog.Logger
}

// NewHandler builds the REST handler.
func NewHandler(store Store, pub Publisher, logger zerolog.Logger) *Handler {
	return &Handler{store: store, pub: pub, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	if parts[0] != "snippets" {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.list(w, r)
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.create(w, r)
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.get(w, r, types.SnippetID(parts[1]))
	case len(parts) == 2 && r.Method == http.MethodPut:
		h.update(w, r, types.SnippetID(parts[1]))
	case len(parts) == 2 && r.Method == http.MethodDelete:
		h.delete(w, r, types.SnippetID(parts[1]))
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// log returns the handler logger enriched with trace context when a request
// span is active.
func (h *Handler) log(ctx context.Context) zerolog.Logger {
	return observability.LoggerWithTrace(ctx, h.logger)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.store.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		logger := h.log(r.Context())
		logger.Error().Err(err).Msg("list snippets failed")
		http.Error(w, "list snippets failed", http.StatusInternalServerError)
		return
	}
	if snippets == nil {
		snippets = []types.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, id types.SnippetID) {
	snippet, err := h.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "snippet not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger := h.log(r.Context())
		logger.Error().Err(err).Str("snippet", string(id)).Msg("get snippet failed")
		http.Error(w, "get snippet failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if err := fields.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snippet, err := h.store.Create(r.Context(), fields)
	if err != nil {
		logger := h.log(r.Context())
		logger.Error().Err(err).Msg("create snippet failed")
		http.Error(w, "create snippet failed", http.StatusInternalServerError)
		return
	}

	h.publish(r, types.Event{Type: types.EventCreated, Snippet: &snippet})
	writeJSON(w, http.StatusCreated, snippet)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id types.SnippetID) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if err := fields.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snippet, err := h.store.Update(r.Context(), id, fields)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "snippet not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger := h.log(r.Context())
		logger.Error().Err(err).Str("snippet", string(id)).Msg("update snippet failed")
		http.Error(w, "update snippet failed", http.StatusInternalServerError)
		return
	}

	h.publish(r, types.Event{Type: types.EventUpdated, Snippet: &snippet})
	writeJSON(w, http.StatusOK, snippet)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, id types.SnippetID) {
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "snippet not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger := h.log(r.Context())
		logger.Error().Err(err).Str("snippet", string(id)).Msg("delete snippet failed")
		http.Error(w, "delete snippet failed", http.StatusInternalServerError)
		return
	}

	h.publish(r, types.Event{Type: types.EventDeleted, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// publish emits the event after a successful mutation. The broadcast channel
// being down must not fail the request; the mutation degrades to store-only
// and the error is logged and swallowed.
func (h *Handler) publish(r *http.Request, evt types.Event) {
	if h.pub == nil {
		return
	}
	evt.EventID = types.EventID(uuid.NewString())
	evt.Origin = types.ClientID(r.Header.Get("X-Client-ID"))
	evt.SentAt = time.Now().UTC()

	// Detach from the request context: the response should not wait on redis,
	// and the publish must survive the handler returning.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		defer cancel()
		if err := h.pub.Publish(ctx, evt); err != nil {
			h.logger.Warn().Err(err).Str("type", string(evt.Type)).Str("snippet", string(evt.SnippetID())).Msg("event broadcast failed; store-only mutation")
		}
	}()
}

func decodeFields(w http.ResponseWriter, r *http.Request) (types.SnippetFields, bool) {
	var fields types.SnippetFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return types.SnippetFields{}, false
	}
	return fields, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
