package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/snipsync/internal/types"
)

const requestTimeout = 10 * time.Second

// APIError is the uniform failure shape for every snippet store call.
// Status is zero for transport-level failures that never produced a response.
type APIError struct {
	Op      string
	Status  int
	Message string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// NotFound reports whether the failure was a missing snippet.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

// API is a thin request/response wrapper around the snippet store's REST
// surface. The client identifier travels on every mutation so the server can
// stamp the event origin.
type API struct {
	baseURL  *url.URL
	http     *http.Client
	clientID types.ClientID
}

// NewAPI builds a store client for the given base URL.
func NewAPI(baseURL string, clientID types.ClientID) (*API, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	return &API{
		baseURL:  base,
		http:     &http.Client{Timeout: requestTimeout},
		clientID: clientID,
	}, nil
}

// List fetches snippets, optionally filtered server-side by a free-text
// query.
func (a *API) List(ctx context.Context, search string) ([]types.Snippet, error) {
	path := "/snippets"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var snippets []types.Snippet
	if err := a.do(ctx, "list snippets", http.MethodGet, path, nil, &snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// Get fetches a single snippet by identifier.
func (a *API) Get(ctx context.Context, id types.SnippetID) (types.Snippet, error) {
	var snippet types.Snippet
	if err := a.do(ctx, "get snippet", http.MethodGet, "/snippets/"+url.PathEscape(string(id)), nil, &snippet); err != nil {
		return types.Snippet{}, err
	}
	return snippet, nil
}

// Create asks the store for a new snippet. The response carries the
// store-assigned identifier, timestamps, and defaulted fields.
func (a *API) Create(ctx context.Context, fields types.SnippetFields) (types.Snippet, error) {
	var snippet types.Snippet
	if err := a.do(ctx, "create snippet", http.MethodPost, "/snippets", fields, &snippet); err != nil {
		return types.Snippet{}, err
	}
	return snippet, nil
}

// Update pushes the full field set for a snippet and returns the store's
// normalized representation.
func (a *API) Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error) {
	var snippet types.Snippet
	if err := a.do(ctx, "update snippet", http.MethodPut, "/snippets/"+url.PathEscape(string(id)), fields, &snippet); err != nil {
		return types.Snippet{}, err
	}
	return snippet, nil
}

// Delete removes a snippet from the store.
func (a *API) Delete(ctx context.Context, id types.SnippetID) error {
	return a.do(ctx, "delete snippet", http.MethodDelete, "/snippets/"+url.PathEscape(string(id)), nil, nil)
}

func (a *API) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{Op: op, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL.String()+path, reader)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.clientID != "" {
		req.Header.Set("X-Client-ID", string(a.clientID))
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}
