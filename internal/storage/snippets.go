package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/snipsync/internal/types"
)

// ErrNotFound is returned when no snippet matches the requested identifier.
var ErrNotFound = errors.New("snippet not found")

const snippetColumns = "id, name, language, code, description, created_at, updated_at"

// SnippetStore persists snippets in Postgres. It is the source of truth for
// snippet content and metadata; every response reflects the normalized row.
type SnippetStore struct {
	pool       *pgxpool.Pool
	maxRetries int
	retryDelay time.Duration
}

// Option configures the store.
type Option func(*SnippetStore)

// WithMaxRetries sets the maximum retry count for transient failures.
func WithMaxRetries(n int) Option {
	return func(s *SnippetStore) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) Option {
	return func(s *SnippetStore) {
		s.retryDelay = d
	}
}

// NewSnippetStore constructs a store using the provided Postgres pool.
func NewSnippetStore(pool *pgxpool.Pool, opts ...Option) *SnippetStore {
	s := &SnippetStore{
		pool:       pool,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the snippets table when it does not exist yet, so a
// fresh database works without an external migration step.
func (s *SnippetStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS snippets (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    language    TEXT NOT NULL,
    code        TEXT NOT NULL,
    description TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS snippets_created_at_idx ON snippets (created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure snippets schema: %w", err)
		}
	}
	return nil
}

// List returns snippets newest-first, optionally filtered by a free-text
// search over name, description, and language.
func (s *SnippetStore) List(ctx context.Context, search string) ([]types.Snippet, error) {
	ctx, span := storeTracer.Start(ctx, "snippets.list")
	defer span.End()

	started := time.Now()
	defer func() {
		queryLatency.WithLabelValues("list").Observe(time.Since(started).Seconds())
	}()

	query := `SELECT ` + snippetColumns + ` FROM snippets ORDER BY created_at DESC`
	args := []any{}
	if search = strings.TrimSpace(search); search != "" {
		query = `SELECT ` + snippetColumns + ` FROM snippets
WHERE name ILIKE $1 OR description ILIKE $1 OR language ILIKE $1
ORDER BY created_at DESC`
		args = append(args, "%"+search+"%")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []types.Snippet
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, snippet)
	}
	return snippets, rows.Err()
}

// Get loads a single snippet by identifier.
func (s *SnippetStore) Get(ctx context.Context, id types.SnippetID) (types.Snippet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+snippetColumns+` FROM snippets WHERE id = $1`, id)
	snippet, err := scanSnippet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Snippet{}, ErrNotFound
	}
	return snippet, err
}

// Create inserts a new snippet, assigning the identifier and defaulting the
// code body and language tag. The returned record carries the store-assigned
// fields.
func (s *SnippetStore) Create(ctx context.Context, fields types.SnippetFields) (types.Snippet, error) {
	if err := fields.Validate(); err != nil {
		return types.Snippet{}, err
	}

	ctx, span := storeTracer.Start(ctx, "snippets.create")
	defer span.End()

	started := time.Now()
	defer func() {
		queryLatency.WithLabelValues("create").Observe(time.Since(started).Seconds())
	}()

	snippet := types.Snippet{
		ID:          types.SnippetID(uuid.NewString()),
		Name:        strings.TrimSpace(fields.Name),
		Language:    fields.Language,
		Code:        fields.Code,
		Description: fields.Description,
	}
	if snippet.Language == "" {
		snippet.Language = types.DefaultLanguage
	}
	if snippet.Code == "" {
		snippet.Code = types.DefaultCode
	}

	err := s.retry(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
INSERT INTO snippets (id, name, language, code, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
RETURNING created_at, updated_at`,
			snippet.ID, snippet.Name, snippet.Language, snippet.Code, snippet.Description,
		)
		return row.Scan(&snippet.CreatedAt, &snippet.UpdatedAt)
	})
	if err != nil {
		return types.Snippet{}, fmt.Errorf("create snippet: %w", err)
	}
	return snippet, nil
}

// Update replaces the mutable fields of a snippet and returns the normalized
// row. ErrNotFound is returned when the identifier is unknown.
func (s *SnippetStore) Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error) {
	if err := fields.Validate(); err != nil {
		return types.Snippet{}, err
	}

	ctx, span := storeTracer.Start(ctx, "snippets.update")
	defer span.End()

	started := time.Now()
	defer func() {
		queryLatency.WithLabelValues("update").Observe(time.Since(started).Seconds())
	}()

	language := fields.Language
	if language == "" {
		language = types.DefaultLanguage
	}

	var snippet types.Snippet
	err := s.retry(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
UPDATE snippets
SET name = $2, language = $3, code = $4, description = $5, updated_at = now()
WHERE id = $1
RETURNING `+snippetColumns,
			id, strings.TrimSpace(fields.Name), language, fields.Code, fields.Description,
		)
		var err error
		snippet, err = scanSnippet(row)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Snippet{}, ErrNotFound
	}
	if err != nil {
		return types.Snippet{}, fmt.Errorf("update snippet: %w", err)
	}
	return snippet, nil
}

// Delete removes a snippet. ErrNotFound is returned when nothing was deleted.
func (s *SnippetStore) Delete(ctx context.Context, id types.SnippetID) error {
	ctx, span := storeTracer.Start(ctx, "snippets.delete")
	defer span.End()

	started := time.Now()
	defer func() {
		queryLatency.WithLabelValues("delete").Observe(time.Since(started).Seconds())
	}()

	var tag pgconn.CommandTag
	err := s.retry(ctx, func(ctx context.Context) error {
		var err error
		tag, err = s.pool.Exec(ctx, `DELETE FROM snippets WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count reports the number of stored snippets, used by the archive worker to
// decide whether an export is worthwhile.
func (s *SnippetStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM snippets`).Scan(&count)
	return count, err
}

// LastModified returns the most recent updated_at across all snippets, or the
// zero time when the table is empty.
func (s *SnippetStore) LastModified(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(updated_at) FROM snippets`).Scan(&ts); err != nil {
		return time.Time{}, err
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

func scanSnippet(row pgx.Row) (types.Snippet, error) {
	var (
		snippet     types.Snippet
		description *string
	)
	if err := row.Scan(&snippet.ID, &snippet.Name, &snippet.Language, &snippet.Code, &description, &snippet.CreatedAt, &snippet.UpdatedAt); err != nil {
		return types.Snippet{}, err
	}
	if description != nil {
		snippet.Description = *description
	}
	return snippet, nil
}

func (s *SnippetStore) retry(ctx context.Context, fn func(context.Context) error) error {
	delay := s.retryDelay
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == s.maxRetries {
			return lastErr
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
