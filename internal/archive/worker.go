package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/storage"
	"github.com/example/snipsync/internal/types"
)

const defaultInterval = time.Minute

// Payload is the object-storage representation of a full snippet export.
type Payload struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Snippets   []types.Snippet `json:"snippets"`
}

// Worker periodically exports the snippet table to object storage as a
// best-effort backup. An export is emitted only when the table changed since
// the previous one.
type Worker struct {
	store  *storage.SnippetStore
	object *minio.Client
	bucket string

	interval time.Duration
	logger   zerolog.Logger

	mu           sync.Mutex
	lastExported time.Time
}

// NewWorker constructs an archive worker.
func NewWorker(store *storage.SnippetStore, object *minio.Client, bucket string, interval time.Duration, logger zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		store:    store,
		object:   object,
		bucket:   bucket,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the periodic export loop.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("snippet archive export failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	if w.object == nil {
		return fmt.Errorf("object storage client not configured")
	}

	modified, err := w.store.LastModified(ctx)
	if err != nil {
		return fmt.Errorf("check last modification: %w", err)
	}

	w.mu.Lock()
	stale := modified.IsZero() || !modified.After(w.lastExported)
	w.mu.Unlock()
	if stale {
		return nil
	}

	snippets, err := w.store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("load snippets: %w", err)
	}

	payload := Payload{
		ExportedAt: time.Now().UTC(),
		Count:      len(snippets),
		Snippets:   snippets,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode archive payload: %w", err)
	}

	objectPath := fmt.Sprintf("exports/%s.json", payload.ExportedAt.Format("2006-01-02T15-04-05"))
	_, err = w.object.PutObject(ctx, w.bucket, objectPath, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	w.mu.Lock()
	w.lastExported = modified
	w.mu.Unlock()

	w.logger.Info().Str("object", objectPath).Int("snippets", len(snippets)).Msg("snippet archive exported")
	return nil
}
