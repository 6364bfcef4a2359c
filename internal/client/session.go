package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/example/snipsync/internal/types"
)

// affirmationTTL is how long transient "Saved"/"Copied" affirmations stay
// visible.
const affirmationTTL = 2 * time.Second

// SessionState is the editor pane's mode.
type SessionState int

const (
	// Viewing displays the snippet read-only.
	Viewing SessionState = iota
	// Editing exposes the mutable buffer.
	Editing
)

// Buffer holds the editable copy of the selected snippet's fields, decoupled
// from the controller's list until saved.
type Buffer struct {
	Name        string
	Language    string
	Code        string
	Description string
}

// Saver pushes a buffer to the store. *Controller satisfies it.
type Saver interface {
	Update(ctx context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error)
}

// Clipboard abstracts the system clipboard so tests can capture writes.
type Clipboard interface {
	WriteAll(text string) error
}

// Session owns the transient edit buffer for the selected snippet. The state
// machine has exactly two states: Viewing and Editing. Editing is entered on
// explicit request and left on successful save or cancel. Switching the open
// snippet while Editing silently discards the buffer; that is accepted
// behaviour, not a defect.
type Session struct {
	saver       Saver
	clipboard   Clipboard
	downloadDir string
	now         func() time.Time

	mu       sync.Mutex
	open     bool
	state    SessionState
	snippet  types.Snippet // last confirmed state
	buffer   Buffer
	stale    *types.Snippet // remote update staged while Editing
	affirm   string
	affirmAt time.Time
}

// SessionConfig wires the session's collaborators.
type SessionConfig struct {
	Saver       Saver
	Clipboard   Clipboard
	DownloadDir string
	// Now overrides the clock, for tests. Optional.
	Now func() time.Time
}

// NewSession constructs an editor session.
func NewSession(cfg SessionConfig) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	dir := cfg.DownloadDir
	if dir == "" {
		dir = "."
	}
	return &Session{
		saver:       cfg.Saver,
		clipboard:   cfg.Clipboard,
		downloadDir: dir,
		now:         now,
	}
}

// Open loads a snippet into the session, replacing whatever was open. The
// buffer becomes a copy of the snippet's fields and the state returns to
// Viewing; any in-progress edit of a previous snippet is discarded.
func (s *Session) Open(snippet types.Snippet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.state = Viewing
	s.snippet = snippet
	s.stale = nil
	s.resetBufferLocked()
}

// Close clears the session, e.g. after the open snippet was deleted.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.state = Viewing
	s.snippet = types.Snippet{}
	s.buffer = Buffer{}
	s.stale = nil
}

// IsOpen reports whether a snippet is loaded.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// State returns the current mode.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snippet returns the last confirmed snippet state.
func (s *Session) Snippet() types.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snippet
}

// Buffer returns a copy of the edit buffer.
func (s *Session) Buffer() Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// SetBuffer replaces the edit buffer, typically on each keystroke batch from
// the rendering layer.
func (s *Session) SetBuffer(buf Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = buf
}

// Edit switches to Editing. The buffer already holds current values.
func (s *Session) Edit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.state = Editing
}

// Save pushes the buffer to the store. On success the session returns to
// Viewing, adopts the server's normalized representation, and shows a
// transient affirmation. On failure it stays in Editing so nothing is lost.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return fmt.Errorf("no snippet open")
	}
	id := s.snippet.ID
	fields := types.SnippetFields{
		Name:        s.buffer.Name,
		Language:    s.buffer.Language,
		Code:        s.buffer.Code,
		Description: s.buffer.Description,
	}
	s.mu.Unlock()

	saved, err := s.saver.Update(ctx, id, fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snippet = saved
	s.stale = nil
	s.state = Viewing
	s.resetBufferLocked()
	s.setAffirmationLocked("Saved")
	s.mu.Unlock()
	return nil
}

// Cancel discards buffer edits and restores the last confirmed snippet
// state. A remote update staged during the edit becomes visible now.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale != nil {
		s.snippet = *s.stale
		s.stale = nil
	}
	s.state = Viewing
	s.resetBufferLocked()
}

// Refresh merges a remote update for the open snippet. While Viewing the
// displayed fields follow the remote value immediately. While Editing the
// update is staged instead of clobbering in-progress keystrokes; it surfaces
// on Cancel or the next Open.
func (s *Session) Refresh(snippet types.Snippet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.snippet.ID != snippet.ID {
		return
	}
	if s.state == Editing {
		staged := snippet
		s.stale = &staged
		return
	}
	s.snippet = snippet
	s.resetBufferLocked()
}

// HasStaleRemote reports whether a remote update arrived during the current
// edit, so the rendering layer can hint at it.
func (s *Session) HasStaleRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale != nil
}

// CopyToClipboard copies the buffer's code text, independent of edit mode.
func (s *Session) CopyToClipboard() error {
	s.mu.Lock()
	code := s.buffer.Code
	clip := s.clipboard
	s.mu.Unlock()

	if clip == nil {
		return fmt.Errorf("clipboard unavailable")
	}
	if err := clip.WriteAll(code); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}

	s.mu.Lock()
	s.setAffirmationLocked("Copied")
	s.mu.Unlock()
	return nil
}

// DownloadAsFile writes the buffer's code to <name>.<extension> in the
// download directory, deriving the extension from the language table with a
// plain-text fallback. It returns the written path.
func (s *Session) DownloadAsFile() (string, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return "", fmt.Errorf("no snippet open")
	}
	name := s.buffer.Name
	if name == "" {
		name = string(s.snippet.ID)
	}
	code := s.buffer.Code
	ext := ExtensionFor(s.buffer.Language)
	dir := s.downloadDir
	s.mu.Unlock()

	path := filepath.Join(dir, fmt.Sprintf("%s.%s", sanitizeFilename(name), ext))
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write snippet file: %w", err)
	}
	return path, nil
}

// Affirmation returns the transient confirmation text ("Saved", "Copied"),
// or the empty string once it has expired.
func (s *Session) Affirmation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.affirm == "" || s.now().After(s.affirmAt) {
		return ""
	}
	return s.affirm
}

func (s *Session) setAffirmationLocked(text string) {
	s.affirm = text
	s.affirmAt = s.now().Add(affirmationTTL)
}

func (s *Session) resetBufferLocked() {
	s.buffer = Buffer{
		Name:        s.snippet.Name,
		Language:    s.snippet.Language,
		Code:        s.snippet.Code,
		Description: s.snippet.Description,
	}
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
