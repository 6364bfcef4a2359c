package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/snipsync/internal/types"
)

type fakeSaver struct {
	mu     sync.Mutex
	saved  []types.SnippetFields
	result types.Snippet
	fail   bool
}

func (f *fakeSaver) Update(_ context.Context, id types.SnippetID, fields types.SnippetFields) (types.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return types.Snippet{}, errors.New("store unavailable")
	}
	f.saved = append(f.saved, fields)
	out := f.result
	out.ID = id
	return out, nil
}

type fakeClipboard struct {
	text string
	fail bool
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.fail {
		return errors.New("no clipboard")
	}
	f.text = text
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestEditCancelRestoresSnippet(t *testing.T) {
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}})
	original := snip("a", "alpha")
	original.Code = "fmt.Println(\"one\")\n"
	sess.Open(original)

	sess.Edit()
	buf := sess.Buffer()
	buf.Code = "something else entirely"
	buf.Name = "renamed"
	sess.SetBuffer(buf)

	sess.Cancel()

	if sess.State() != Viewing {
		t.Fatalf("cancel should return to viewing")
	}
	got := sess.Buffer()
	if got.Code != original.Code || got.Name != original.Name {
		t.Fatalf("cancel must restore the confirmed state, got %+v", got)
	}
}

func TestSaveAdoptsServerRepresentation(t *testing.T) {
	saver := &fakeSaver{result: types.Snippet{Name: "alpha", Language: "go", Code: "normalized\n"}}
	clock := &fakeClock{now: time.Now()}
	sess := NewSession(SessionConfig{Saver: saver, Now: clock.Now})
	sess.Open(snip("a", "alpha"))

	sess.Edit()
	buf := sess.Buffer()
	buf.Code = "draft"
	sess.SetBuffer(buf)

	if err := sess.Save(context.Background()); err != nil {
		t.Fatalf("save err: %v", err)
	}
	if sess.State() != Viewing {
		t.Fatalf("save should return to viewing")
	}
	if got := sess.Snippet().Code; got != "normalized\n" {
		t.Fatalf("session should adopt the server's representation, got %q", got)
	}
	if len(saver.saved) != 1 || saver.saved[0].Code != "draft" {
		t.Fatalf("expected the draft to reach the store, got %+v", saver.saved)
	}
}

func TestSaveFailureStaysInEditing(t *testing.T) {
	saver := &fakeSaver{fail: true}
	sess := NewSession(SessionConfig{Saver: saver})
	sess.Open(snip("a", "alpha"))
	sess.Edit()
	buf := sess.Buffer()
	buf.Code = "precious draft"
	sess.SetBuffer(buf)

	if err := sess.Save(context.Background()); err == nil {
		t.Fatalf("expected save failure")
	}
	if sess.State() != Editing {
		t.Fatalf("failed save must not leave editing")
	}
	if got := sess.Buffer().Code; got != "precious draft" {
		t.Fatalf("failed save must not lose the buffer, got %q", got)
	}
}

func TestRemoteRefreshStagedWhileEditing(t *testing.T) {
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}})
	sess.Open(snip("a", "alpha"))
	sess.Edit()

	remote := snip("a", "alpha-remote")
	remote.Code = "remote code\n"
	sess.Refresh(remote)

	if got := sess.Buffer().Code; got == remote.Code {
		t.Fatalf("remote update must not clobber the edit buffer")
	}
	if !sess.HasStaleRemote() {
		t.Fatalf("staged remote update should be flagged")
	}

	sess.Cancel()
	if got := sess.Snippet().Name; got != "alpha-remote" {
		t.Fatalf("staged update should surface on cancel, got %q", got)
	}
	if sess.HasStaleRemote() {
		t.Fatalf("staged flag should clear after cancel")
	}
}

func TestRemoteRefreshAppliesWhileViewing(t *testing.T) {
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}})
	sess.Open(snip("a", "alpha"))

	remote := snip("a", "alpha-remote")
	sess.Refresh(remote)

	if got := sess.Snippet().Name; got != "alpha-remote" {
		t.Fatalf("viewing sessions should follow remote updates, got %q", got)
	}
	if got := sess.Buffer().Name; got != "alpha-remote" {
		t.Fatalf("buffer should track the refreshed value, got %q", got)
	}
}

func TestRefreshIgnoresOtherSnippets(t *testing.T) {
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}})
	sess.Open(snip("a", "alpha"))

	sess.Refresh(snip("b", "beta"))

	if got := sess.Snippet().ID; got != "a" {
		t.Fatalf("refresh for another snippet must be ignored, got %q", got)
	}
}

func TestAffirmationExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	clip := &fakeClipboard{}
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}, Clipboard: clip, Now: clock.Now})
	sess.Open(snip("a", "alpha"))

	if err := sess.CopyToClipboard(); err != nil {
		t.Fatalf("copy err: %v", err)
	}
	if got := sess.Affirmation(); got != "Copied" {
		t.Fatalf("expected Copied, got %q", got)
	}

	clock.Advance(affirmationTTL / 2)
	if got := sess.Affirmation(); got != "Copied" {
		t.Fatalf("affirmation expired too early")
	}

	clock.Advance(affirmationTTL)
	if got := sess.Affirmation(); got != "" {
		t.Fatalf("affirmation should have expired, got %q", got)
	}
}

func TestCopyWritesBufferCode(t *testing.T) {
	clip := &fakeClipboard{}
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}, Clipboard: clip})
	s := snip("a", "alpha")
	s.Code = "copy me\n"
	sess.Open(s)

	if err := sess.CopyToClipboard(); err != nil {
		t.Fatalf("copy err: %v", err)
	}
	if clip.text != "copy me\n" {
		t.Fatalf("expected buffer code on the clipboard, got %q", clip.text)
	}
}

func TestDownloadUsesLanguageExtension(t *testing.T) {
	dir := t.TempDir()
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}, DownloadDir: dir})

	s := snip("a", "hello world")
	s.Language = "python"
	s.Code = "print('hi')\n"
	sess.Open(s)

	path, err := sess.DownloadAsFile()
	if err != nil {
		t.Fatalf("download err: %v", err)
	}
	if filepath.Base(path) != "hello world.py" {
		t.Fatalf("expected hello world.py, got %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read err: %v", err)
	}
	if string(data) != s.Code {
		t.Fatalf("file content mismatch: %q", string(data))
	}
}

func TestDownloadFallsBackToTxt(t *testing.T) {
	dir := t.TempDir()
	sess := NewSession(SessionConfig{Saver: &fakeSaver{}, DownloadDir: dir})

	s := snip("a", "notes")
	s.Language = "klingon"
	sess.Open(s)

	path, err := sess.DownloadAsFile()
	if err != nil {
		t.Fatalf("download err: %v", err)
	}
	if filepath.Base(path) != "notes.txt" {
		t.Fatalf("unmapped languages should download as .txt, got %q", filepath.Base(path))
	}
}
