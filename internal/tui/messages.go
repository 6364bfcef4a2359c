package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/example/snipsync/internal/client"
)

// listChangedMsg signals that the controller's list or selection changed and
// the view should re-read it.
type listChangedMsg struct{}

// toastMsg carries a controller notification for the footer line.
type toastMsg client.Notification

// toastExpiredMsg clears a shown toast once its display window passed.
type toastExpiredMsg struct{ seq int }

// openEditorMsg asks the view to enter edit mode for the freshly created and
// opened snippet.
type openEditorMsg struct{}

// editorSavedMsg reports a successful save so the view can drop back to the
// list.
type editorSavedMsg struct{}

// savedPathMsg reports a completed file download.
type savedPathMsg struct{ path string }

// errMsg surfaces a failed operation. The view shows it as a danger toast.
type errMsg struct{ err error }

// tickMsg drives periodic redraws so affirmations expire visibly.
type tickMsg time.Time

const toastDuration = 4 * time.Second
const redrawTick = time.Second

// waitForChange blocks on the controller change feed and converts it into a
// bubbletea message. It re-arms itself from Update after every delivery.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return listChangedMsg{}
	}
}

// waitForToast blocks on the notification feed.
func waitForToast(ch <-chan client.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg(n)
	}
}

func expireToast(seq int) tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func tickCmd() tea.Cmd {
	return tea.Tick(redrawTick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
