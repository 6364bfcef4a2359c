// Package tui is the terminal client: a snippet list with live search on the
// left, a viewer/editor pane on the right, kept in sync with other clients
// through the broadcast channel.
package tui

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/example/snipsync/internal/client"
	"github.com/example/snipsync/internal/types"
)

type focusArea int

const (
	focusList focusArea = iota
	focusSearch
	focusEditor
)

// editField indexes the inputs cycled with tab while editing.
type editField int

const (
	fieldName editField = iota
	fieldLanguage
	fieldDescription
	fieldCode
	fieldCount
)

// Options configures the terminal client.
type Options struct {
	Context     context.Context
	Store       client.StoreClient
	Channel     *client.Channel
	DownloadDir string
	Logger      zerolog.Logger
}

// Model is the root bubbletea state.
type Model struct {
	ctx     context.Context
	ctrl    *client.Controller
	session *client.Session
	channel *client.Channel
	subs    client.SubscriptionSet
	logger  zerolog.Logger

	styles Styles
	width  int
	height int
	ready  bool

	focus  focusArea
	cursor int

	searchInput textinput.Model

	editFocus editField
	nameInput textinput.Model
	langInput textinput.Model
	descInput textinput.Model
	codeArea  textarea.Model

	toast    string
	toastSev client.Severity
	toastSeq int

	confirmDelete bool

	changeCh chan struct{}
	notifCh  chan client.Notification
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// New wires the synchronization controller, editor session, and broadcast
// channel into a bubbletea model.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	m := &Model{
		ctx:      ctx,
		channel:  opts.Channel,
		logger:   opts.Logger,
		styles:   defaultTheme().Styles(),
		changeCh: make(chan struct{}, 1),
		notifCh:  make(chan client.Notification, 16),
	}

	m.ctrl = client.NewController(opts.Store, opts.Logger, client.ControllerConfig{
		Notifier: client.NotifierFunc(func(n client.Notification) {
			select {
			case m.notifCh <- n:
			default:
			}
		}),
		OnChange: func() {
			select {
			case m.changeCh <- struct{}{}:
			default:
			}
		},
		OnSelectedUpdated: func(s types.Snippet) { m.session.Refresh(s) },
		OnSelectedDeleted: func(types.SnippetID) { m.session.Close() },
	})

	m.session = client.NewSession(client.SessionConfig{
		Saver:       m.ctrl,
		Clipboard:   systemClipboard{},
		DownloadDir: opts.DownloadDir,
	})

	if m.channel != nil {
		m.subs.Add(m.channel.Subscribe(m.ctrl.ApplyRemote))
		m.channel.Connect(ctx)
	}

	m.searchInput = textinput.New()
	m.searchInput.Placeholder = "search snippets"
	m.searchInput.Prompt = "/ "
	m.searchInput.CharLimit = 128

	m.nameInput = textinput.New()
	m.nameInput.Placeholder = "name"
	m.langInput = textinput.New()
	m.langInput.Placeholder = "language"
	m.descInput = textinput.New()
	m.descInput.Placeholder = "description"
	m.codeArea = textarea.New()
	m.codeArea.CharLimit = 0

	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.loadCmd(""),
		waitForChange(m.changeCh),
		waitForToast(m.notifCh),
		tickCmd(),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeEditor()
		return m, nil

	case listChangedMsg:
		m.clampCursor()
		m.syncCursorToSelection()
		return m, waitForChange(m.changeCh)

	case toastMsg:
		m.toast = msg.Message
		m.toastSev = msg.Severity
		m.toastSeq++
		return m, tea.Batch(waitForToast(m.notifCh), expireToast(m.toastSeq))

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case openEditorMsg:
		m.syncCursorToSelection()
		m.enterEditor()
		return m, nil

	case editorSavedMsg:
		m.leaveEditor()
		return m, nil

	case savedPathMsg:
		m.toast = "Wrote " + msg.path
		m.toastSev = client.SeverityInfo
		m.toastSeq++
		return m, expireToast(m.toastSeq)

	case errMsg:
		if msg.err != nil {
			m.toast = msg.err.Error()
			m.toastSev = client.SeverityError
			m.toastSeq++
			return m, expireToast(m.toastSeq)
		}
		return m, nil

	case tickMsg:
		// Affirmations expire on their own clock; redraw so they disappear.
		return m, tickCmd()
	}

	return m, nil
}

func (m *Model) loadCmd(search string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.Load(m.ctx, search); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Snippets())
	if n == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// syncCursorToSelection moves the list cursor onto the controller's selected
// snippet, e.g. after a create prepended and selected a new entry.
func (m *Model) syncCursorToSelection() {
	selected, ok := m.ctrl.Selected()
	if !ok {
		return
	}
	for i, s := range m.ctrl.Snippets() {
		if s.ID == selected.ID {
			m.cursor = i
			return
		}
	}
}

// quit detaches the model's broadcast handlers before the program exits, so a
// channel shared with a later model never feeds this one.
func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.subs.Release()
	return m, tea.Quit
}

func (m *Model) resizeEditor() {
	w := m.width * 2 / 3
	if w < 20 {
		w = 20
	}
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	m.codeArea.SetWidth(w)
	m.codeArea.SetHeight(h)
}
