package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/example/snipsync/internal/client"
	"github.com/example/snipsync/internal/types"
)

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusEditor:
		return m.handleEditorKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete {
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			if selected, ok := m.selectedSnippet(); ok {
				return m, m.deleteCmd(selected.ID)
			}
			return m, nil
		default:
			m.confirmDelete = false
			return m, nil
		}
	}

	switch msg.String() {
	case "q":
		return m.quit()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.openAtCursor()
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.ctrl.Snippets())-1 {
			m.cursor++
			m.openAtCursor()
		}
		return m, nil

	case "enter":
		m.openAtCursor()
		return m, nil

	case "/":
		m.focus = focusSearch
		m.searchInput.Focus()
		return m, nil

	case "n":
		return m, m.createCmd()

	case "e":
		if _, ok := m.selectedSnippet(); ok {
			m.enterEditor()
		}
		return m, nil

	case "d":
		if _, ok := m.selectedSnippet(); ok {
			m.confirmDelete = true
		}
		return m, nil

	case "c":
		if m.session.IsOpen() {
			return m, func() tea.Msg {
				if err := m.session.CopyToClipboard(); err != nil {
					return errMsg{err: err}
				}
				return nil
			}
		}
		return m, nil

	case "w":
		if m.session.IsOpen() {
			return m, func() tea.Msg {
				path, err := m.session.DownloadAsFile()
				if err != nil {
					return errMsg{err: err}
				}
				return savedPathMsg{path: path}
			}
		}
		return m, nil

	case "r":
		return m, m.loadCmd(m.searchInput.Value())
	}

	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.focus = focusList
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	before := m.searchInput.Value()
	m.searchInput, cmd = m.searchInput.Update(msg)
	if after := m.searchInput.Value(); after != before {
		m.ctrl.Search(after)
	}
	return m, cmd
}

func (m *Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.session.Cancel()
		m.leaveEditor()
		return m, nil

	case "ctrl+s":
		m.captureBuffer()
		return m, m.saveCmd()

	case "tab":
		m.cycleEditFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleEditFocus(-1)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.editFocus {
	case fieldName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case fieldLanguage:
		m.langInput, cmd = m.langInput.Update(msg)
	case fieldDescription:
		m.descInput, cmd = m.descInput.Update(msg)
	case fieldCode:
		m.codeArea, cmd = m.codeArea.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedSnippet() (types.Snippet, bool) {
	return m.ctrl.Selected()
}

// openAtCursor selects the snippet under the list cursor and loads it into
// the viewer.
func (m *Model) openAtCursor() {
	snippets := m.ctrl.Snippets()
	if m.cursor < 0 || m.cursor >= len(snippets) {
		return
	}
	snippet := snippets[m.cursor]
	m.ctrl.Select(snippet.ID)
	m.session.Open(snippet)
}

func (m *Model) enterEditor() {
	m.session.Edit()
	buf := m.session.Buffer()
	m.nameInput.SetValue(buf.Name)
	m.langInput.SetValue(buf.Language)
	m.descInput.SetValue(buf.Description)
	m.codeArea.SetValue(buf.Code)
	m.focus = focusEditor
	m.editFocus = fieldCode
	m.setEditFocus()
}

func (m *Model) leaveEditor() {
	m.focus = focusList
	m.nameInput.Blur()
	m.langInput.Blur()
	m.descInput.Blur()
	m.codeArea.Blur()
}

func (m *Model) cycleEditFocus(dir int) {
	m.editFocus = editField((int(m.editFocus) + dir + int(fieldCount)) % int(fieldCount))
	m.setEditFocus()
}

func (m *Model) setEditFocus() {
	m.nameInput.Blur()
	m.langInput.Blur()
	m.descInput.Blur()
	m.codeArea.Blur()
	switch m.editFocus {
	case fieldName:
		m.nameInput.Focus()
	case fieldLanguage:
		m.langInput.Focus()
	case fieldDescription:
		m.descInput.Focus()
	case fieldCode:
		m.codeArea.Focus()
	}
}

// captureBuffer copies the input widgets back into the session buffer before
// a save.
func (m *Model) captureBuffer() {
	m.session.SetBuffer(client.Buffer{
		Name:        m.nameInput.Value(),
		Language:    m.langInput.Value(),
		Code:        m.codeArea.Value(),
		Description: m.descInput.Value(),
	})
}

func (m *Model) createCmd() tea.Cmd {
	return func() tea.Msg {
		snippet, err := m.ctrl.Create(m.ctx, types.SnippetFields{
			Name:     "Untitled Snippet",
			Language: types.DefaultLanguage,
			Code:     types.DefaultCode,
		})
		if err != nil {
			return errMsg{err: err}
		}
		m.session.Open(snippet)
		return openEditorMsg{}
	}
}

func (m *Model) saveCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Save(m.ctx); err != nil {
			return errMsg{err: err}
		}
		return editorSavedMsg{}
	}
}

func (m *Model) deleteCmd(id types.SnippetID) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.Delete(m.ctx, id); err != nil {
			return errMsg{err: err}
		}
		m.session.Close()
		return nil
	}
}
