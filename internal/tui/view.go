package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/snipsync/internal/client"
)

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	listWidth := m.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	detailWidth := m.width - listWidth - 6

	left := m.renderList(listWidth)
	right := m.renderDetail(detailWidth)

	listStyle := m.styles.Pane
	detailStyle := m.styles.Pane
	if m.focus == focusEditor {
		detailStyle = m.styles.PaneHot
	} else {
		listStyle = m.styles.PaneHot
	}

	b.WriteString(lipgloss.JoinHorizontal(
		lipgloss.Top,
		listStyle.Width(listWidth).Render(left),
		detailStyle.Width(detailWidth).Render(right),
	))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	conn := m.styles.Danger.Render("offline")
	if m.channel != nil && m.channel.Connected() {
		conn = m.styles.Success.Render("live")
	}
	title := m.styles.Header.Render("snipsync")
	count := m.styles.Muted.Render(fmt.Sprintf("%d snippets", len(m.ctrl.Snippets())))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", count, "  ", conn)
}

func (m *Model) renderList(width int) string {
	var b strings.Builder
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	snippets := m.ctrl.Snippets()
	if len(snippets) == 0 {
		b.WriteString(m.styles.Muted.Render("no snippets"))
		return b.String()
	}

	for i, s := range snippets {
		name := truncate(s.Name, width-len(s.Language)-6)
		line := fmt.Sprintf("%s  %s", name, m.styles.Muted.Render(s.Language))
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderDetail(width int) string {
	if !m.session.IsOpen() {
		return m.styles.Muted.Render("select a snippet (enter), create one (n)")
	}

	if m.focus == focusEditor {
		return m.renderEditor()
	}

	snippet := m.session.Snippet()
	var b strings.Builder
	b.WriteString(m.styles.Accent.Render(snippet.Name))
	b.WriteString("  ")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("[%s]", client.SyntaxFor(snippet.Language))))
	b.WriteString("\n")
	if snippet.Description != "" {
		b.WriteString(m.styles.Muted.Render(truncate(snippet.Description, width)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(snippet.Code)
	return b.String()
}

func (m *Model) renderEditor() string {
	var b strings.Builder
	b.WriteString(m.styles.Accent.Render("editing"))
	if m.session.HasStaleRemote() {
		b.WriteString("  ")
		b.WriteString(m.styles.Warning.Render("updated elsewhere; esc to see the new version"))
	}
	b.WriteString("\n\n")
	b.WriteString("name:        " + m.nameInput.View() + "\n")
	b.WriteString("language:    " + m.langInput.View() + "\n")
	b.WriteString("description: " + m.descInput.View() + "\n\n")
	b.WriteString(m.codeArea.View())
	return b.String()
}

func (m *Model) renderFooter() string {
	if m.confirmDelete {
		if selected, ok := m.selectedSnippet(); ok {
			return m.styles.Danger.Render(fmt.Sprintf(" delete %q? (y/n)", selected.Name))
		}
	}

	if affirm := m.session.Affirmation(); affirm != "" {
		return m.styles.Success.Render(" " + affirm)
	}

	if m.toast != "" {
		style := m.styles.Text
		switch m.toastSev {
		case client.SeverityWarn:
			style = m.styles.Warning
		case client.SeverityError:
			style = m.styles.Danger
		}
		return style.Render(" " + m.toast)
	}

	help := "enter open · e edit · n new · d delete · c copy · w write · / search · q quit"
	if m.focus == focusEditor {
		help = "tab next field · ctrl+s save · esc cancel"
	}
	return m.styles.Footer.Render(help)
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
