package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glabrego/feedhaven/internal/addflow"
	"github.com/glabrego/feedhaven/internal/search"
	"github.com/glabrego/feedhaven/internal/workspace"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle  = lipgloss.NewStyle().Reverse(true)
	unreadStyle    = lipgloss.NewStyle().Bold(true)
	readStyle      = lipgloss.NewStyle().Faint(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errNoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	fieldErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Underline(true)
	hintStyle      = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("feedhaven"))
	b.WriteString("\n\n")

	switch m.mode {
	case modeAdd:
		m.renderAdd(&b)
	case modeSearch:
		m.renderSearch(&b)
	default:
		m.renderList(&b)
	}

	m.renderStatus(&b)
	return b.String()
}

func (m Model) renderList(b *strings.Builder) {
	rows := m.scopeRows()
	items := m.visibleItems()

	var left []string
	for i, row := range rows {
		label := row.label
		if unread := m.ws.Library().UnreadCount(row.scope); unread > 0 {
			label = fmt.Sprintf("%s (%d)", label, unread)
		}
		if m.focusScopes && i == m.scopeCursor {
			label = selectedStyle.Render(label)
		} else if row.scope == m.ws.Scope() {
			label = unreadStyle.Render(label)
		}
		left = append(left, label)
	}

	var right []string
	for i, item := range items {
		marker := " "
		if item.SavedAt != nil {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, item.Title)
		if item.ReadAt == nil {
			line = unreadStyle.Render(line)
		} else {
			line = readStyle.Render(line)
		}
		if !m.focusScopes && i == m.itemCursor {
			line = selectedStyle.Render(line)
		}
		right = append(right, line)
	}
	if len(right) == 0 {
		state := m.ws.Cache().StateFor(m.ws.Scope())
		switch {
		case state.Loading:
			right = append(right, hintStyle.Render("Loading…"))
		case state.Err != nil:
			right = append(right, errNoticeStyle.Render("Load failed — press L to retry"))
		default:
			right = append(right, hintStyle.Render("No items here yet"))
		}
	}

	sidebar := lipgloss.NewStyle().Width(28).Render(strings.Join(left, "\n"))
	list := strings.Join(right, "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, "  ", list))
	b.WriteString("\n")

	if state := m.ws.Cache().StateFor(m.ws.Scope()); state.HasMore {
		b.WriteString(hintStyle.Render("\nL: load more"))
		b.WriteString("\n")
	}
}

func (m Model) renderAdd(b *strings.Builder) {
	machine := m.ws.AddFlow()
	b.WriteString("Add subscription\n\n")
	b.WriteString(fmt.Sprintf("URL: %s▎\n", m.addInput))

	if names := m.selectedFolderNames(); len(names) > 0 {
		b.WriteString(fmt.Sprintf("Folders: %s\n", strings.Join(names, ", ")))
	}
	if m.folderPrompt {
		b.WriteString(fmt.Sprintf("New folder: %s▎\n", m.folderInput))
	}
	if m.renamePrompt {
		b.WriteString(fmt.Sprintf("Rename folder: %s▎\n", m.folderInput))
	}

	if machine.Stage() == addflow.StageAwaitingSelection {
		b.WriteString("\nSeveral feeds found — pick one:\n")
		for i, candidate := range addableCandidates(machine.Candidates()) {
			line := fmt.Sprintf("%s  %s (%s)", candidate.Title, candidate.URL, candidate.Method)
			if i == m.addCursor {
				line = selectedStyle.Render(line)
			}
			b.WriteString("  " + line + "\n")
		}
	}

	if err := machine.FieldError(); err != "" {
		b.WriteString("\n" + fieldErrStyle.Render(err) + "\n")
	}
	if err := machine.FolderError(); err != "" {
		b.WriteString(fieldErrStyle.Render(err) + "\n")
	}
	hint := "enter: submit  ctrl+f: new folder  esc: back"
	switch {
	case m.folderPrompt, m.renamePrompt:
		hint = "enter: confirm  esc: cancel"
	case machine.RenamePromptFolderID() != 0:
		hint = "ctrl+r: rename folder  esc: keep name"
	}
	b.WriteString("\n" + hintStyle.Render(hint) + "\n")
}

func (m Model) selectedFolderNames() []string {
	var names []string
	for _, id := range m.ws.AddFlow().FolderSelection() {
		if folder := m.ws.Library().Folder(id); folder != nil {
			names = append(names, folder.Name)
		}
	}
	return names
}

func (m Model) renderSearch(b *strings.Builder) {
	b.WriteString(fmt.Sprintf("Search: %s▎\n\n", m.searchQuery))

	outcome := m.searchOutcome
	if !outcome.IsActive {
		b.WriteString(hintStyle.Render("Type at least 2 characters to search") + "\n")
		return
	}

	if outcome.IsCapped {
		b.WriteString(hintStyle.Render(fmt.Sprintf("Showing top %d of %d matches", len(outcome.Results), outcome.TotalMatchCount)) + "\n")
	} else {
		b.WriteString(hintStyle.Render(fmt.Sprintf("%d matches", outcome.TotalMatchCount)) + "\n")
	}

	for i, result := range outcome.Results {
		title := renderHighlighted(result.Doc.Title, result.Highlights[search.FieldTitle])
		line := fmt.Sprintf("%s — %s", title, result.Doc.FeedTitle)
		if len(result.MatchedElsewhere) > 0 {
			line += hintStyle.Render(" (also matched elsewhere)")
		}
		if i == m.searchCursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("esc: back") + "\n")
}

// renderHighlighted applies highlight spans to text. Spans are closed
// rune intervals from the search engine.
func renderHighlighted(text string, spans []search.Span) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	next := 0
	for _, span := range spans {
		if span.Start >= len(runes) {
			break
		}
		end := span.End
		if end >= len(runes) {
			end = len(runes) - 1
		}
		if span.Start > next {
			b.WriteString(string(runes[next:span.Start]))
		}
		b.WriteString(highlightStyle.Render(string(runes[span.Start : end+1])))
		next = end + 1
	}
	if next < len(runes) {
		b.WriteString(string(runes[next:]))
	}
	return b.String()
}

func (m Model) renderStatus(b *strings.Builder) {
	if progress := m.ws.AddFlow().Progress(); progress != "" {
		b.WriteString("\n" + progressStyle.Render(progress))
	}
	for _, notice := range m.ws.Notices() {
		style := noticeStyle
		if notice.Level == workspace.NoticeError {
			style = errNoticeStyle
		}
		b.WriteString("\n" + style.Render(notice.Text))
	}
	b.WriteString("\n" + hintStyle.Render("a: add  /: search  r: refresh  m: read  s: save  A: mark all  q: quit"))
	b.WriteString("\n")
}
