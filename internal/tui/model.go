package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedhaven/internal/addflow"
	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/library"
	"github.com/glabrego/feedhaven/internal/search"
	"github.com/glabrego/feedhaven/internal/tui/actions"
	"github.com/glabrego/feedhaven/internal/workspace"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeSearch
)

// scopeRow is one sidebar entry.
type scopeRow struct {
	label string
	scope library.Scope
}

type Model struct {
	ws *workspace.Workspace

	mode        mode
	width       int
	height      int
	focusScopes bool

	scopeCursor int
	itemCursor  int

	addInput  string
	addCursor int // candidate pick cursor

	folderPrompt bool // typing a new folder name
	renamePrompt bool // typing a new name for the just-created folder
	folderInput  string

	searchQuery   string
	searchDocs    []search.Doc
	searchOutcome search.Outcome
	searchCursor  int

	scheduledNotices map[int]bool
	refreshing       bool
}

func NewModel(ws *workspace.Workspace) Model {
	return Model{
		ws:               ws,
		scheduledNotices: make(map[int]bool),
	}
}

func (m Model) Init() tea.Cmd {
	// Snapshot is loaded synchronously before the program starts;
	// kick off the background refresh and the first page.
	cmds := []tea.Cmd{actions.RefreshCmd(m.ws.StartRefresh())}
	if request, ok := m.ws.StartPageLoad(m.ws.Scope()); ok {
		cmds = append(cmds, actions.LoadPageCmd(request))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case actions.PageResultMsg:
		m.ws.HandlePageResult(msg.Result)
		return m, m.afterWorkspaceChange(msg.Result.Err == nil)

	case actions.RefreshResultMsg:
		m.refreshing = false
		m.ws.HandleRefresh(msg.Outcome)
		return m, m.afterWorkspaceChange(msg.Outcome.Err == nil)

	case actions.MutationResultMsg:
		m.ws.FinishMutation(msg.Result)
		return m, m.afterWorkspaceChange(msg.Result.Err == nil)

	case actions.AddResultMsg:
		effect := m.ws.HandleAddResult(msg.Result)
		cmds := []tea.Cmd{m.dispatchAddEffect(effect)}
		machine := m.ws.AddFlow()
		if msg.Result.Kind == addflow.EffectCreate && machine.Stage() == addflow.StageIdle &&
			machine.FieldError() == "" && msg.Result.Err == nil {
			// Create finished; return to the list on the new scope.
			m.mode = modeList
			m.addInput = ""
			m.itemCursor = 0
			if request, ok := m.ws.StartPageLoad(m.ws.Scope()); ok {
				cmds = append(cmds, actions.LoadPageCmd(request))
			}
		}
		cmds = append(cmds, m.afterWorkspaceChange(msg.Result.Err == nil))
		return m, tea.Batch(cmds...)

	case actions.AddCountdownMsg:
		if msg.Remaining > 0 {
			m.ws.AddFlow().Countdown(msg.Remaining)
			return m, actions.CountdownCmd(msg.Remaining)
		}
		return m, m.dispatchAddEffect(m.ws.AddFlow().ResumeRetry())

	case actions.FolderRenamedMsg:
		m.ws.HandleFolderRename(msg.Result)
		return m, m.afterWorkspaceChange(msg.Result.Err == nil)

	case actions.SnapshotLoadedMsg:
		m.ws.HandleSnapshot(msg.Result)
		return m, m.scheduleNoticeClears()

	case actions.PersistDoneMsg:
		// Snapshot write failures are not worth interrupting reading.
		return m, nil

	case actions.ClearNoticeMsg:
		m.ws.DismissNotice(msg.ID)
		return m, nil
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAdd:
		return m.updateAddKey(msg)
	case modeSearch:
		return m.updateSearchKey(msg)
	}
	return m.updateListKey(msg)
}

func (m Model) updateListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.visibleItems()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.focusScopes = !m.focusScopes
	case "j", "down":
		if m.focusScopes {
			m.scopeCursor = clamp(m.scopeCursor+1, len(m.scopeRows()))
		} else {
			m.itemCursor = clamp(m.itemCursor+1, len(items))
		}
	case "k", "up":
		if m.focusScopes {
			m.scopeCursor = clamp(m.scopeCursor-1, len(m.scopeRows()))
		} else {
			m.itemCursor = clamp(m.itemCursor-1, len(items))
		}
	case "enter":
		if m.focusScopes {
			rows := m.scopeRows()
			if m.scopeCursor < len(rows) {
				m.itemCursor = 0
				m.focusScopes = false
				needsLoad := m.ws.SetScope(rows[m.scopeCursor].scope)
				cmds := []tea.Cmd{actions.PersistCmd(m.ws.SaveScopeRequest())}
				if needsLoad {
					if request, ok := m.ws.StartPageLoad(m.ws.Scope()); ok {
						cmds = append(cmds, actions.LoadPageCmd(request))
					}
				}
				return m, tea.Batch(cmds...)
			}
		}
	case "r":
		if !m.refreshing {
			m.refreshing = true
			return m, actions.RefreshCmd(m.ws.StartRefresh())
		}
	case "L":
		state := m.ws.Cache().StateFor(m.ws.Scope())
		if state.HasMore && !state.Loading {
			if request, ok := m.ws.StartPageLoad(m.ws.Scope()); ok {
				return m, actions.LoadPageCmd(request)
			}
		}
	case "m":
		if item := m.currentItem(items); item != nil {
			if op, ok := m.ws.Mutations().MarkRead(item.ID, item.ReadAt == nil); ok {
				return m, actions.MutationCmd(op)
			}
		}
	case "s":
		if item := m.currentItem(items); item != nil {
			if op, ok := m.ws.Mutations().ToggleSaved(item.ID); ok {
				return m, actions.MutationCmd(op)
			}
		}
	case "A":
		if op, _, ok := m.ws.Mutations().MarkAllRead(m.ws.Scope()); ok {
			return m, actions.MutationCmd(op)
		}
	case "D":
		if scope := m.ws.Scope(); scope.Kind == library.ScopeFeed {
			if op, ok := m.ws.Mutations().Delete(scope.FeedID); ok {
				return m, actions.MutationCmd(op)
			}
		}
	case "a":
		m.mode = modeAdd
		m.addInput = m.ws.AddFlow().Input()
	case "/":
		m.mode = modeSearch
		m.searchQuery = ""
		m.searchDocs = search.BuildDocs(m.ws.Library().Feeds())
		m.searchOutcome = search.Outcome{}
		m.searchCursor = 0
	}
	return m, nil
}

func (m Model) updateAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	machine := m.ws.AddFlow()

	if m.folderPrompt || m.renamePrompt {
		return m.updateFolderPromptKey(msg)
	}

	if machine.Stage() == addflow.StageAwaitingSelection {
		addable := addableCandidates(machine.Candidates())
		switch msg.String() {
		case "esc":
			m.mode = modeList
			return m, nil
		case "j", "down":
			m.addCursor = clamp(m.addCursor+1, len(addable))
			return m, nil
		case "k", "up":
			m.addCursor = clamp(m.addCursor-1, len(addable))
			return m, nil
		case "enter":
			if m.addCursor < len(addable) {
				machine.Select(addable[m.addCursor].URL)
			}
			return m, m.dispatchAddEffect(machine.Submit(m.addInput, machine.FolderSelection()))
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		if machine.RenamePromptFolderID() != 0 {
			// Keep the placeholder name.
			machine.ClearRenamePrompt()
			return m, nil
		}
		m.mode = modeList
		return m, nil
	case "ctrl+f":
		m.folderPrompt = true
		m.folderInput = ""
		return m, nil
	case "ctrl+r":
		if id := machine.RenamePromptFolderID(); id != 0 {
			m.renamePrompt = true
			m.folderInput = ""
			if folder := m.ws.Library().Folder(id); folder != nil {
				m.folderInput = folder.Name
			}
		}
		return m, nil
	case "enter":
		return m, m.dispatchAddEffect(machine.Submit(m.addInput, machine.FolderSelection()))
	case "backspace":
		if len(m.addInput) > 0 {
			runes := []rune(m.addInput)
			m.addInput = string(runes[:len(runes)-1])
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.addInput += string(msg.Runes)
		}
		return m, nil
	}
}

// updateFolderPromptKey edits the folder name line shown while adding
// a subscription, either for a brand new folder or to rename the one
// the server just created.
func (m Model) updateFolderPromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	machine := m.ws.AddFlow()
	switch msg.String() {
	case "esc":
		if m.renamePrompt {
			machine.ClearRenamePrompt()
		}
		m.folderPrompt = false
		m.renamePrompt = false
		m.folderInput = ""
		return m, nil
	case "enter":
		if m.renamePrompt {
			id := machine.RenamePromptFolderID()
			name := strings.TrimSpace(m.folderInput)
			machine.ClearRenamePrompt()
			m.renamePrompt = false
			m.folderInput = ""
			if id == 0 || name == "" {
				return m, nil
			}
			if folder := m.ws.Library().Folder(id); folder != nil && folder.Name == name {
				return m, nil
			}
			return m, actions.RenameFolderCmd(m.ws.RenameFolderRequest(id, name))
		}
		effect := machine.CreateFolder(m.folderInput)
		if effect.Kind == addflow.EffectNone {
			// Validation failed; the folder error stays on screen.
			return m, nil
		}
		m.folderPrompt = false
		m.folderInput = ""
		return m, m.dispatchAddEffect(effect)
	case "backspace":
		if len(m.folderInput) > 0 {
			runes := []rune(m.folderInput)
			m.folderInput = string(runes[:len(runes)-1])
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.folderInput += string(msg.Runes)
		}
		return m, nil
	}
}

func (m Model) updateSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "up":
		m.searchCursor = clamp(m.searchCursor-1, len(m.searchOutcome.Results))
		return m, nil
	case "down":
		m.searchCursor = clamp(m.searchCursor+1, len(m.searchOutcome.Results))
		return m, nil
	case "backspace":
		if len(m.searchQuery) > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:len(runes)-1])
		}
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.searchQuery += string(msg.Runes)
		}
	}
	m.searchOutcome = search.Search(m.searchDocs, m.searchQuery, search.Options{FilterNoise: true})
	m.searchCursor = clamp(m.searchCursor, len(m.searchOutcome.Results))
	return m, nil
}

// dispatchAddEffect turns a machine effect into the command that
// performs it.
func (m Model) dispatchAddEffect(effect addflow.Effect) tea.Cmd {
	switch effect.Kind {
	case addflow.EffectDiscover, addflow.EffectCreate, addflow.EffectCreateFolder:
		return actions.AddCmd(m.ws.RunEffect(effect))
	case addflow.EffectWait:
		return actions.CountdownCmd(effect.Delay)
	default:
		return nil
	}
}

// afterWorkspaceChange persists the snapshot after successful
// collection changes, loads the local snapshot on first offline
// detection, and schedules dismissal of any fresh transient notices.
func (m Model) afterWorkspaceChange(succeeded bool) tea.Cmd {
	var cmds []tea.Cmd
	if succeeded {
		cmds = append(cmds, actions.PersistCmd(m.ws.Persist))
	}
	if m.ws.NeedsSnapshotLoad() {
		cmds = append(cmds, actions.LoadSnapshotCmd(m.ws.LoadSnapshotRequest()))
	}
	if cmd := m.scheduleNoticeClears(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m Model) scheduleNoticeClears() tea.Cmd {
	var cmds []tea.Cmd
	for _, notice := range m.ws.Notices() {
		if notice.Persistent || m.scheduledNotices[notice.ID] {
			continue
		}
		m.scheduledNotices[notice.ID] = true
		cmds = append(cmds, actions.ClearNoticeCmd(notice.ID))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m Model) visibleItems() []*library.Item {
	return m.ws.Library().ItemsInScope(m.ws.Scope())
}

func (m Model) currentItem(items []*library.Item) *library.Item {
	if len(items) == 0 || m.itemCursor >= len(items) {
		return nil
	}
	return items[m.itemCursor]
}

func (m Model) scopeRows() []scopeRow {
	rows := []scopeRow{
		{label: "All items", scope: library.AllScope()},
		{label: "Saved", scope: library.SavedScope()},
		{label: "Uncategorized", scope: library.UncategorizedScope()},
	}
	for _, folder := range m.ws.Library().Folders() {
		rows = append(rows, scopeRow{label: folder.Name, scope: library.FolderScope(folder.ID)})
	}
	for _, feed := range m.ws.Library().Feeds() {
		rows = append(rows, scopeRow{label: feed.DisplayTitle(), scope: library.FeedScope(feed.ID)})
	}
	return rows
}

func clamp(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

func addableCandidates(candidates []feedapi.Candidate) []feedapi.Candidate {
	var out []feedapi.Candidate
	for _, c := range candidates {
		if !c.Duplicate {
			out = append(out, c)
		}
	}
	return out
}
