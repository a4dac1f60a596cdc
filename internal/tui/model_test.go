package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/library"
	"github.com/glabrego/feedhaven/internal/tui/actions"
	"github.com/glabrego/feedhaven/internal/workspace"
)

type fakeAPI struct {
	pages       map[string]feedapi.Page
	discovery   feedapi.Discovery
	create      feedapi.CreateResult
	renamedName string
}

func (f *fakeAPI) SetItemRead(ctx context.Context, id int64, read bool) (*library.Item, error) {
	return nil, nil
}

func (f *fakeAPI) SetItemSaved(ctx context.Context, id int64, saved bool) (*library.Item, error) {
	return nil, nil
}

func (f *fakeAPI) RenameSubscription(ctx context.Context, id int64, customTitle string) (*library.Subscription, error) {
	return nil, nil
}

func (f *fakeAPI) SetSubscriptionFolders(ctx context.Context, id int64, folderIDs []int64) (*library.Subscription, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteSubscription(ctx context.Context, id int64) error { return nil }

func (f *fakeAPI) MarkAllRead(ctx context.Context, scope library.Scope) (int, error) { return 0, nil }

func (f *fakeAPI) DiscoverFeeds(ctx context.Context, siteURL string) (feedapi.Discovery, error) {
	return f.discovery, nil
}

func (f *fakeAPI) CreateSubscription(ctx context.Context, feedURL string, folderIDs []int64) (feedapi.CreateResult, error) {
	return f.create, nil
}

func (f *fakeAPI) CreateFolder(ctx context.Context, name string) (*library.Folder, error) {
	return &library.Folder{ID: 99, Name: name}, nil
}

func (f *fakeAPI) RenameFolder(ctx context.Context, id int64, name string) (*library.Folder, error) {
	f.renamedName = name
	return &library.Folder{ID: id, Name: name}, nil
}

func (f *fakeAPI) RefreshAll(ctx context.Context) ([]feedapi.RefreshResult, error) {
	return nil, nil
}

func (f *fakeAPI) ListSubscriptions(ctx context.Context) ([]*library.Subscription, error) {
	return nil, nil
}

func (f *fakeAPI) ListFolders(ctx context.Context) ([]*library.Folder, error) { return nil, nil }

func (f *fakeAPI) FetchPage(ctx context.Context, scope library.Scope, cursor string, limit int) (feedapi.Page, error) {
	return f.pages[scope.Key()], nil
}

func testModel(t *testing.T) (Model, *workspace.Workspace) {
	t.Helper()
	ws := workspace.New(&fakeAPI{}, nil, nil)
	ws.Library().InsertFeed(&library.Subscription{ID: 1, Title: "Go Blog", FeedURL: "https://go.dev/feed"})
	now := time.Now()
	ws.Library().MergeItems([]*library.Item{
		{ID: 10, FeedID: 1, Title: "Iterators", PublishedAt: now},
		{ID: 11, FeedID: 1, Title: "Generics", PublishedAt: now.Add(-time.Hour), SavedAt: &now},
	})
	return NewModel(ws), ws
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_ListShowsScopesAndItems(t *testing.T) {
	m, _ := testModel(t)
	view := m.View()
	if !strings.Contains(view, "All items") || !strings.Contains(view, "Saved") {
		t.Fatalf("sidebar scopes missing from view:\n%s", view)
	}
	if !strings.Contains(view, "Go Blog") {
		t.Fatalf("feed row missing from view:\n%s", view)
	}
	if !strings.Contains(view, "Iterators") || !strings.Contains(view, "Generics") {
		t.Fatalf("items missing from view:\n%s", view)
	}
	if !strings.Contains(view, "* Generics") {
		t.Fatalf("saved marker missing from view:\n%s", view)
	}
}

func TestUpdate_NavigationMovesItemCursor(t *testing.T) {
	m, _ := testModel(t)

	updated, _ := m.Update(key("j"))
	model := updated.(Model)
	if model.itemCursor != 1 {
		t.Fatalf("cursor = %d, want 1", model.itemCursor)
	}
	// Clamped at the end of the list.
	updated, _ = model.Update(key("j"))
	model = updated.(Model)
	if model.itemCursor != 1 {
		t.Fatalf("cursor should clamp at 1, got %d", model.itemCursor)
	}
	updated, _ = model.Update(key("k"))
	model = updated.(Model)
	if model.itemCursor != 0 {
		t.Fatalf("cursor = %d, want 0", model.itemCursor)
	}
}

func TestUpdate_ScopeSwitchStartsLoad(t *testing.T) {
	m, _ := testModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	model := updated.(Model)
	if !model.focusScopes {
		t.Fatal("tab should focus the scope sidebar")
	}

	// Move to the Saved scope and select it; never fetched, so a load
	// command comes back.
	updated, _ = model.Update(key("j"))
	model = updated.(Model)
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("selecting a never-fetched scope should start a page load")
	}
	if model.ws.Scope() != library.SavedScope() {
		t.Fatalf("scope = %+v, want saved", model.ws.Scope())
	}
}

func TestUpdate_MarkReadProducesMutationCmd(t *testing.T) {
	m, ws := testModel(t)

	_, cmd := m.Update(key("m"))
	if cmd == nil {
		t.Fatal("expected a mutation command")
	}
	if _, item := ws.Library().Item(10); item.ReadAt == nil {
		t.Fatal("read state should flip optimistically before the command runs")
	}
}

func TestUpdate_AddFlowRoundTrip(t *testing.T) {
	m, ws := testModel(t)

	updated, _ := m.Update(key("a"))
	model := updated.(Model)
	if model.mode != modeAdd {
		t.Fatal("a should enter add mode")
	}

	for _, r := range "https://blog.example/rss" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	if model.addInput != "https://blog.example/rss" {
		t.Fatalf("typed input = %q", model.addInput)
	}

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("submit should produce a discovery command")
	}
	if ws.AddFlow().Stage().String() != "discovering" {
		t.Fatalf("stage = %v", ws.AddFlow().Stage())
	}
}

func TestUpdate_AddModeEscReturnsToList(t *testing.T) {
	m, _ := testModel(t)
	updated, _ := m.Update(key("a"))
	model := updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(Model)
	if model.mode != modeList {
		t.Fatal("esc should leave add mode")
	}
}

func TestUpdate_AddModeCreatesFolderInline(t *testing.T) {
	m, ws := testModel(t)

	updated, _ := m.Update(key("a"))
	model := updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	model = updated.(Model)
	if !model.folderPrompt {
		t.Fatal("ctrl+f should open the folder prompt")
	}

	for _, r := range "Tech" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("confirming the folder name should produce a create command")
	}
	if model.folderPrompt {
		t.Fatal("folder prompt should close on submit")
	}

	raw := cmd()
	msg, ok := raw.(actions.AddResultMsg)
	if !ok {
		t.Fatalf("folder create command resolved to %T", raw)
	}
	updated, _ = model.Update(msg)
	model = updated.(Model)

	if model.mode != modeAdd {
		t.Fatal("folder creation must not leave add mode")
	}
	selection := ws.AddFlow().FolderSelection()
	if len(selection) != 1 || selection[0] != 99 {
		t.Fatalf("new folder should join the selection: %v", selection)
	}
	if ws.AddFlow().RenamePromptFolderID() != 99 {
		t.Fatal("new folder should be offered for rename")
	}
	view := model.View()
	if !strings.Contains(view, "Folders: Tech") || !strings.Contains(view, "ctrl+r: rename folder") {
		t.Fatalf("selected folder or rename hint missing from view:\n%s", view)
	}
}

func TestUpdate_AddModeRenamesCreatedFolder(t *testing.T) {
	api := &fakeAPI{}
	ws := workspace.New(api, nil, nil)
	m := NewModel(ws)

	updated, _ := m.Update(key("a"))
	model := updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	model = updated.(Model)
	for _, r := range "Tech" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	updated, _ = model.Update(cmd())
	model = updated.(Model)

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	model = updated.(Model)
	if !model.renamePrompt || model.folderInput != "Tech" {
		t.Fatalf("ctrl+r should open the rename prompt seeded with the current name, got %q", model.folderInput)
	}

	for range "Tech" {
		updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyBackspace})
		model = updated.(Model)
	}
	for _, r := range "News" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	updated, cmd = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("confirming the rename should produce a command")
	}
	if ws.AddFlow().RenamePromptFolderID() != 0 {
		t.Fatal("rename prompt should be consumed on confirm")
	}

	raw := cmd()
	msg, ok := raw.(actions.FolderRenamedMsg)
	if !ok {
		t.Fatalf("rename command resolved to %T", raw)
	}
	updated, _ = model.Update(msg)
	model = updated.(Model)

	if api.renamedName != "News" {
		t.Fatalf("rename request carried %q, want News", api.renamedName)
	}
	if got := ws.Library().Folder(99).Name; got != "News" {
		t.Fatalf("folder name = %q, want News", got)
	}
	if model.mode != modeAdd {
		t.Fatal("rename must not leave add mode")
	}
}

func TestUpdate_AddModeEscKeepsFolderName(t *testing.T) {
	api := &fakeAPI{}
	ws := workspace.New(api, nil, nil)
	m := NewModel(ws)

	updated, _ := m.Update(key("a"))
	model := updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	model = updated.(Model)
	for _, r := range "Tech" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	updated, _ = model.Update(cmd())
	model = updated.(Model)

	// First esc dismisses the rename offer, second leaves add mode.
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(Model)
	if model.mode != modeAdd {
		t.Fatal("dismissing the rename offer must not leave add mode")
	}
	if ws.AddFlow().RenamePromptFolderID() != 0 {
		t.Fatal("esc should clear the rename offer")
	}
	if got := ws.Library().Folder(99).Name; got != "Tech" {
		t.Fatalf("folder should keep its name, got %q", got)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model = updated.(Model)
	if model.mode != modeList {
		t.Fatal("second esc should leave add mode")
	}
}

func TestUpdate_SearchIsLive(t *testing.T) {
	m, _ := testModel(t)

	updated, _ := m.Update(key("/"))
	model := updated.(Model)
	if model.mode != modeSearch {
		t.Fatal("/ should enter search mode")
	}

	for _, r := range "generics" {
		updated, _ = model.Update(key(string(r)))
		model = updated.(Model)
	}
	if !model.searchOutcome.IsActive {
		t.Fatal("search should be active after typing")
	}
	if len(model.searchOutcome.Results) != 1 || model.searchOutcome.Results[0].Doc.ItemID != 11 {
		t.Fatalf("unexpected results: %+v", model.searchOutcome.Results)
	}

	view := model.View()
	if !strings.Contains(view, "1 matches") {
		t.Fatalf("match count missing from view:\n%s", view)
	}
}

func TestUpdate_SearchBelowMinLengthInactive(t *testing.T) {
	m, _ := testModel(t)
	updated, _ := m.Update(key("/"))
	model := updated.(Model)
	updated, _ = model.Update(key("g"))
	model = updated.(Model)
	if model.searchOutcome.IsActive {
		t.Fatal("single-character query should stay inactive")
	}
	if !strings.Contains(model.View(), "at least 2 characters") {
		t.Fatal("view should hint at the minimum query length")
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	m, _ := testModel(t)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should produce the quit command")
	}
}
