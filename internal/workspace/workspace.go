// Package workspace is the orchestrator: it owns the canonical
// in-memory collection and coordinates the add flow, pagination
// cache, optimistic mutations, offline snapshots and notices. All of
// its methods run on the single program loop; the closures it hands
// out are the only things that touch the network.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/glabrego/feedhaven/internal/addflow"
	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/library"
	"github.com/glabrego/feedhaven/internal/mutate"
	"github.com/glabrego/feedhaven/internal/pagecache"
)

// Client is the remote API surface the workspace consumes.
type Client interface {
	mutate.Client
	DiscoverFeeds(ctx context.Context, siteURL string) (feedapi.Discovery, error)
	CreateSubscription(ctx context.Context, feedURL string, folderIDs []int64) (feedapi.CreateResult, error)
	CreateFolder(ctx context.Context, name string) (*library.Folder, error)
	RenameFolder(ctx context.Context, id int64, name string) (*library.Folder, error)
	RefreshAll(ctx context.Context) ([]feedapi.RefreshResult, error)
	ListSubscriptions(ctx context.Context) ([]*library.Subscription, error)
	ListFolders(ctx context.Context) ([]*library.Folder, error)
	FetchPage(ctx context.Context, scope library.Scope, cursor string, limit int) (feedapi.Page, error)
}

// SnapshotStore is the injected persistence port for offline copies
// and keyed UI state.
type SnapshotStore interface {
	SaveLibrary(ctx context.Context, feeds []*library.Subscription, folders []*library.Folder) error
	LoadLibrary(ctx context.Context) ([]*library.Subscription, []*library.Folder, error)
	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
}

type Workspace struct {
	lib   *library.Library
	cache *pagecache.Cache
	coord *mutate.Coordinator
	add   *addflow.Machine

	api   Client
	store SnapshotStore
	log   *slog.Logger

	scope    library.Scope
	pageSize int

	notices   []Notice
	noticeSeq int

	offline         bool
	offlineNoticeID int
	snapshotLoaded  bool
}

func New(api Client, store SnapshotStore, log *slog.Logger) *Workspace {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	lib := library.New()
	return &Workspace{
		lib:      lib,
		cache:    pagecache.New(),
		coord:    mutate.NewCoordinator(lib, api, log),
		add:      addflow.NewMachine(lib),
		api:      api,
		store:    store,
		log:      log,
		scope:    library.AllScope(),
		pageSize: 50,
	}
}

func (w *Workspace) Library() *library.Library      { return w.lib }
func (w *Workspace) Cache() *pagecache.Cache        { return w.cache }
func (w *Workspace) AddFlow() *addflow.Machine      { return w.add }
func (w *Workspace) Mutations() *mutate.Coordinator { return w.coord }
func (w *Workspace) Offline() bool                  { return w.offline }

func (w *Workspace) Scope() library.Scope { return w.scope }

// SetPageSize overrides the configured items-per-page for page and
// refresh fetches. Non-positive values are ignored.
func (w *Workspace) SetPageSize(n int) {
	if n > 0 {
		w.pageSize = n
	}
}

// SetScope switches the active navigational filter. Returns true when
// the new scope has never been fetched and the caller should start a
// page load.
func (w *Workspace) SetScope(scope library.Scope) bool {
	w.scope = scope
	state := w.cache.StateFor(scope)
	return !state.Initialized
}

const scopePrefKey = "active_scope"

// RestoreScope reinstates the scope the user last had active. Called
// once at startup, before the program loop runs.
func (w *Workspace) RestoreScope(ctx context.Context) {
	if w.store == nil {
		return
	}
	key, err := w.store.GetPref(ctx, scopePrefKey)
	if err != nil || key == "" {
		return
	}
	if scope, ok := library.ParseScopeKey(key); ok && scope.Kind != library.ScopeNone {
		w.scope = scope
	}
}

// SaveScopeRequest persists the active scope through the prefs port.
func (w *Workspace) SaveScopeRequest() func(ctx context.Context) error {
	scope := w.scope
	return func(ctx context.Context) error {
		if w.store == nil {
			return nil
		}
		return w.store.SetPref(ctx, scopePrefKey, scope.Key())
	}
}

// Persist writes the offline snapshot. Run it off-loop after any
// successful collection mutation.
func (w *Workspace) Persist(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	return w.store.SaveLibrary(ctx, w.lib.Feeds(), w.lib.Folders())
}

// LoadSnapshotRequest reads back the last known-good local copy.
func (w *Workspace) LoadSnapshotRequest() func(ctx context.Context) SnapshotResult {
	return func(ctx context.Context) SnapshotResult {
		feeds, folders, err := w.store.LoadLibrary(ctx)
		return SnapshotResult{Feeds: feeds, Folders: folders, Err: err}
	}
}

type SnapshotResult struct {
	Feeds   []*library.Subscription
	Folders []*library.Folder
	Err     error
}

// HandleSnapshot installs a loaded snapshot into the library.
func (w *Workspace) HandleSnapshot(res SnapshotResult) {
	if res.Err != nil {
		w.log.Warn("snapshot load failed", "err", res.Err)
		w.pushNotice(NoticeWarn, "Could not load the local snapshot", false)
		return
	}
	w.snapshotLoaded = true
	w.lib.ApplySnapshot(res.Feeds)
	w.lib.SetFolders(res.Folders)
}

// --- pagination ---

type PageResult struct {
	Scope library.Scope
	Page  feedapi.Page
	Err   error
}

// StartPageLoad begins loading the next page for a scope. Refused
// while a load for the same scope is outstanding; loads for different
// scopes overlap freely.
func (w *Workspace) StartPageLoad(scope library.Scope) (func(ctx context.Context) PageResult, bool) {
	if !w.cache.BeginLoad(scope) {
		return nil, false
	}
	cursor := w.cache.StateFor(scope).Cursor
	return func(ctx context.Context) PageResult {
		page, err := w.api.FetchPage(ctx, scope, cursor, w.pageSize)
		return PageResult{Scope: scope, Page: page, Err: err}
	}, true
}

// HandlePageResult applies a finished page load to its scope's cache
// entry, whether or not that scope is still the one on display.
func (w *Workspace) HandlePageResult(res PageResult) {
	if res.Err != nil {
		w.cache.FailLoad(res.Scope, res.Err)
		w.handleRequestError(res.Err, "Could not load more items")
		return
	}
	w.markOnline()
	w.cache.CompleteLoad(res.Scope, res.Page.NextCursor, res.Page.HasMore)
	w.lib.MergeItems(res.Page.Items)
}

// --- full refresh ---

type RefreshOutcome struct {
	Results []feedapi.RefreshResult
	Feeds   []*library.Subscription
	Folders []*library.Folder
	First   feedapi.Page
	Err     error
}

// StartRefresh returns the request closure for a full refresh: fetch
// everything server-side, then pull the authoritative snapshot and the
// first everything-scope page in one go.
func (w *Workspace) StartRefresh() func(ctx context.Context) RefreshOutcome {
	return func(ctx context.Context) RefreshOutcome {
		results, err := w.api.RefreshAll(ctx)
		if err != nil {
			return RefreshOutcome{Err: err}
		}
		feeds, err := w.api.ListSubscriptions(ctx)
		if err != nil {
			return RefreshOutcome{Err: err}
		}
		folders, err := w.api.ListFolders(ctx)
		if err != nil {
			return RefreshOutcome{Err: err}
		}
		first, err := w.api.FetchPage(ctx, library.AllScope(), "", w.pageSize)
		if err != nil {
			return RefreshOutcome{Err: err}
		}
		return RefreshOutcome{Results: results, Feeds: feeds, Folders: folders, First: first}
	}
}

// HandleRefresh reconciles a finished full refresh: authoritative feed
// fields replace local ones (locally loaded items survive), every
// other scope's pagination entry is invalidated, and the everything
// scope gets the fresh cursor immediately.
func (w *Workspace) HandleRefresh(out RefreshOutcome) {
	if out.Err != nil {
		w.handleRequestError(out.Err, "Refresh failed")
		return
	}
	w.markOnline()

	w.lib.ApplySnapshot(out.Feeds)
	w.lib.SetFolders(out.Folders)
	w.cache.ResetAfterRefresh(out.First.NextCursor, out.First.HasMore)
	w.lib.MergeItems(out.First.Items)

	newItems := 0
	failed := 0
	for _, r := range out.Results {
		newItems += r.NewItemCount
		if r.Error != "" {
			failed++
		}
	}
	text := fmt.Sprintf("Refreshed %d feeds, %d new items", len(out.Results), newItems)
	if failed > 0 {
		text += fmt.Sprintf(" (%d failed)", failed)
	}
	w.pushNotice(NoticeInfo, text, false)
}

// --- offline handling ---

// handleRequestError classifies a failed request: server-reported
// failures become dismissible notices; anything without an HTTP
// status means the transport itself failed, which is treated as
// connectivity loss.
func (w *Workspace) handleRequestError(err error, context string) {
	if apiErr, ok := feedapi.AsAPIError(err); ok {
		if apiErr.RateLimited() {
			w.pushNotice(NoticeWarn, "The service is rate limiting requests", false)
			return
		}
		w.pushNotice(NoticeError, fmt.Sprintf("%s: %s", context, apiErr.Message), false)
		return
	}
	w.markOffline()
}

// markOffline raises the persistent connectivity notice once. The
// first detection also asks for a one-time load of the last local
// snapshot via NeedsSnapshotLoad.
func (w *Workspace) markOffline() {
	if w.offline {
		return
	}
	w.offline = true
	w.offlineNoticeID = w.pushNotice(NoticeWarn, "You appear to be offline — showing your last synced copy", true)
	w.log.Info("connectivity lost")
}

// NeedsSnapshotLoad reports whether the offline snapshot should be
// loaded now; it flips to false once claimed so the load happens once.
func (w *Workspace) NeedsSnapshotLoad() bool {
	if w.offline && !w.snapshotLoaded {
		w.snapshotLoaded = true
		return true
	}
	return false
}

// markOnline clears the offline notice after any successful request.
// It deliberately does not re-sync; the user refreshes explicitly.
func (w *Workspace) markOnline() {
	if !w.offline {
		return
	}
	w.offline = false
	w.removeNotice(w.offlineNoticeID)
	w.offlineNoticeID = 0
	w.log.Info("connectivity restored")
}

// --- mutations ---

// FinishMutation resolves a mutation result on the loop: rollback and
// a notice on failure, server-confirmed values and a short success
// notice otherwise. Deleting the feed the current scope pointed at
// falls the scope back to everything.
func (w *Workspace) FinishMutation(res mutate.Result) {
	w.coord.Finish(res)
	op := res.Op
	if op == nil {
		return
	}

	if res.Err != nil {
		w.handleMutationError(op, res.Err)
		return
	}
	w.markOnline()

	switch op.Kind {
	case mutate.KindDelete:
		if w.scope.Kind == library.ScopeFeed && w.scope.FeedID == op.EntityID {
			w.scope = library.AllScope()
		}
		w.cache.Invalidate(library.FeedScope(op.EntityID))
		w.pushNotice(NoticeInfo, "Subscription removed", false)
	case mutate.KindRename:
		w.pushNotice(NoticeInfo, "Subscription renamed", false)
	case mutate.KindFolders:
		w.pushNotice(NoticeInfo, "Folders updated", false)
	case mutate.KindMarkAll:
		// Report the server-confirmed count, not the optimistic one.
		w.pushNotice(NoticeInfo, fmt.Sprintf("Marked %d items as read", res.Count), false)
	}
}

func (w *Workspace) handleMutationError(op *mutate.Op, err error) {
	label := map[mutate.Kind]string{
		mutate.KindRead:    "Could not update read state",
		mutate.KindSaved:   "Could not update saved state",
		mutate.KindRename:  "Could not rename the subscription",
		mutate.KindFolders: "Could not update folders",
		mutate.KindDelete:  "Could not delete the subscription",
		mutate.KindMarkAll: "Could not mark items as read",
	}[op.Kind]

	if apiErr, ok := feedapi.AsAPIError(err); ok {
		w.pushNotice(NoticeError, fmt.Sprintf("%s: %s", label, apiErr.Message), false)
		return
	}
	w.markOffline()
	w.pushNotice(NoticeError, label, false)
}

// --- add flow ---

// RunEffect turns an add-flow effect into its request closure. The
// EffectWait case is the caller's to schedule (it owes the machine a
// ResumeRetry after Delay).
func (w *Workspace) RunEffect(effect addflow.Effect) func(ctx context.Context) AddResult {
	switch effect.Kind {
	case addflow.EffectDiscover:
		return func(ctx context.Context) AddResult {
			d, err := w.api.DiscoverFeeds(ctx, effect.URL)
			return AddResult{Kind: effect.Kind, Discovery: d, Err: err}
		}
	case addflow.EffectCreate:
		return func(ctx context.Context) AddResult {
			res, err := w.api.CreateSubscription(ctx, effect.URL, effect.FolderIDs)
			return AddResult{Kind: effect.Kind, Create: res, Err: err}
		}
	case addflow.EffectCreateFolder:
		return func(ctx context.Context) AddResult {
			folder, err := w.api.CreateFolder(ctx, effect.FolderName)
			return AddResult{Kind: effect.Kind, Folder: folder, Err: err}
		}
	default:
		return nil
	}
}

type FolderRenameResult struct {
	Folder *library.Folder
	Err    error
}

// RenameFolderRequest returns the request closure renaming a folder,
// typically the one just created inline during an add.
func (w *Workspace) RenameFolderRequest(id int64, name string) func(ctx context.Context) FolderRenameResult {
	return func(ctx context.Context) FolderRenameResult {
		folder, err := w.api.RenameFolder(ctx, id, name)
		return FolderRenameResult{Folder: folder, Err: err}
	}
}

// HandleFolderRename applies the server-confirmed folder name.
func (w *Workspace) HandleFolderRename(res FolderRenameResult) {
	if res.Err != nil {
		w.handleRequestError(res.Err, "Could not rename the folder")
		return
	}
	w.markOnline()
	if res.Folder != nil {
		w.lib.RenameFolder(res.Folder.ID, res.Folder.Name)
		w.pushNotice(NoticeInfo, fmt.Sprintf("Folder renamed to %s", res.Folder.Name), false)
	}
}

type AddResult struct {
	Kind      addflow.EffectKind
	Discovery feedapi.Discovery
	Create    feedapi.CreateResult
	Folder    *library.Folder
	Err       error
}

// HandleAddResult feeds an async outcome back into the machine and
// returns the follow-up effect, if any. A completed create activates
// the subscription as the current scope and raises a success notice.
func (w *Workspace) HandleAddResult(res AddResult) addflow.Effect {
	switch res.Kind {
	case addflow.EffectDiscover:
		if res.Err == nil {
			w.markOnline()
		}
		return w.add.HandleDiscovery(res.Discovery, res.Err)
	case addflow.EffectCreate:
		effect, completed := w.add.HandleCreate(res.Create, res.Err)
		if completed != nil && completed.Feed != nil {
			w.markOnline()
			w.scope = library.FeedScope(completed.Feed.ID)
			text := completed.Message
			if text == "" {
				if completed.Duplicate {
					text = fmt.Sprintf("Updated %s", completed.Feed.DisplayTitle())
				} else {
					text = fmt.Sprintf("Subscribed to %s", completed.Feed.DisplayTitle())
				}
			}
			w.pushNotice(NoticeInfo, text, false)
		}
		return effect
	case addflow.EffectCreateFolder:
		if res.Err == nil {
			w.markOnline()
		}
		w.add.HandleFolderCreated(res.Folder, res.Err)
		return addflow.Effect{Kind: addflow.EffectNone}
	default:
		return addflow.Effect{Kind: addflow.EffectNone}
	}
}
