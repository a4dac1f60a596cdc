// Package mutate applies local-first edits to the library and
// reconciles them with the remote service: optimistic value first,
// request second, exact rollback on failure.
package mutate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/glabrego/feedhaven/internal/library"
)

// Kind names a mutation family. At most one mutation of a given kind
// per entity id is in flight at a time.
type Kind string

const (
	KindRead    Kind = "read"
	KindSaved   Kind = "saved"
	KindRename  Kind = "rename"
	KindFolders Kind = "folders"
	KindDelete  Kind = "delete"
	KindMarkAll Kind = "mark-all"
)

type inflightKey struct {
	kind Kind
	id   int64
}

// Client is the slice of the remote API the coordinator needs.
type Client interface {
	SetItemRead(ctx context.Context, id int64, read bool) (*library.Item, error)
	SetItemSaved(ctx context.Context, id int64, saved bool) (*library.Item, error)
	RenameSubscription(ctx context.Context, id int64, customTitle string) (*library.Subscription, error)
	SetSubscriptionFolders(ctx context.Context, id int64, folderIDs []int64) (*library.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, scope library.Scope) (int, error)
}

// Op is one started mutation. Request performs the network call off
// the program loop; its Result must come back through Finish on the
// loop, which either confirms with the server's values or rolls back.
type Op struct {
	Kind     Kind
	EntityID int64
	Request  func(ctx context.Context) Result

	confirm func(Result)
	revert  func()
}

// Result carries a finished request back to the loop.
type Result struct {
	Op    *Op
	Err   error
	Item  *library.Item
	Feed  *library.Subscription
	Count int
}

type Coordinator struct {
	lib      *library.Library
	api      Client
	log      *slog.Logger
	inflight map[inflightKey]struct{}
	now      func() time.Time
}

func NewCoordinator(lib *library.Library, api Client, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		lib:      lib,
		api:      api,
		log:      log,
		inflight: make(map[inflightKey]struct{}),
		now:      time.Now,
	}
}

// InFlight reports whether a mutation of the given kind is outstanding
// for the entity.
func (c *Coordinator) InFlight(kind Kind, id int64) bool {
	_, ok := c.inflight[inflightKey{kind, id}]
	return ok
}

func (c *Coordinator) begin(kind Kind, id int64) bool {
	key := inflightKey{kind, id}
	if _, ok := c.inflight[key]; ok {
		// A second request for the same entity is dropped, not
		// queued, until the first resolves.
		c.log.Debug("mutation dropped, already in flight", "kind", kind, "id", id)
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

// Finish resolves an op on the program loop. Rollback on failure is
// exact: the pre-mutation value, including nil timestamps, comes back.
func (c *Coordinator) Finish(res Result) {
	op := res.Op
	if op == nil {
		return
	}
	delete(c.inflight, inflightKey{op.Kind, op.EntityID})
	if res.Err != nil {
		c.log.Warn("mutation failed, rolling back", "kind", op.Kind, "id", op.EntityID, "err", res.Err)
		if op.revert != nil {
			op.revert()
		}
		return
	}
	if op.confirm != nil {
		op.confirm(res)
	}
}

// MarkRead flips an item's read timestamp optimistically. Returns
// false when the item is unknown or a read mutation for it is already
// in flight.
func (c *Coordinator) MarkRead(id int64, read bool) (*Op, bool) {
	_, item := c.lib.Item(id)
	if item == nil || !c.begin(KindRead, id) {
		return nil, false
	}

	previous := item.ReadAt
	if read {
		now := c.now()
		item.ReadAt = &now
	} else {
		item.ReadAt = nil
	}

	op := &Op{Kind: KindRead, EntityID: id}
	op.revert = func() { item.ReadAt = previous }
	op.confirm = func(res Result) {
		if res.Item != nil {
			item.ReadAt = res.Item.ReadAt
		}
	}
	op.Request = func(ctx context.Context) Result {
		server, err := c.api.SetItemRead(ctx, id, read)
		return Result{Op: op, Err: err, Item: server}
	}
	return op, true
}

// ToggleSaved flips an item's saved timestamp optimistically.
func (c *Coordinator) ToggleSaved(id int64) (*Op, bool) {
	_, item := c.lib.Item(id)
	if item == nil || !c.begin(KindSaved, id) {
		return nil, false
	}

	previous := item.SavedAt
	saved := previous == nil
	if saved {
		now := c.now()
		item.SavedAt = &now
	} else {
		item.SavedAt = nil
	}

	op := &Op{Kind: KindSaved, EntityID: id}
	op.revert = func() { item.SavedAt = previous }
	op.confirm = func(res Result) {
		if res.Item != nil {
			item.SavedAt = res.Item.SavedAt
		}
	}
	op.Request = func(ctx context.Context) Result {
		server, err := c.api.SetItemSaved(ctx, id, saved)
		return Result{Op: op, Err: err, Item: server}
	}
	return op, true
}

// Rename sets a subscription's override title optimistically. The
// server's confirmed title may legitimately differ (trimming).
func (c *Coordinator) Rename(id int64, customTitle string) (*Op, bool) {
	feed := c.lib.Feed(id)
	if feed == nil || !c.begin(KindRename, id) {
		return nil, false
	}

	previous := feed.CustomTitle
	feed.CustomTitle = customTitle

	op := &Op{Kind: KindRename, EntityID: id}
	op.revert = func() { feed.CustomTitle = previous }
	op.confirm = func(res Result) {
		if res.Feed != nil {
			feed.CustomTitle = res.Feed.CustomTitle
		}
	}
	op.Request = func(ctx context.Context) Result {
		server, err := c.api.RenameSubscription(ctx, id, customTitle)
		return Result{Op: op, Err: err, Feed: server}
	}
	return op, true
}

// SetFolders replaces a subscription's folder membership optimistically.
func (c *Coordinator) SetFolders(id int64, folderIDs []int64) (*Op, bool) {
	feed := c.lib.Feed(id)
	if feed == nil || !c.begin(KindFolders, id) {
		return nil, false
	}

	previous := feed.FolderIDs
	feed.FolderIDs = folderIDs

	op := &Op{Kind: KindFolders, EntityID: id}
	op.revert = func() { feed.FolderIDs = previous }
	op.confirm = func(res Result) {
		if res.Feed != nil {
			feed.FolderIDs = res.Feed.FolderIDs
		}
	}
	op.Request = func(ctx context.Context) Result {
		server, err := c.api.SetSubscriptionFolders(ctx, id, folderIDs)
		return Result{Op: op, Err: err, Feed: server}
	}
	return op, true
}

// Delete removes a subscription optimistically; rollback reinserts it
// with all loaded items intact.
func (c *Coordinator) Delete(id int64) (*Op, bool) {
	if c.lib.Feed(id) == nil || !c.begin(KindDelete, id) {
		return nil, false
	}

	removed := c.lib.RemoveFeed(id)

	op := &Op{Kind: KindDelete, EntityID: id}
	op.revert = func() { c.lib.InsertFeed(removed) }
	op.Request = func(ctx context.Context) Result {
		err := c.api.DeleteSubscription(ctx, id)
		return Result{Op: op, Err: err}
	}
	return op, true
}

// MarkAllRead marks every unread item inside a scope read, applying
// the scope predicate uniformly across the in-memory collection before
// the request goes out. The confirmed Result carries the count the
// server reports, which the caller's notice uses instead of the
// optimistic count.
func (c *Coordinator) MarkAllRead(scope library.Scope) (*Op, int, bool) {
	if !c.begin(KindMarkAll, 0) {
		return nil, 0, false
	}

	now := c.now()
	var marked []*library.Item
	for _, feed := range c.lib.Feeds() {
		if !scope.ContainsFeed(feed) {
			continue
		}
		for _, item := range feed.Items {
			if item.ReadAt == nil && scope.ContainsItem(feed, item) {
				item.ReadAt = &now
				marked = append(marked, item)
			}
		}
	}

	op := &Op{Kind: KindMarkAll}
	op.revert = func() {
		for _, item := range marked {
			item.ReadAt = nil
		}
	}
	op.Request = func(ctx context.Context) Result {
		count, err := c.api.MarkAllRead(ctx, scope)
		return Result{Op: op, Err: err, Count: count}
	}
	return op, len(marked), true
}
