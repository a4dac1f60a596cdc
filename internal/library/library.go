package library

import (
	"sort"
	"strings"
)

// Library is the canonical in-memory collection of subscriptions and
// folders. It is owned by the workspace and only ever touched from the
// single program loop; it does no locking of its own.
type Library struct {
	feeds   []*Subscription
	folders []*Folder

	feedsByID  map[int64]*Subscription
	feedsByURL map[string]*Subscription
	itemsByID  map[int64]*Item
}

func New() *Library {
	lib := &Library{}
	lib.reindex()
	return lib
}

func (l *Library) Feeds() []*Subscription { return l.feeds }
func (l *Library) Folders() []*Folder     { return l.folders }

func (l *Library) Feed(id int64) *Subscription { return l.feedsByID[id] }

func (l *Library) Folder(id int64) *Folder {
	for _, f := range l.folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func (l *Library) FolderByName(name string) *Folder {
	for _, f := range l.folders {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// Item returns an item and its owning subscription, or nils when the
// id is unknown.
func (l *Library) Item(id int64) (*Subscription, *Item) {
	item, ok := l.itemsByID[id]
	if !ok {
		return nil, nil
	}
	return l.feedsByID[item.FeedID], item
}

// FindByURL looks up a subscription by canonical feed URL. The index
// is rebuilt on every collection change, so lookups are O(1).
func (l *Library) FindByURL(canonical string) *Subscription {
	return l.feedsByURL[canonical]
}

func (l *Library) IsDuplicateURL(canonical string) bool {
	return l.FindByURL(canonical) != nil
}

func (l *Library) InsertFeed(feed *Subscription) {
	if feed == nil || l.feedsByID[feed.ID] != nil {
		return
	}
	l.feeds = append(l.feeds, feed)
	l.reindex()
}

func (l *Library) RemoveFeed(id int64) *Subscription {
	for i, feed := range l.feeds {
		if feed.ID == id {
			l.feeds = append(l.feeds[:i], l.feeds[i+1:]...)
			l.reindex()
			return feed
		}
	}
	return nil
}

func (l *Library) SetFolders(folders []*Folder) {
	l.folders = folders
	l.sortFolders()
}

// RenameFolder applies a server-confirmed folder name in place.
func (l *Library) RenameFolder(id int64, name string) *Folder {
	folder := l.Folder(id)
	if folder == nil {
		return nil
	}
	folder.Name = name
	l.sortFolders()
	return folder
}

func (l *Library) AddFolder(folder *Folder) {
	if folder == nil || l.Folder(folder.ID) != nil {
		return
	}
	l.folders = append(l.folders, folder)
	l.sortFolders()
}

// MergeItems appends fetched items into their owning subscriptions,
// deduplicating by item id. Re-merging an already seen page is a
// no-op, so the operation is idempotent and order-independent.
// Returns the number of items actually inserted.
func (l *Library) MergeItems(items []*Item) int {
	inserted := 0
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, seen := l.itemsByID[item.ID]; seen {
			continue
		}
		feed := l.feedsByID[item.FeedID]
		if feed == nil {
			continue
		}
		feed.Items = append(feed.Items, item)
		l.itemsByID[item.ID] = item
		inserted++
	}
	if inserted > 0 {
		for _, feed := range l.feeds {
			sortItems(feed.Items)
		}
	}
	return inserted
}

// ApplySnapshot replaces each subscription's authoritative fields with
// the server's version after a full refresh. Items already loaded
// locally are kept and unioned by id with whatever the snapshot
// carries; the local copy wins because it represents already-merged
// state (read/saved timestamps applied optimistically).
func (l *Library) ApplySnapshot(serverFeeds []*Subscription) {
	merged := make([]*Subscription, 0, len(serverFeeds))
	for _, server := range serverFeeds {
		local := l.feedsByID[server.ID]
		if local == nil {
			merged = append(merged, server)
			continue
		}
		local.Title = server.Title
		local.CustomTitle = server.CustomTitle
		local.FeedURL = server.FeedURL
		local.FolderIDs = server.FolderIDs
		local.LastFetchedAt = server.LastFetchedAt
		local.LastFetchStatus = server.LastFetchStatus
		local.LastFetchError = server.LastFetchError
		local.CreatedAt = server.CreatedAt

		known := make(map[int64]bool, len(local.Items))
		for _, item := range local.Items {
			known[item.ID] = true
		}
		for _, item := range server.Items {
			if !known[item.ID] {
				local.Items = append(local.Items, item)
			}
		}
		sortItems(local.Items)
		merged = append(merged, local)
	}
	l.feeds = merged
	l.reindex()
}

// PatchFeed updates the fields the server reports after a duplicate
// create is merged remotely. Idempotent: applying the same server
// response twice leaves the subscription unchanged.
func (l *Library) PatchFeed(id int64, folderIDs []int64, customTitle, fetchStatus string) *Subscription {
	feed := l.feedsByID[id]
	if feed == nil {
		return nil
	}
	if folderIDs != nil {
		feed.FolderIDs = folderIDs
	}
	if customTitle != "" {
		feed.CustomTitle = customTitle
	}
	if fetchStatus != "" {
		feed.LastFetchStatus = fetchStatus
	}
	return feed
}

// UnreadCount counts items without a read timestamp inside a scope.
func (l *Library) UnreadCount(scope Scope) int {
	count := 0
	for _, feed := range l.feeds {
		if !scope.ContainsFeed(feed) {
			continue
		}
		for _, item := range feed.Items {
			if item.ReadAt == nil && scope.ContainsItem(feed, item) {
				count++
			}
		}
	}
	return count
}

// ItemsInScope returns the visible items for a scope, newest first.
func (l *Library) ItemsInScope(scope Scope) []*Item {
	var out []*Item
	for _, feed := range l.feeds {
		if !scope.ContainsFeed(feed) {
			continue
		}
		for _, item := range feed.Items {
			if scope.ContainsItem(feed, item) {
				out = append(out, item)
			}
		}
	}
	sortItems(out)
	return out
}

func (l *Library) reindex() {
	l.feedsByID = make(map[int64]*Subscription, len(l.feeds))
	l.feedsByURL = make(map[string]*Subscription, len(l.feeds))
	l.itemsByID = make(map[int64]*Item)
	for _, feed := range l.feeds {
		l.feedsByID[feed.ID] = feed
		if canonical, ok := NormalizeURL(feed.FeedURL); ok {
			l.feedsByURL[canonical] = feed
		}
		for _, item := range feed.Items {
			l.itemsByID[item.ID] = item
		}
	}
	l.sortFeeds()
}

func (l *Library) sortFeeds() {
	sort.SliceStable(l.feeds, func(i, j int) bool {
		ti := strings.ToLower(l.feeds[i].DisplayTitle())
		tj := strings.ToLower(l.feeds[j].DisplayTitle())
		if ti != tj {
			return ti < tj
		}
		return l.feeds[i].ID < l.feeds[j].ID
	})
}

func (l *Library) sortFolders() {
	sort.SliceStable(l.folders, func(i, j int) bool {
		ni := strings.ToLower(l.folders[i].Name)
		nj := strings.ToLower(l.folders[j].Name)
		if ni != nj {
			return ni < nj
		}
		return l.folders[i].ID < l.folders[j].ID
	})
}

func sortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti := items[i].EffectiveTime()
		tj := items[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].ID < items[j].ID
	})
}
