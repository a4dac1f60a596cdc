package library

import "fmt"

// ScopeKind discriminates the navigational filters the workspace
// understands. Folder and Feed carry an id; the rest stand alone.
type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	ScopeFolder
	ScopeFeed
	ScopeUncategorized
	// ScopeSaved is a virtual scope: membership is a property of the
	// item (saved or not), not of the owning subscription.
	ScopeSaved
)

type Scope struct {
	Kind     ScopeKind
	FolderID int64
	FeedID   int64
}

func NoScope() Scope             { return Scope{Kind: ScopeNone} }
func AllScope() Scope            { return Scope{Kind: ScopeAll} }
func FolderScope(id int64) Scope { return Scope{Kind: ScopeFolder, FolderID: id} }
func FeedScope(id int64) Scope   { return Scope{Kind: ScopeFeed, FeedID: id} }
func UncategorizedScope() Scope  { return Scope{Kind: ScopeUncategorized} }
func SavedScope() Scope          { return Scope{Kind: ScopeSaved} }

// Key is a stable string identity for cache maps and wire requests.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeAll:
		return "all"
	case ScopeFolder:
		return fmt.Sprintf("folder:%d", s.FolderID)
	case ScopeFeed:
		return fmt.Sprintf("feed:%d", s.FeedID)
	case ScopeUncategorized:
		return "uncategorized"
	case ScopeSaved:
		return "saved"
	default:
		return "none"
	}
}

// ParseScopeKey is the inverse of Key. Unknown or malformed keys
// report ok=false.
func ParseScopeKey(key string) (Scope, bool) {
	switch key {
	case "all":
		return AllScope(), true
	case "uncategorized":
		return UncategorizedScope(), true
	case "saved":
		return SavedScope(), true
	case "none":
		return NoScope(), true
	}
	var id int64
	if _, err := fmt.Sscanf(key, "folder:%d", &id); err == nil {
		return FolderScope(id), true
	}
	if _, err := fmt.Sscanf(key, "feed:%d", &id); err == nil {
		return FeedScope(id), true
	}
	return Scope{}, false
}

// ContainsFeed reports whether the subscription falls inside the scope.
func (s Scope) ContainsFeed(feed *Subscription) bool {
	switch s.Kind {
	case ScopeAll, ScopeSaved:
		return true
	case ScopeFolder:
		return feed.InFolder(s.FolderID)
	case ScopeFeed:
		return feed.ID == s.FeedID
	case ScopeUncategorized:
		return len(feed.FolderIDs) == 0
	default:
		return false
	}
}

// ContainsItem applies the scope predicate to a single item of the
// given subscription.
func (s Scope) ContainsItem(feed *Subscription, item *Item) bool {
	if !s.ContainsFeed(feed) {
		return false
	}
	if s.Kind == ScopeSaved {
		return item.SavedAt != nil
	}
	return true
}
