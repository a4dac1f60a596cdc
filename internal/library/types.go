package library

import (
	"strings"
	"time"
)

// Subscription is a feed the user follows, together with the items
// loaded for it so far. Items are kept newest first.
type Subscription struct {
	ID              int64
	Title           string
	CustomTitle     string
	FeedURL         string
	FolderIDs       []int64
	LastFetchedAt   time.Time
	LastFetchStatus string
	LastFetchError  string
	CreatedAt       time.Time
	Items           []*Item
}

// DisplayTitle prefers the user's override title over the feed's own.
func (s *Subscription) DisplayTitle() string {
	if t := strings.TrimSpace(s.CustomTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return s.FeedURL
}

// InFolder reports whether the subscription belongs to the given folder.
func (s *Subscription) InFolder(folderID int64) bool {
	for _, id := range s.FolderIDs {
		if id == folderID {
			return true
		}
	}
	return false
}

// Item is a single article. Nil ReadAt means unread, nil SavedAt
// means not saved.
type Item struct {
	ID          int64
	FeedID      int64
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt time.Time
	CreatedAt   time.Time
	ReadAt      *time.Time
	SavedAt     *time.Time
}

// EffectiveTime is the published timestamp, falling back to creation
// time for feeds that never set one.
func (it *Item) EffectiveTime() time.Time {
	if !it.PublishedAt.IsZero() {
		return it.PublishedAt
	}
	return it.CreatedAt
}

type Folder struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reserved folder names collide with the built-in navigational scopes.
var reservedFolderNames = []string{"all", "uncategorized"}

func IsReservedFolderName(name string) bool {
	name = strings.TrimSpace(name)
	for _, reserved := range reservedFolderNames {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}
