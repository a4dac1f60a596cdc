package feedapi

import (
	"time"

	"github.com/glabrego/feedhaven/internal/library"
)

// Wire representations of the remote service's JSON. Converted to
// library types at the client boundary so the rest of the program
// never sees json tags.

type feedJSON struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	CustomTitle     string     `json:"custom_title"`
	FeedURL         string     `json:"feed_url"`
	FolderIDs       []int64    `json:"folder_ids"`
	LastFetchedAt   time.Time  `json:"last_fetched_at"`
	LastFetchStatus string     `json:"last_fetch_status"`
	LastFetchError  string     `json:"last_fetch_error"`
	CreatedAt       time.Time  `json:"created_at"`
	Items           []itemJSON `json:"items"`
}

type itemJSON struct {
	ID          int64      `json:"id"`
	FeedID      int64      `json:"feed_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	PublishedAt time.Time  `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
	SavedAt     *time.Time `json:"saved_at"`
}

type folderJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f feedJSON) toLibrary() *library.Subscription {
	feed := &library.Subscription{
		ID:              f.ID,
		Title:           f.Title,
		CustomTitle:     f.CustomTitle,
		FeedURL:         f.FeedURL,
		FolderIDs:       f.FolderIDs,
		LastFetchedAt:   f.LastFetchedAt,
		LastFetchStatus: f.LastFetchStatus,
		LastFetchError:  f.LastFetchError,
		CreatedAt:       f.CreatedAt,
	}
	for _, item := range f.Items {
		feed.Items = append(feed.Items, item.toLibrary())
	}
	return feed
}

func (i itemJSON) toLibrary() *library.Item {
	return &library.Item{
		ID:          i.ID,
		FeedID:      i.FeedID,
		Title:       i.Title,
		URL:         i.URL,
		Content:     i.Content,
		Author:      i.Author,
		PublishedAt: i.PublishedAt,
		CreatedAt:   i.CreatedAt,
		ReadAt:      i.ReadAt,
		SavedAt:     i.SavedAt,
	}
}

func (f folderJSON) toLibrary() *library.Folder {
	return &library.Folder{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}

// DiscoveryStatus classifies what probing a site turned up.
type DiscoveryStatus string

const (
	DiscoverySingle    DiscoveryStatus = "single"
	DiscoveryMultiple  DiscoveryStatus = "multiple"
	DiscoveryDuplicate DiscoveryStatus = "duplicate"
)

// Candidate is one feed URL found while probing a site.
type Candidate struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Method         string `json:"method"` // direct, alternate, guess
	Duplicate      bool   `json:"duplicate"`
	ExistingFeedID int64  `json:"existing_feed_id"`
}

type Discovery struct {
	Status     DiscoveryStatus `json:"status"`
	Candidates []Candidate     `json:"candidates"`
}

// Addable returns the candidates that do not duplicate an existing
// subscription.
func (d Discovery) Addable() []Candidate {
	var out []Candidate
	for _, c := range d.Candidates {
		if !c.Duplicate {
			out = append(out, c)
		}
	}
	return out
}

// CreateResult is the server's answer to a create request. When the
// URL was already subscribed server-side, Duplicate is set and Feed
// carries the existing subscription with any folders merged in.
type CreateResult struct {
	Feed              *library.Subscription
	Duplicate         bool
	MergedFolderCount int
	Message           string
}

// Page is one slice of a scope's item listing. An empty NextCursor
// with HasMore false means the scope is exhausted.
type Page struct {
	Items      []*library.Item
	NextCursor string
	HasMore    bool
}

// RefreshResult reports the outcome of refreshing one subscription.
type RefreshResult struct {
	FeedID       int64  `json:"feed_id"`
	NewItemCount int    `json:"new_item_count"`
	Status       string `json:"status"`
	Error        string `json:"error"`
}
