// Package snapshot persists the full subscription collection to a
// local sqlite database so the workspace stays readable offline, plus
// a small key/value table for UI preferences.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glabrego/feedhaven/internal/library"
)

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS feeds (
  id INTEGER PRIMARY KEY,
  title TEXT NOT NULL,
  custom_title TEXT,
  feed_url TEXT NOT NULL,
  folder_ids TEXT,
  last_fetched_at TEXT,
  last_fetch_status TEXT,
  last_fetch_error TEXT,
  created_at TEXT,
  snapshot_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY,
  feed_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  content TEXT,
  author TEXT,
  published_at TEXT,
  created_at TEXT,
  read_at TEXT,
  saved_at TEXT
);
CREATE TABLE IF NOT EXISTS folders (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TEXT,
  updated_at TEXT
);
CREATE TABLE IF NOT EXISTS prefs (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveLibrary replaces the stored snapshot with the current
// collection. Called after every successful collection mutation; the
// snapshot is a whole, not a delta, so replacement keeps it honest.
func (s *Store) SaveLibrary(ctx context.Context, feeds []*library.Subscription, folders []*library.Folder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"feeds", "items", "folders"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	feedStmt, err := tx.PrepareContext(ctx, `
INSERT INTO feeds (id, title, custom_title, feed_url, folder_ids, last_fetched_at, last_fetch_status, last_fetch_error, created_at, snapshot_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare feed statement: %w", err)
	}
	defer feedStmt.Close()

	itemStmt, err := tx.PrepareContext(ctx, `
INSERT INTO items (id, feed_id, title, url, content, author, published_at, created_at, read_at, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare item statement: %w", err)
	}
	defer itemStmt.Close()

	for _, feed := range feeds {
		_, err := feedStmt.ExecContext(ctx,
			feed.ID,
			feed.Title,
			feed.CustomTitle,
			feed.FeedURL,
			encodeIDs(feed.FolderIDs),
			encodeTime(feed.LastFetchedAt),
			feed.LastFetchStatus,
			feed.LastFetchError,
			encodeTime(feed.CreatedAt),
			now,
		)
		if err != nil {
			return fmt.Errorf("save feed %d: %w", feed.ID, err)
		}
		for _, item := range feed.Items {
			_, err := itemStmt.ExecContext(ctx,
				item.ID,
				item.FeedID,
				item.Title,
				item.URL,
				item.Content,
				item.Author,
				encodeTime(item.PublishedAt),
				encodeTime(item.CreatedAt),
				encodeNullableTime(item.ReadAt),
				encodeNullableTime(item.SavedAt),
			)
			if err != nil {
				return fmt.Errorf("save item %d: %w", item.ID, err)
			}
		}
	}

	for _, folder := range folders {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO folders (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
			folder.ID, folder.Name, encodeTime(folder.CreatedAt), encodeTime(folder.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("save folder %d: %w", folder.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadLibrary reads back the last known-good snapshot.
func (s *Store) LoadLibrary(ctx context.Context) ([]*library.Subscription, []*library.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, custom_title, feed_url, folder_ids, last_fetched_at, last_fetch_status, last_fetch_error, created_at
FROM feeds
`)
	if err != nil {
		return nil, nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*library.Subscription)
	var feeds []*library.Subscription
	for rows.Next() {
		var feed library.Subscription
		var folderIDs, lastFetchedAt, createdAt string
		if err := rows.Scan(
			&feed.ID,
			&feed.Title,
			&feed.CustomTitle,
			&feed.FeedURL,
			&folderIDs,
			&lastFetchedAt,
			&feed.LastFetchStatus,
			&feed.LastFetchError,
			&createdAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan feed: %w", err)
		}
		feed.FolderIDs = decodeIDs(folderIDs)
		feed.LastFetchedAt = decodeTime(lastFetchedAt)
		feed.CreatedAt = decodeTime(createdAt)
		feeds = append(feeds, &feed)
		byID[feed.ID] = &feed
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("feed rows: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx, `
SELECT id, feed_id, title, url, content, author, published_at, created_at, read_at, saved_at
FROM items
`)
	if err != nil {
		return nil, nil, fmt.Errorf("query items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item library.Item
		var publishedAt, createdAt string
		var readAt, savedAt sql.NullString
		if err := itemRows.Scan(
			&item.ID,
			&item.FeedID,
			&item.Title,
			&item.URL,
			&item.Content,
			&item.Author,
			&publishedAt,
			&createdAt,
			&readAt,
			&savedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan item: %w", err)
		}
		item.PublishedAt = decodeTime(publishedAt)
		item.CreatedAt = decodeTime(createdAt)
		item.ReadAt = decodeNullableTime(readAt)
		item.SavedAt = decodeNullableTime(savedAt)
		if feed := byID[item.FeedID]; feed != nil {
			feed.Items = append(feed.Items, &item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("item rows: %w", err)
	}

	folderRows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM folders")
	if err != nil {
		return nil, nil, fmt.Errorf("query folders: %w", err)
	}
	defer folderRows.Close()

	var folders []*library.Folder
	for folderRows.Next() {
		var folder library.Folder
		var createdAt, updatedAt string
		if err := folderRows.Scan(&folder.ID, &folder.Name, &createdAt, &updatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan folder: %w", err)
		}
		folder.CreatedAt = decodeTime(createdAt)
		folder.UpdatedAt = decodeTime(updatedAt)
		folders = append(folders, &folder)
	}
	if err := folderRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("folder rows: %w", err)
	}

	return feeds, folders, nil
}

// SetPref writes one UI preference by key.
func (s *Store) SetPref(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO prefs (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`, key, value)
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}

// GetPref reads one UI preference; missing keys return "".
func (s *Store) GetPref(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pref %s: %w", key, err)
	}
	return value, nil
}
