package feedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glabrego/feedhaven/internal/library"
)

// Client talks to the remote feed service. It is a pure
// request/response wrapper and never touches workspace state.
type Client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
}

func NewClient(baseURL, email, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		http:     httpClient,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/authentication.json", nil, nil, "authenticate")
}

// DiscoverFeeds asks the service to probe a site for subscribable
// feeds and classify the outcome.
func (c *Client) DiscoverFeeds(ctx context.Context, siteURL string) (Discovery, error) {
	var out Discovery
	body := map[string]string{"url": siteURL}
	if err := c.do(ctx, http.MethodPost, "/discover.json", body, &out, "discover feeds"); err != nil {
		return Discovery{}, err
	}
	return out, nil
}

// CreateSubscription subscribes to a feed URL with an initial folder
// assignment. The server reports a duplicate instead of failing when
// the URL is already subscribed; folders are merged server-side.
func (c *Client) CreateSubscription(ctx context.Context, feedURL string, folderIDs []int64) (CreateResult, error) {
	body := map[string]any{"feed_url": feedURL, "folder_ids": folderIDs}
	var wire struct {
		Feed              feedJSON `json:"feed"`
		Duplicate         bool     `json:"duplicate"`
		MergedFolderCount int      `json:"merged_folder_count"`
		Message           string   `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/subscriptions.json", body, &wire, "create subscription"); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{
		Feed:              wire.Feed.toLibrary(),
		Duplicate:         wire.Duplicate,
		MergedFolderCount: wire.MergedFolderCount,
		Message:           wire.Message,
	}, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/subscriptions/%d.json", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "delete subscription")
}

func (c *Client) RenameSubscription(ctx context.Context, id int64, customTitle string) (*library.Subscription, error) {
	path := fmt.Sprintf("/subscriptions/%d.json", id)
	body := map[string]string{"custom_title": customTitle}
	var wire feedJSON
	if err := c.do(ctx, http.MethodPatch, path, body, &wire, "rename subscription"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

func (c *Client) SetSubscriptionFolders(ctx context.Context, id int64, folderIDs []int64) (*library.Subscription, error) {
	path := fmt.Sprintf("/subscriptions/%d.json", id)
	body := map[string]any{"folder_ids": folderIDs}
	var wire feedJSON
	if err := c.do(ctx, http.MethodPatch, path, body, &wire, "set subscription folders"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

func (c *Client) SetItemRead(ctx context.Context, id int64, read bool) (*library.Item, error) {
	path := fmt.Sprintf("/items/%d.json", id)
	body := map[string]bool{"read": read}
	var wire itemJSON
	if err := c.do(ctx, http.MethodPatch, path, body, &wire, "set item read"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

func (c *Client) SetItemSaved(ctx context.Context, id int64, saved bool) (*library.Item, error) {
	path := fmt.Sprintf("/items/%d.json", id)
	body := map[string]bool{"saved": saved}
	var wire itemJSON
	if err := c.do(ctx, http.MethodPatch, path, body, &wire, "set item saved"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

// RefreshAll triggers a server-side fetch of every subscription and
// returns the per-subscription outcomes.
func (c *Client) RefreshAll(ctx context.Context) ([]RefreshResult, error) {
	var wire struct {
		Results []RefreshResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/refresh.json", nil, &wire, "refresh subscriptions"); err != nil {
		return nil, err
	}
	return wire.Results, nil
}

// ListSubscriptions fetches the authoritative subscription snapshot.
func (c *Client) ListSubscriptions(ctx context.Context) ([]*library.Subscription, error) {
	var wire []feedJSON
	if err := c.do(ctx, http.MethodGet, "/subscriptions.json", nil, &wire, "list subscriptions"); err != nil {
		return nil, err
	}
	feeds := make([]*library.Subscription, 0, len(wire))
	for _, f := range wire {
		feeds = append(feeds, f.toLibrary())
	}
	return feeds, nil
}

func (c *Client) ListFolders(ctx context.Context) ([]*library.Folder, error) {
	var wire []folderJSON
	if err := c.do(ctx, http.MethodGet, "/folders.json", nil, &wire, "list folders"); err != nil {
		return nil, err
	}
	folders := make([]*library.Folder, 0, len(wire))
	for _, f := range wire {
		folders = append(folders, f.toLibrary())
	}
	return folders, nil
}

func (c *Client) CreateFolder(ctx context.Context, name string) (*library.Folder, error) {
	body := map[string]string{"name": name}
	var wire folderJSON
	if err := c.do(ctx, http.MethodPost, "/folders.json", body, &wire, "create folder"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

func (c *Client) RenameFolder(ctx context.Context, id int64, name string) (*library.Folder, error) {
	path := fmt.Sprintf("/folders/%d.json", id)
	body := map[string]string{"name": name}
	var wire folderJSON
	if err := c.do(ctx, http.MethodPatch, path, body, &wire, "rename folder"); err != nil {
		return nil, err
	}
	return wire.toLibrary(), nil
}

// FetchPage loads one page of items for a scope. Cursor is the opaque
// continuation token from the previous page, empty for the first.
func (c *Client) FetchPage(ctx context.Context, scope library.Scope, cursor string, limit int) (Page, error) {
	if limit < 1 {
		limit = 50
	}
	q := make(url.Values)
	q.Set("scope", scope.Key())
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var wire struct {
		Items      []itemJSON `json:"items"`
		NextCursor string     `json:"next_cursor"`
		HasMore    bool       `json:"has_more"`
	}
	if err := c.do(ctx, http.MethodGet, "/items.json?"+q.Encode(), nil, &wire, "fetch items"); err != nil {
		return Page{}, err
	}

	page := Page{NextCursor: wire.NextCursor, HasMore: wire.HasMore}
	for _, item := range wire.Items {
		page.Items = append(page.Items, item.toLibrary())
	}
	return page, nil
}

// MarkAllRead marks every item in a scope read server-side and returns
// the count the server actually marked.
func (c *Client) MarkAllRead(ctx context.Context, scope library.Scope) (int, error) {
	body := map[string]string{"scope": scope.Key()}
	var wire struct {
		MarkedCount int `json:"marked_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/items/mark_all_read.json", body, &wire, "mark all read"); err != nil {
		return 0, err
	}
	return wire.MarkedCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, op string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.SetBasicAuth(c.email, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", op, decodeError(resp, op))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
