package pagecache

import (
	"errors"
	"testing"

	"github.com/glabrego/feedhaven/internal/library"
)

func TestCache_UnknownScopeIsUninitialized(t *testing.T) {
	cache := New()
	state := cache.StateFor(library.FolderScope(42))
	if state.Initialized || state.Loading || state.Err != nil || state.Cursor != "" || state.HasMore {
		t.Fatalf("expected zero state, got %+v", state)
	}
}

func TestCache_CompleteLoadRoundTrip(t *testing.T) {
	cache := New()
	scope := library.AllScope()

	if !cache.BeginLoad(scope) {
		t.Fatal("BeginLoad refused on fresh scope")
	}
	cache.CompleteLoad(scope, "cursor-2", true)

	state := cache.StateFor(scope)
	if !state.Initialized || state.Loading || state.Err != nil {
		t.Fatalf("unexpected flags: %+v", state)
	}
	if state.Cursor != "cursor-2" || !state.HasMore {
		t.Fatalf("cursor/hasMore not applied together: %+v", state)
	}
}

func TestCache_BeginLoadSerializesPerScope(t *testing.T) {
	cache := New()
	scope := library.FeedScope(1)

	if !cache.BeginLoad(scope) {
		t.Fatal("first BeginLoad refused")
	}
	if cache.BeginLoad(scope) {
		t.Fatal("second BeginLoad for same scope should be refused")
	}
	// A different scope may load concurrently.
	if !cache.BeginLoad(library.FeedScope(2)) {
		t.Fatal("BeginLoad for a different scope should proceed")
	}

	cache.CompleteLoad(scope, "c", false)
	if !cache.BeginLoad(scope) {
		t.Fatal("BeginLoad should proceed again after completion")
	}
}

func TestCache_FailLoadPreservesCursor(t *testing.T) {
	cache := New()
	scope := library.AllScope()

	cache.BeginLoad(scope)
	cache.CompleteLoad(scope, "page-3", true)
	cache.BeginLoad(scope)
	loadErr := errors.New("boom")
	cache.FailLoad(scope, loadErr)

	state := cache.StateFor(scope)
	if state.Loading {
		t.Fatal("loading flag not cleared")
	}
	if state.Err != loadErr {
		t.Fatalf("error not recorded: %v", state.Err)
	}
	if state.Cursor != "page-3" {
		t.Fatalf("prior cursor lost on failure: %q", state.Cursor)
	}
}

func TestCache_ResetAfterRefresh(t *testing.T) {
	cache := New()
	folder := library.FolderScope(7)
	feed := library.FeedScope(3)

	cache.BeginLoad(folder)
	cache.CompleteLoad(folder, "f1", true)
	cache.BeginLoad(feed)
	cache.CompleteLoad(feed, "s1", true)
	cache.BeginLoad(library.AllScope())
	cache.CompleteLoad(library.AllScope(), "old", true)

	cache.ResetAfterRefresh("fresh", true)

	if state := cache.StateFor(folder); state.Initialized {
		t.Fatalf("folder scope should be uninitialized after refresh: %+v", state)
	}
	if state := cache.StateFor(feed); state.Initialized {
		t.Fatalf("feed scope should be uninitialized after refresh: %+v", state)
	}
	all := cache.StateFor(library.AllScope())
	if !all.Initialized || all.Cursor != "fresh" || !all.HasMore {
		t.Fatalf("everything scope should carry the fresh cursor: %+v", all)
	}
}

func TestCache_Invalidate(t *testing.T) {
	cache := New()
	scope := library.FeedScope(9)
	cache.BeginLoad(scope)
	cache.CompleteLoad(scope, "c", false)

	cache.Invalidate(scope)
	if cache.StateFor(scope).Initialized {
		t.Fatal("invalidated scope should be uninitialized")
	}
}
