package addflow

import (
	"errors"
	"testing"
	"time"

	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/library"
)

func libraryWith(feeds ...*library.Subscription) *library.Library {
	lib := library.New()
	for _, feed := range feeds {
		lib.InsertFeed(feed)
	}
	return lib
}

func techFeed() *library.Subscription {
	return &library.Subscription{
		ID:        1,
		Title:     "A",
		FeedURL:   "https://a.example/feed.xml",
		FolderIDs: []int64{100}, // "tech"
	}
}

func TestSubmit_EmptyInputRejectsLocally(t *testing.T) {
	machine := NewMachine(libraryWith())

	effect := machine.Submit("   ", nil)
	if effect.Kind != EffectNone {
		t.Fatalf("expected no effect, got %v", effect.Kind)
	}
	if machine.Stage() != StageIdle {
		t.Fatalf("machine left idle: %v", machine.Stage())
	}
	if machine.FieldError() == "" {
		t.Fatal("expected a field error")
	}
}

func TestSubmit_MalformedURLRejectsLocally(t *testing.T) {
	machine := NewMachine(libraryWith())

	effect := machine.Submit("ftp://a.example/feed", nil)
	if effect.Kind != EffectNone {
		t.Fatalf("expected no effect, got %v", effect.Kind)
	}
	if machine.FieldError() == "" {
		t.Fatal("expected a field error")
	}
	// The typed input survives for correction.
	if machine.Input() != "ftp://a.example/feed" {
		t.Fatalf("input lost: %q", machine.Input())
	}
}

func TestSubmit_ExactDuplicateShortCircuits(t *testing.T) {
	machine := NewMachine(libraryWith(techFeed()))

	// Same URL, no newly selected folders: never reaches the network.
	effect := machine.Submit("https://a.example/feed.xml", nil)
	if effect.Kind != EffectNone {
		t.Fatalf("duplicate submit produced effect %v, want none", effect.Kind)
	}
	if machine.Stage() != StageIdle {
		t.Fatalf("machine not idle: %v", machine.Stage())
	}
	if machine.FieldError() == "" {
		t.Fatal("expected the already-in-library message")
	}

	// Selecting only folders the feed already has is still a duplicate.
	effect = machine.Submit("https://a.example/feed.xml", []int64{100})
	if effect.Kind != EffectNone {
		t.Fatalf("same-folders submit produced effect %v, want none", effect.Kind)
	}
}

func TestSubmit_DuplicateWithNewFolderGoesStraightToCreate(t *testing.T) {
	lib := libraryWith(techFeed())
	machine := NewMachine(lib)

	effect := machine.Submit("https://a.example/feed.xml", []int64{100, 200})
	if effect.Kind != EffectCreate {
		t.Fatalf("expected create effect, got %v", effect.Kind)
	}
	if machine.Stage() != StageCreating {
		t.Fatalf("stage = %v, want creating", machine.Stage())
	}

	// Server merges folders and reports a duplicate; the existing
	// subscription is patched in place.
	_, completed := machine.HandleCreate(feedapi.CreateResult{
		Feed: &library.Subscription{
			ID:        1,
			Title:     "A",
			FeedURL:   "https://a.example/feed.xml",
			FolderIDs: []int64{100, 200},
		},
		Duplicate:         true,
		MergedFolderCount: 1,
	}, nil)
	if completed == nil || !completed.Duplicate {
		t.Fatal("expected a duplicate completion")
	}
	got := lib.Feed(1)
	if len(got.FolderIDs) != 2 || got.FolderIDs[0] != 100 || got.FolderIDs[1] != 200 {
		t.Fatalf("folders not merged in place: %v", got.FolderIDs)
	}
	if len(lib.Feeds()) != 1 {
		t.Fatalf("duplicate merge must not insert, have %d feeds", len(lib.Feeds()))
	}
}

func TestFlow_SingleCandidateCreatesDirectly(t *testing.T) {
	machine := NewMachine(libraryWith())

	effect := machine.Submit("https://blog.example", nil)
	if effect.Kind != EffectDiscover {
		t.Fatalf("expected discover effect, got %v", effect.Kind)
	}

	effect = machine.HandleDiscovery(feedapi.Discovery{
		Status:     feedapi.DiscoverySingle,
		Candidates: []feedapi.Candidate{{URL: "https://blog.example/rss", Method: "alternate"}},
	}, nil)
	if effect.Kind != EffectCreate || effect.URL != "https://blog.example/rss" {
		t.Fatalf("expected create for the single candidate, got %+v", effect)
	}
}

func TestFlow_ZeroAddableFallsBackToOriginalURL(t *testing.T) {
	machine := NewMachine(libraryWith())

	machine.Submit("https://blog.example", nil)
	effect := machine.HandleDiscovery(feedapi.Discovery{Status: feedapi.DiscoveryDuplicate}, nil)
	if effect.Kind != EffectCreate || effect.URL != "https://blog.example" {
		t.Fatalf("expected create with the normalized original URL, got %+v", effect)
	}
}

func TestFlow_MultipleCandidatesAwaitSelection(t *testing.T) {
	lib := libraryWith()
	machine := NewMachine(lib)

	machine.Submit("https://blog.example", nil)
	effect := machine.HandleDiscovery(feedapi.Discovery{
		Status: feedapi.DiscoveryMultiple,
		Candidates: []feedapi.Candidate{
			{URL: "https://blog.example/rss", Method: "alternate"},
			{URL: "https://blog.example/atom", Method: "guess"},
		},
	}, nil)
	if effect.Kind != EffectNone {
		t.Fatalf("expected no effect while awaiting selection, got %v", effect.Kind)
	}
	if machine.Stage() != StageAwaitingSelection {
		t.Fatalf("stage = %v, want awaiting_selection", machine.Stage())
	}

	// Re-submitting without a pick re-raises the field error and the
	// machine stays put.
	effect = machine.Submit("https://blog.example", nil)
	if effect.Kind != EffectNone || machine.Stage() != StageAwaitingSelection {
		t.Fatalf("submit without selection must not transition: %v %v", effect.Kind, machine.Stage())
	}
	if machine.FieldError() == "" {
		t.Fatal("expected selection field error")
	}

	// Picking and resubmitting proceeds to creation.
	if !machine.Select("https://blog.example/atom") {
		t.Fatal("selection of a discovered candidate rejected")
	}
	effect = machine.Submit("https://blog.example", nil)
	if effect.Kind != EffectCreate || effect.URL != "https://blog.example/atom" {
		t.Fatalf("expected create for the picked candidate, got %+v", effect)
	}

	// Create succeeds: machine idles, input clears, feed inserted.
	_, completed := machine.HandleCreate(feedapi.CreateResult{
		Feed: &library.Subscription{ID: 9, Title: "Blog", FeedURL: "https://blog.example/atom"},
	}, nil)
	if completed == nil || completed.Feed == nil || completed.Feed.ID != 9 {
		t.Fatalf("unexpected completion: %+v", completed)
	}
	if machine.Stage() != StageIdle || machine.Input() != "" {
		t.Fatalf("machine not reset after success: %v %q", machine.Stage(), machine.Input())
	}
	if lib.Feed(9) == nil {
		t.Fatal("new subscription not inserted")
	}
}

func TestSelect_RejectsUnknownAndDuplicateCandidates(t *testing.T) {
	machine := NewMachine(libraryWith())
	machine.Submit("https://blog.example", nil)
	machine.HandleDiscovery(feedapi.Discovery{
		Status: feedapi.DiscoveryMultiple,
		Candidates: []feedapi.Candidate{
			{URL: "https://blog.example/rss"},
			{URL: "https://blog.example/atom"},
			{URL: "https://blog.example/old", Duplicate: true, ExistingFeedID: 4},
		},
	}, nil)

	if machine.Select("https://elsewhere.example/rss") {
		t.Fatal("selection outside the candidate set must be rejected")
	}
	if machine.Select("https://blog.example/old") {
		t.Fatal("duplicate candidates are not addable")
	}
}

func TestFlow_FailurePreservesInputAndFolders(t *testing.T) {
	machine := NewMachine(libraryWith())

	machine.Submit("https://blog.example", []int64{5})
	effect := machine.HandleDiscovery(feedapi.Discovery{}, &feedapi.APIError{Status: 500, Message: "upstream exploded"})
	if effect.Kind != EffectNone {
		t.Fatalf("expected no effect after terminal failure, got %v", effect.Kind)
	}
	if machine.Stage() != StageIdle {
		t.Fatalf("failure must return to idle, got %v", machine.Stage())
	}
	if machine.Input() != "https://blog.example" {
		t.Fatalf("typed URL lost: %q", machine.Input())
	}
	if len(machine.FolderSelection()) != 1 || machine.FolderSelection()[0] != 5 {
		t.Fatalf("folder selection lost: %v", machine.FolderSelection())
	}
	if machine.FieldError() != "upstream exploded" {
		t.Fatalf("unexpected field error: %q", machine.FieldError())
	}
}

func TestFlow_RateLimitSchedulesBoundedRetries(t *testing.T) {
	machine := NewMachine(libraryWith())
	machine.Submit("https://blog.example", nil)

	rateLimited := &feedapi.APIError{Status: 429, Message: "slow down", RetryAfter: 2 * time.Second}

	for attempt := 1; attempt <= 3; attempt++ {
		effect := machine.HandleDiscovery(feedapi.Discovery{}, rateLimited)
		if effect.Kind != EffectWait || effect.Delay != 2*time.Second {
			t.Fatalf("attempt %d: expected wait effect, got %+v", attempt, effect)
		}
		if machine.Progress() == "" {
			t.Fatalf("attempt %d: expected countdown progress text", attempt)
		}
		resumed := machine.ResumeRetry()
		if resumed.Kind != EffectDiscover {
			t.Fatalf("attempt %d: resume should re-issue discovery, got %v", attempt, resumed.Kind)
		}
	}

	// Fourth 429 exhausts the budget and fails back to idle.
	effect := machine.HandleDiscovery(feedapi.Discovery{}, rateLimited)
	if effect.Kind != EffectNone || machine.Stage() != StageIdle {
		t.Fatalf("expected terminal failure after retry budget: %+v stage=%v", effect, machine.Stage())
	}
}

func TestFlow_RateLimitedCreateRetriesThePickedCandidate(t *testing.T) {
	machine := NewMachine(libraryWith())

	machine.Submit("https://blog.example", nil)
	machine.HandleDiscovery(feedapi.Discovery{
		Status: feedapi.DiscoveryMultiple,
		Candidates: []feedapi.Candidate{
			{URL: "https://blog.example/rss", Method: "alternate"},
			{URL: "https://blog.example/atom.xml", Method: "alternate"},
		},
	}, nil)
	if !machine.Select("https://blog.example/atom.xml") {
		t.Fatal("setup: selection rejected")
	}
	effect := machine.Submit("https://blog.example", nil)
	if effect.Kind != EffectCreate || effect.URL != "https://blog.example/atom.xml" {
		t.Fatalf("setup: create effect = %+v", effect)
	}

	// A 429 on the create must retry the exact create that was
	// interrupted, not fall back to the typed site URL.
	effect, _ = machine.HandleCreate(feedapi.CreateResult{}, &feedapi.APIError{Status: 429, RetryAfter: time.Second})
	if effect.Kind != EffectWait {
		t.Fatalf("expected wait effect, got %+v", effect)
	}
	resumed := machine.ResumeRetry()
	if resumed.Kind != EffectCreate {
		t.Fatalf("resume should re-issue the create, got %v", resumed.Kind)
	}
	if resumed.URL != "https://blog.example/atom.xml" {
		t.Fatalf("retry targets %q, want the picked candidate", resumed.URL)
	}
}

func TestSubmit_WhileBusyIsNoOp(t *testing.T) {
	machine := NewMachine(libraryWith())
	machine.Submit("https://blog.example", nil)
	if machine.Stage() != StageDiscovering {
		t.Fatalf("setup: stage = %v", machine.Stage())
	}

	effect := machine.Submit("https://other.example", nil)
	if effect.Kind != EffectNone {
		t.Fatalf("concurrent submit must be a no-op, got %v", effect.Kind)
	}
	if machine.Input() != "https://blog.example" {
		t.Fatalf("concurrent submit overwrote input: %q", machine.Input())
	}
}

func TestCreateFolder_ValidationAndCompletion(t *testing.T) {
	lib := libraryWith()
	lib.AddFolder(&library.Folder{ID: 1, Name: "Tech"})
	machine := NewMachine(lib)

	if effect := machine.CreateFolder(""); effect.Kind != EffectNone || machine.FolderError() == "" {
		t.Fatal("empty folder name must fail locally")
	}
	if effect := machine.CreateFolder("All"); effect.Kind != EffectNone || machine.FolderError() == "" {
		t.Fatal("reserved folder name must fail locally")
	}
	if effect := machine.CreateFolder("tech"); effect.Kind != EffectNone || machine.FolderError() == "" {
		t.Fatal("duplicate folder name must fail locally")
	}

	effect := machine.CreateFolder("News")
	if effect.Kind != EffectCreateFolder || effect.FolderName != "News" {
		t.Fatalf("expected folder create effect, got %+v", effect)
	}

	machine.HandleFolderCreated(&library.Folder{ID: 2, Name: "News"}, nil)
	if machine.FolderError() != "" {
		t.Fatalf("unexpected folder error: %q", machine.FolderError())
	}
	selection := machine.FolderSelection()
	if len(selection) != 1 || selection[0] != 2 {
		t.Fatalf("new folder not added to pending selection: %v", selection)
	}
	if machine.RenamePromptFolderID() != 2 {
		t.Fatal("rename affordance not requested for the new folder")
	}
	if lib.Folder(2) == nil {
		t.Fatal("folder not added to the library")
	}

	// A failed attempt is retryable on its own.
	machine.HandleFolderCreated(nil, errors.New("boom"))
	if machine.FolderError() == "" {
		t.Fatal("expected folder error after failure")
	}
	if effect := machine.CreateFolder("Sports"); effect.Kind != EffectCreateFolder {
		t.Fatal("folder creation should remain retryable")
	}
}
