// Package addflow drives the add-subscription flow as an explicit
// state machine: normalize, discover, optionally wait for a candidate
// pick, create. The machine never performs network calls itself; each
// transition returns an Effect naming the async operation the caller
// must run, and the caller feeds the outcome back in.
package addflow

import (
	"fmt"
	"time"

	"github.com/glabrego/feedhaven/internal/feedapi"
	"github.com/glabrego/feedhaven/internal/library"
)

type Stage int

const (
	StageIdle Stage = iota
	StageNormalizing
	StageDiscovering
	StageAwaitingSelection
	StageCreating
)

func (s Stage) String() string {
	switch s {
	case StageNormalizing:
		return "normalizing"
	case StageDiscovering:
		return "discovering"
	case StageAwaitingSelection:
		return "awaiting_selection"
	case StageCreating:
		return "creating"
	default:
		return "idle"
	}
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	// EffectDiscover asks the caller to run feed discovery for URL.
	EffectDiscover
	// EffectCreate asks the caller to create a subscription for URL
	// with FolderIDs.
	EffectCreate
	// EffectCreateFolder asks the caller to create a folder named
	// FolderName (the inline sub-operation).
	EffectCreateFolder
	// EffectWait asks the caller to wait Delay and then call
	// ResumeRetry; issued on rate-limit responses.
	EffectWait
)

type Effect struct {
	Kind       EffectKind
	URL        string
	FolderIDs  []int64
	FolderName string
	Delay      time.Duration
}

var none = Effect{Kind: EffectNone}

// maxRateLimitRetries bounds automatic retries on 429 responses.
const maxRateLimitRetries = 3

// Completed reports a finished create, for notices and scope
// activation by the caller.
type Completed struct {
	Feed      *library.Subscription
	Duplicate bool
	Message   string
}

type Machine struct {
	lib *library.Library

	stage      Stage
	input      string
	folderIDs  []int64
	normalized string
	createURL  string
	candidates []feedapi.Candidate
	selected   string

	fieldErr  string
	folderErr string
	progress  string

	retries      int
	pendingRetry Effect

	renamePromptFolderID int64
}

func NewMachine(lib *library.Library) *Machine {
	return &Machine{lib: lib}
}

func (m *Machine) Stage() Stage                    { return m.stage }
func (m *Machine) Input() string                   { return m.input }
func (m *Machine) FolderSelection() []int64        { return m.folderIDs }
func (m *Machine) Candidates() []feedapi.Candidate { return m.candidates }
func (m *Machine) Selected() string                { return m.selected }
func (m *Machine) FieldError() string              { return m.fieldErr }
func (m *Machine) FolderError() string             { return m.folderErr }
func (m *Machine) Progress() string                { return m.progress }

// RenamePromptFolderID is the folder just created inline, for which
// the caller should offer a rename affordance. Zero when none.
func (m *Machine) RenamePromptFolderID() int64 { return m.renamePromptFolderID }
func (m *Machine) ClearRenamePrompt()          { m.renamePromptFolderID = 0 }

// Submit starts (or, from awaiting_selection, resumes) the flow. A
// submit while another add is running is a no-op; the machine is
// single-flight.
func (m *Machine) Submit(input string, folderIDs []int64) Effect {
	switch m.stage {
	case StageIdle:
		// fall through to the fresh-submit path below
	case StageAwaitingSelection:
		if m.selected == "" {
			m.fieldErr = "Pick one of the discovered feeds first"
			return none
		}
		return m.startCreate(m.selected)
	default:
		return none
	}

	m.input = input
	m.folderIDs = folderIDs
	m.fieldErr = ""

	if isBlank(input) {
		m.fieldErr = "Enter a feed or site URL"
		return none
	}

	m.stage = StageNormalizing
	m.progress = "Checking URL…"

	canonical, ok := library.NormalizeURL(input)
	if !ok {
		m.reset()
		m.fieldErr = "That doesn't look like a valid URL"
		return none
	}
	m.normalized = canonical

	// Exact-duplicate short-circuit: a URL already in the library
	// with no additional folders selected never reaches the network.
	if existing := m.lib.FindByURL(canonical); existing != nil {
		if !addsFolders(folderIDs, existing.FolderIDs) {
			m.reset()
			m.fieldErr = fmt.Sprintf("%s is already in your library", existing.DisplayTitle())
			return none
		}
		// Known duplicate gaining folders: creation merges them
		// server-side, discovery has nothing to add.
		return m.startCreate(canonical)
	}

	m.stage = StageDiscovering
	m.retries = 0
	m.progress = fmt.Sprintf("Looking for feeds at %s…", canonical)
	return Effect{Kind: EffectDiscover, URL: canonical}
}

// HandleDiscovery consumes the discovery outcome.
func (m *Machine) HandleDiscovery(d feedapi.Discovery, err error) Effect {
	if m.stage != StageDiscovering {
		return none
	}
	if err != nil {
		return m.handleFailure(err, Effect{Kind: EffectDiscover, URL: m.normalized})
	}

	addable := d.Addable()
	switch {
	case d.Status == feedapi.DiscoveryMultiple && len(addable) > 1:
		m.stage = StageAwaitingSelection
		m.candidates = d.Candidates
		m.selected = ""
		m.progress = fmt.Sprintf("Found %d feeds — pick one", len(addable))
		return none
	case len(addable) == 1:
		return m.startCreate(addable[0].URL)
	default:
		// Duplicate status or nothing addable: fall back to the
		// originally normalized URL and let the server sort it out.
		return m.startCreate(m.normalized)
	}
}

// Select records the candidate the user picked. Only meaningful in
// awaiting_selection; the pick must be one of the discovered URLs.
func (m *Machine) Select(url string) bool {
	if m.stage != StageAwaitingSelection {
		return false
	}
	for _, c := range m.candidates {
		if c.URL == url && !c.Duplicate {
			m.selected = url
			m.fieldErr = ""
			return true
		}
	}
	return false
}

func (m *Machine) startCreate(url string) Effect {
	m.stage = StageCreating
	m.createURL = url
	m.retries = 0
	m.progress = "Adding subscription…"
	return Effect{Kind: EffectCreate, URL: url, FolderIDs: m.folderIDs}
}

// HandleCreate consumes the create outcome. On success the machine
// inserts the new subscription, or patches the existing one in place
// when the server reports a duplicate (a merge, not an insert, and
// idempotent if retried), then returns to idle with all transient
// state cleared.
func (m *Machine) HandleCreate(res feedapi.CreateResult, err error) (Effect, *Completed) {
	if m.stage != StageCreating {
		return none, nil
	}
	if err != nil {
		// Retry the create that was actually issued, which may be a
		// picked candidate URL rather than the typed one.
		return m.handleFailure(err, Effect{Kind: EffectCreate, URL: m.createURL, FolderIDs: m.folderIDs}), nil
	}

	var feed *library.Subscription
	if res.Duplicate && res.Feed != nil {
		feed = m.lib.PatchFeed(res.Feed.ID, res.Feed.FolderIDs, res.Feed.CustomTitle, res.Feed.LastFetchStatus)
		if feed == nil {
			// Server knew about a subscription we never loaded.
			m.lib.InsertFeed(res.Feed)
			feed = res.Feed
		}
	} else if res.Feed != nil {
		m.lib.InsertFeed(res.Feed)
		feed = res.Feed
	}

	completed := &Completed{Feed: feed, Duplicate: res.Duplicate, Message: res.Message}
	m.reset()
	m.input = ""
	m.folderIDs = nil
	return none, completed
}

// handleFailure classifies a network failure: a 429 schedules a
// bounded automatic retry of the interrupted effect, anything else
// returns the machine to idle with the typed URL and folder selection
// preserved.
func (m *Machine) handleFailure(err error, retry Effect) Effect {
	if apiErr, ok := feedapi.AsAPIError(err); ok && apiErr.RateLimited() && m.retries < maxRateLimitRetries {
		m.retries++
		delay := apiErr.RetryAfter
		if delay <= 0 {
			delay = 5 * time.Second
		}
		m.pendingRetry = retry
		m.Countdown(delay)
		return Effect{Kind: EffectWait, Delay: delay}
	}

	stage := m.stage
	m.reset()
	if apiErr, ok := feedapi.AsAPIError(err); ok {
		if apiErr.RateLimited() {
			m.fieldErr = "The service is rate limiting requests — try again in a minute"
		} else {
			m.fieldErr = apiErr.Message
		}
	} else if stage == StageDiscovering {
		m.fieldErr = fmt.Sprintf("Could not reach the site: %v", err)
	} else {
		m.fieldErr = fmt.Sprintf("Could not add the subscription: %v", err)
	}
	return none
}

// Countdown refreshes the progress string while waiting out a rate
// limit. Callers tick it once a second.
func (m *Machine) Countdown(remaining time.Duration) {
	seconds := int(remaining.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	m.progress = fmt.Sprintf("Rate limited — retrying in %ds (attempt %d of %d)", seconds, m.retries, maxRateLimitRetries)
}

// ResumeRetry re-issues the effect interrupted by a rate limit.
func (m *Machine) ResumeRetry() Effect {
	effect := m.pendingRetry
	m.pendingRetry = Effect{}
	if effect.Kind == EffectNone {
		return none
	}
	switch effect.Kind {
	case EffectDiscover:
		m.progress = fmt.Sprintf("Looking for feeds at %s…", effect.URL)
	case EffectCreate:
		m.progress = "Adding subscription…"
	}
	return effect
}

// CreateFolder starts the inline folder sub-operation. It is
// independent of the main flow stages and retryable on its own.
func (m *Machine) CreateFolder(name string) Effect {
	m.folderErr = ""
	if isBlank(name) {
		m.folderErr = "Enter a folder name"
		return none
	}
	if library.IsReservedFolderName(name) {
		m.folderErr = fmt.Sprintf("%q is a reserved name", name)
		return none
	}
	if m.lib.FolderByName(name) != nil {
		m.folderErr = fmt.Sprintf("A folder named %q already exists", name)
		return none
	}
	return Effect{Kind: EffectCreateFolder, FolderName: name}
}

// HandleFolderCreated consumes the inline folder outcome: the new
// folder joins the pending selection and is flagged for rename.
func (m *Machine) HandleFolderCreated(folder *library.Folder, err error) {
	if err != nil {
		m.folderErr = fmt.Sprintf("Could not create the folder: %v", err)
		return
	}
	m.lib.AddFolder(folder)
	m.folderIDs = append(m.folderIDs, folder.ID)
	m.renamePromptFolderID = folder.ID
	m.folderErr = ""
}

func (m *Machine) reset() {
	m.stage = StageIdle
	m.normalized = ""
	m.createURL = ""
	m.candidates = nil
	m.selected = ""
	m.progress = ""
	m.retries = 0
	m.pendingRetry = Effect{}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// addsFolders reports whether the selection contains any folder the
// subscription is not already in.
func addsFolders(selected, existing []int64) bool {
	for _, id := range selected {
		found := false
		for _, have := range existing {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}
