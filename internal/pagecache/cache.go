// Package pagecache tracks pagination progress per navigational
// scope. State is keyed by scope, not by whatever scope is currently
// displayed, so a slow response for a backgrounded scope still lands
// in the right entry.
package pagecache

import "github.com/glabrego/feedhaven/internal/library"

// State is one scope's pagination entry. The zero value is the
// synthetic "never fetched" state. Cursor and HasMore only change
// together, from a single fetch response.
type State struct {
	Initialized bool
	Loading     bool
	Err         error
	Cursor      string
	HasMore     bool
}

type Cache struct {
	states map[string]State
}

func New() *Cache {
	return &Cache{states: make(map[string]State)}
}

// StateFor returns the entry for a scope, or the zero state when the
// scope has never been fetched.
func (c *Cache) StateFor(scope library.Scope) State {
	return c.states[scope.Key()]
}

// BeginLoad marks a scope loading and initialized, clearing any prior
// error. Returns false without touching the entry when a load for the
// same scope is already outstanding; loads within one scope are
// serialized by this flag.
func (c *Cache) BeginLoad(scope library.Scope) bool {
	key := scope.Key()
	state := c.states[key]
	if state.Loading {
		return false
	}
	state.Initialized = true
	state.Loading = true
	state.Err = nil
	c.states[key] = state
	return true
}

// CompleteLoad atomically installs the cursor and hasMore from a fetch
// response and clears the loading flag.
func (c *Cache) CompleteLoad(scope library.Scope, nextCursor string, hasMore bool) {
	key := scope.Key()
	state := c.states[key]
	state.Initialized = true
	state.Loading = false
	state.Err = nil
	state.Cursor = nextCursor
	state.HasMore = hasMore
	c.states[key] = state
}

// FailLoad records a load failure. The prior cursor survives so a
// retry continues from where the scope left off.
func (c *Cache) FailLoad(scope library.Scope, err error) {
	key := scope.Key()
	state := c.states[key]
	state.Loading = false
	state.Err = err
	c.states[key] = state
}

// Invalidate drops a scope back to uninitialized.
func (c *Cache) Invalidate(scope library.Scope) {
	delete(c.states, scope.Key())
}

// ResetAfterRefresh applies the full-refresh reconciliation rule:
// every scope reverts to uninitialized so its next visit re-fetches
// from scratch, except the everything scope, which is handed a fresh
// cursor immediately because the refresh response already repopulated
// it.
func (c *Cache) ResetAfterRefresh(allCursor string, hasMore bool) {
	c.states = make(map[string]State)
	c.states[library.AllScope().Key()] = State{
		Initialized: true,
		Cursor:      allCursor,
		HasMore:     hasMore,
	}
}
