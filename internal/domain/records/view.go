package records

import (
	"sync"
	"time"
)

// Views remembers, per session, which prescription and which report is
// open in the detail pane.
type Views struct {
	mu    sync.Mutex
	state map[string]*view
	now   func() time.Time
}

type view struct {
	selected map[string]string // kind -> id
	touched  time.Time
}

func NewViews() *Views {
	return &Views{state: make(map[string]*view), now: time.Now}
}

func (v *Views) get(sessionID string) *view {
	st, ok := v.state[sessionID]
	if !ok {
		st = &view{selected: make(map[string]string)}
		v.state[sessionID] = st
	}
	st.touched = v.now()
	return st
}

// Select marks id as the open item of kind.
func (v *Views) Select(sessionID, kind, id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.get(sessionID).selected[kind] = id
}

// Selected returns the open item of kind, or "".
func (v *Views) Selected(sessionID, kind string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.state[sessionID]
	if !ok {
		return ""
	}
	st.touched = v.now()
	return st.selected[kind]
}

// Removed forgets id if it was the open item of kind, and reports whether
// the detail pane was cleared.
func (v *Views) Removed(sessionID, kind, id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.state[sessionID]
	if !ok || st.selected[kind] != id {
		return false
	}
	delete(st.selected, kind)
	st.touched = v.now()
	return true
}

// Drop discards all state of a session.
func (v *Views) Drop(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.state, sessionID)
}

// Sweep drops state untouched since cutoff. It has the session.Sweeper
// signature.
func (v *Views) Sweep(cutoff time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for id, st := range v.state {
		if st.touched.Before(cutoff) {
			delete(v.state, id)
			n++
		}
	}
	return n
}
