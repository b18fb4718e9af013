package explore

import "github.com/hazyhaar/infcraft/craft"

// State is the mutable state of one exploration run: the attempted-pair set,
// the buffer of discoveries not yet merged, and counters. It is owned by a
// single Run and must not be shared between goroutines.
type State struct {
	attempted map[craft.CombinationKey]struct{}
	pending   []craft.Discovery

	Passes      int
	Attempts    int // pairs actually clicked
	Skipped     int // pairs skipped as not clickable or stale
	Discoveries int // discoveries found this run
	Saved       int // discoveries new to the ledger
	Reloads     int

	// Ledger is the ledger as of the last successful merge.
	Ledger craft.Ledger
}

// NewState returns an empty run state.
func NewState() *State {
	return &State{attempted: make(map[craft.CombinationKey]struct{})}
}

// Attempted reports whether the pair was already clicked this run.
func (s *State) Attempted(k craft.CombinationKey) bool {
	_, ok := s.attempted[k]
	return ok
}

// Pending returns the discoveries not yet handed to the store.
func (s *State) Pending() []craft.Discovery {
	return s.pending
}

func (s *State) markAttempted(k craft.CombinationKey) {
	s.attempted[k] = struct{}{}
	s.Attempts++
}

// forgetIDs drops the attempted set. Called when the page was reloaded and
// the ids it was keyed on now refer to different elements.
func (s *State) forgetIDs() {
	s.attempted = make(map[craft.CombinationKey]struct{})
	s.Reloads++
}
