package queue

import "github.com/osn942/spindle/internal/domain/track"

// Snapshot is an immutable copy of the queue state handed to
// subscribers and the persistence layer.
type Snapshot struct {
	Entries       []track.Entry
	CurrentIndex  int
	PreviousIndex int
	Shuffle       bool
	Repeat        RepeatMode
	StandardOrder []int64
	ShuffleOrder  []int64
	LastPlayed    *track.Track
	NextSeq       int64
	HasNext       bool
	HasPrevious   bool
}

// Snapshot copies the engine state.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Entries:       append([]track.Entry(nil), e.entries...),
		CurrentIndex:  e.currentIndex,
		PreviousIndex: e.previousIndex,
		Shuffle:       e.shuffle,
		Repeat:        e.repeat,
		StandardOrder: append([]int64(nil), e.standardOrder...),
		ShuffleOrder:  append([]int64(nil), e.shuffleOrder...),
		NextSeq:       e.nextSeq,
		HasNext:       e.HasNext(),
		HasPrevious:   e.HasPrevious(),
	}
	if e.lastPlayed != nil {
		t := *e.lastPlayed
		snap.LastPlayed = &t
	}
	return snap
}

// Restore replaces the engine state from a persisted snapshot,
// sanitizing indices and orderings that no longer line up. Transient
// flags reset.
func (e *Engine) Restore(snap Snapshot) {
	e.entries = append([]track.Entry(nil), snap.Entries...)

	e.currentIndex = snap.CurrentIndex
	if e.currentIndex < 0 || e.currentIndex >= len(e.entries) {
		e.currentIndex = -1
	}
	e.previousIndex = snap.PreviousIndex
	if e.previousIndex < 0 || e.previousIndex >= len(e.entries) {
		e.previousIndex = -1
	}

	e.shuffle = snap.Shuffle
	e.repeat = snap.Repeat
	if !e.repeat.valid() {
		e.repeat = RepeatOff
	}

	userSeqs := make(map[int64]bool)
	var maxSeq int64
	for _, en := range e.entries {
		if en.Seq > maxSeq {
			maxSeq = en.Seq
		}
		if en.IsUser() {
			userSeqs[en.Seq] = true
		}
	}
	e.standardOrder = e.sanitizeOrder(snap.StandardOrder, userSeqs)
	e.shuffleOrder = e.sanitizeOrder(snap.ShuffleOrder, userSeqs)

	e.lastPlayed = nil
	if snap.LastPlayed != nil {
		t := *snap.LastPlayed
		e.lastPlayed = &t
	}

	e.nextSeq = maxSeq + 1
	if snap.NextSeq > e.nextSeq {
		e.nextSeq = snap.NextSeq
	}
	e.suppressed = false
}

// sanitizeOrder keeps a persisted ordering only when it is a valid
// permutation of the current user entries; otherwise it falls back to
// the queue-order projection.
func (e *Engine) sanitizeOrder(order []int64, userSeqs map[int64]bool) []int64 {
	if len(order) == len(userSeqs) {
		seen := make(map[int64]bool, len(order))
		ok := true
		for _, seq := range order {
			if !userSeqs[seq] || seen[seq] {
				ok = false
				break
			}
			seen[seq] = true
		}
		if ok {
			return append([]int64(nil), order...)
		}
	}
	projection := make([]int64, 0, len(userSeqs))
	for _, en := range e.entries {
		if en.IsUser() {
			projection = append(projection, en.Seq)
		}
	}
	return projection
}
