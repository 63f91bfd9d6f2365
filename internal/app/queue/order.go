package queue

import (
	"sort"

	"github.com/osn942/spindle/internal/domain/track"
)

// ToggleShuffle flips shuffle mode, permuting or restoring the user
// entries strictly after the current index. Entries up to and
// including the current one, and all recommendation entries, keep
// their relative order. Toggling twice reproduces the original
// upcoming ordering exactly.
func (e *Engine) ToggleShuffle() bool {
	e.shuffle = !e.shuffle
	if e.shuffle {
		e.enableShuffle()
	} else {
		e.disableShuffle()
	}
	return e.shuffle
}

// enableShuffle permutes the upcoming user entries and rebuilds
// shuffleOrder as the played standard prefix plus the permutation.
// standardOrder stays untouched so disabling can restore it.
func (e *Engine) enableShuffle() {
	users, recs := e.splitUpcoming()
	for i := len(users) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		users[i], users[j] = users[j], users[i]
	}
	e.rebuildUpcoming(users, recs)

	order := make([]int64, 0, len(e.standardOrder))
	for _, en := range e.entries {
		if en.IsUser() {
			order = append(order, en.Seq)
		}
	}
	e.shuffleOrder = order
}

// disableShuffle restores the upcoming user entries to the order
// recorded in standardOrder.
func (e *Engine) disableShuffle() {
	users, recs := e.splitUpcoming()
	pos := make(map[int64]int, len(e.standardOrder))
	for i, seq := range e.standardOrder {
		pos[seq] = i
	}
	sort.SliceStable(users, func(a, b int) bool {
		return pos[users[a].Seq] < pos[users[b].Seq]
	})
	e.rebuildUpcoming(users, recs)
}

// splitUpcoming partitions the entries strictly after current by
// origin, keeping relative order within each group.
func (e *Engine) splitUpcoming() (users, recs []track.Entry) {
	for _, en := range e.entries[e.currentIndex+1:] {
		if en.IsUser() {
			users = append(users, en)
		} else {
			recs = append(recs, en)
		}
	}
	return users, recs
}

// rebuildUpcoming reassembles the queue as prefix + users + recs and
// re-anchors previousIndex to the entry it pointed at.
func (e *Engine) rebuildUpcoming(users, recs []track.Entry) {
	var prevSeq int64
	if e.previousIndex >= 0 && e.previousIndex < len(e.entries) {
		prevSeq = e.entries[e.previousIndex].Seq
	}
	rebuilt := make([]track.Entry, 0, len(e.entries))
	rebuilt = append(rebuilt, e.entries[:e.currentIndex+1]...)
	rebuilt = append(rebuilt, users...)
	rebuilt = append(rebuilt, recs...)
	e.entries = rebuilt
	if prevSeq > 0 {
		e.previousIndex = e.indexOfSeq(prevSeq)
	}
}

// rebuildActiveOrder re-derives the active ordering from the queue so
// it keeps mirroring the user entries in queue order.
func (e *Engine) rebuildActiveOrder() {
	order := make([]int64, 0, len(e.standardOrder))
	for _, en := range e.entries {
		if en.IsUser() {
			order = append(order, en.Seq)
		}
	}
	if e.shuffle {
		e.shuffleOrder = order
	} else {
		e.standardOrder = order
	}
}

func insertSeqs(order []int64, pos int, seqs []int64) []int64 {
	if pos < 0 {
		pos = 0
	}
	if pos > len(order) {
		pos = len(order)
	}
	out := make([]int64, 0, len(order)+len(seqs))
	out = append(out, order[:pos]...)
	out = append(out, seqs...)
	out = append(out, order[pos:]...)
	return out
}

func removeSeq(order []int64, seq int64) []int64 {
	for i, s := range order {
		if s == seq {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
