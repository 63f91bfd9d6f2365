// Package queue implements the ordered playback queue: mutation,
// navigation, shuffle and repeat handling, and capacity enforcement.
//
// The engine is a plain data structure with no internal locking;
// callers serialize access. Index-based operations treat invalid input
// as a no-op so the UI can gate actions through capability flags
// instead of handling errors.
package queue

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/osn942/spindle/internal/domain/track"
)

const (
	defaultCapacity     = 1000
	defaultKeepPrevious = 5
)

// Config carries the engine tunables.
type Config struct {
	Capacity     int // maximum queue length
	KeepPrevious int // played entries kept before current on trim
}

// Engine is the playback queue. currentIndex and previousIndex are -1
// when unset.
type Engine struct {
	entries       []track.Entry
	currentIndex  int
	previousIndex int
	lastPlayed    *track.Track

	standardOrder []int64
	shuffleOrder  []int64
	shuffle       bool
	repeat        RepeatMode

	// suppressed is set by a manual Clear and stops auto-fill until
	// the next add.
	suppressed bool
	nextSeq    int64

	capacity     int
	keepPrevious int
	rng          *rand.Rand
}

// New returns an empty engine.
func New(cfg Config) *Engine {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	keep := cfg.KeepPrevious
	if keep < 0 {
		keep = defaultKeepPrevious
	}
	return &Engine{
		currentIndex:  -1,
		previousIndex: -1,
		repeat:        RepeatOff,
		nextSeq:       1,
		capacity:      capacity,
		keepPrevious:  keep,
		rng:           rand.New(rand.NewSource(cryptoSeed())),
	}
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return time.Now().UnixNano()
}

// Len returns the number of queued entries.
func (e *Engine) Len() int { return len(e.entries) }

// Entries returns a copy of the queued entries.
func (e *Engine) Entries() []track.Entry {
	return append([]track.Entry(nil), e.entries...)
}

// CurrentIndex returns the index of the current entry, -1 when none.
func (e *Engine) CurrentIndex() int { return e.currentIndex }

// PreviousIndex returns the index of the previously played entry, -1
// when none.
func (e *Engine) PreviousIndex() int { return e.previousIndex }

// Current returns the current entry.
func (e *Engine) Current() (track.Entry, bool) {
	if e.currentIndex < 0 || e.currentIndex >= len(e.entries) {
		return track.Entry{}, false
	}
	return e.entries[e.currentIndex], true
}

// EntryAt returns the entry at index i.
func (e *Engine) EntryAt(i int) (track.Entry, bool) {
	if i < 0 || i >= len(e.entries) {
		return track.Entry{}, false
	}
	return e.entries[i], true
}

// Shuffle reports whether shuffle mode is active.
func (e *Engine) Shuffle() bool { return e.shuffle }

// Repeat returns the active repeat mode.
func (e *Engine) Repeat() RepeatMode { return e.repeat }

// Suppressed reports whether a manual clear is suppressing auto-fill.
func (e *Engine) Suppressed() bool { return e.suppressed }

// LastPlayed returns the most recently departed track.
func (e *Engine) LastPlayed() (track.Track, bool) {
	if e.lastPlayed == nil {
		return track.Track{}, false
	}
	return *e.lastPlayed, true
}

// HasNext reports whether Advance would move.
func (e *Engine) HasNext() bool {
	n := len(e.entries)
	if n == 0 {
		return false
	}
	if e.currentIndex+1 < n {
		return true
	}
	return e.repeat == RepeatAll
}

// HasPrevious reports whether Retreat would move.
func (e *Engine) HasPrevious() bool {
	n := len(e.entries)
	if n == 0 {
		return false
	}
	if e.currentIndex > 0 {
		return true
	}
	return e.repeat == RepeatAll
}

// UpcomingRecommendationCount counts recommendation entries strictly
// after the current index.
func (e *Engine) UpcomingRecommendationCount() int {
	count := 0
	for _, en := range e.entries[e.currentIndex+1:] {
		if en.IsRecommendation() {
			count++
		}
	}
	return count
}

// UserTracks returns the tracks of all user-origin entries in queue
// order.
func (e *Engine) UserTracks() []track.Track {
	var tracks []track.Track
	for _, en := range e.entries {
		if en.IsUser() {
			tracks = append(tracks, en.Track)
		}
	}
	return tracks
}

// PlayTrack replaces the queue with the given context and makes t the
// current entry, prepending it when the context does not contain it.
// Both orderings reset and shuffle turns off.
func (e *Engine) PlayTrack(t track.Track, context []track.Track) {
	list := context
	idx := -1
	for i, c := range list {
		if c.ID == t.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		list = append([]track.Track{t}, list...)
		idx = 0
	}
	e.replaceAll(list, idx)
}

// PlayAlbum replaces the queue with the given tracks, starting at
// startIndex (0 when out of range).
func (e *Engine) PlayAlbum(tracks []track.Track, startIndex int) {
	if len(tracks) == 0 {
		return
	}
	if startIndex < 0 || startIndex >= len(tracks) {
		startIndex = 0
	}
	e.replaceAll(tracks, startIndex)
}

func (e *Engine) replaceAll(tracks []track.Track, idx int) {
	if len(tracks) > e.capacity {
		start := 0
		if idx >= e.capacity {
			start = idx - e.keepPrevious
		}
		end := start + e.capacity
		if end > len(tracks) {
			end = len(tracks)
		}
		tracks = tracks[start:end]
		idx -= start
	}
	if cur, ok := e.Current(); ok {
		t := cur.Track
		e.lastPlayed = &t
	}
	now := time.Now()
	entries := make([]track.Entry, len(tracks))
	order := make([]int64, len(tracks))
	for i, t := range tracks {
		seq := e.takeSeq()
		entries[i] = track.Entry{Track: t, Origin: track.OriginUser, Seq: seq, AddedAt: now}
		order[i] = seq
	}
	e.entries = entries
	e.currentIndex = idx
	e.previousIndex = -1
	e.standardOrder = order
	e.shuffleOrder = append([]int64(nil), order...)
	e.shuffle = false
	e.suppressed = false
}

// Add inserts tracks with the given origin and returns how many were
// queued. playNext places the run immediately after the current entry.
// A plain append lands ahead of the trailing recommendation run when
// the current entry is itself a recommendation, and at the tail
// otherwise. Adding always clears the manual-clear suppression.
func (e *Engine) Add(tracks []track.Track, playNext bool, origin track.Origin) int {
	if len(tracks) == 0 {
		return 0
	}
	e.suppressed = false

	if len(e.entries)+len(tracks) > e.capacity {
		e.enforceCapacity(len(tracks))
		room := e.capacity - len(e.entries)
		if room <= 0 {
			return 0
		}
		if len(tracks) > room {
			tracks = tracks[:room]
		}
	}

	pos := len(e.entries)
	switch {
	case playNext:
		pos = e.currentIndex + 1
	case e.currentIndex >= 0 && e.entries[e.currentIndex].IsRecommendation():
		pos = e.trailingRecommendationStart()
	}

	userPos := countUser(e.entries[:pos])

	now := time.Now()
	added := make([]track.Entry, len(tracks))
	seqs := make([]int64, len(tracks))
	for i, t := range tracks {
		seq := e.takeSeq()
		added[i] = track.Entry{Track: t, Origin: origin, Seq: seq, AddedAt: now}
		seqs[i] = seq
	}

	e.entries = append(e.entries[:pos:pos], append(added, e.entries[pos:]...)...)
	if e.previousIndex >= pos {
		e.previousIndex += len(added)
	}

	if origin == track.OriginUser {
		e.standardOrder = insertSeqs(e.standardOrder, userPos, seqs)
		e.shuffleOrder = insertSeqs(e.shuffleOrder, userPos, seqs)
	}
	return len(added)
}

// trailingRecommendationStart returns the index of the first entry of
// the recommendation run touching the tail, bounded below by the slot
// after current.
func (e *Engine) trailingRecommendationStart() int {
	i := len(e.entries)
	for i > 0 && e.entries[i-1].IsRecommendation() {
		i--
	}
	if i <= e.currentIndex {
		i = e.currentIndex + 1
	}
	return i
}

// RemoveAt drops the entry at index i. Out of range is a no-op.
// Removing the current entry leaves currentIndex unset and keeps the
// removed track as last played for display.
func (e *Engine) RemoveAt(i int) bool {
	if i < 0 || i >= len(e.entries) {
		return false
	}
	removed := e.entries[i]
	if removed.IsUser() {
		e.standardOrder = removeSeq(e.standardOrder, removed.Seq)
		e.shuffleOrder = removeSeq(e.shuffleOrder, removed.Seq)
	}
	e.entries = append(e.entries[:i], e.entries[i+1:]...)

	switch {
	case i == e.currentIndex:
		t := removed.Track
		e.lastPlayed = &t
		e.currentIndex = -1
	case i < e.currentIndex:
		e.currentIndex--
	}
	switch {
	case i == e.previousIndex:
		e.previousIndex = -1
	case i < e.previousIndex:
		e.previousIndex--
	}
	return true
}

// Move relocates the entry at from so it ends up at index to. Equal
// indices, invalid indices, and cross-origin moves are no-ops.
func (e *Engine) Move(from, to int) bool {
	n := len(e.entries)
	if from == to || from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if e.entries[from].Origin != e.entries[to].Origin {
		return false
	}
	e.entries = spliceMove(e.entries, from, to)
	e.currentIndex = remapIndex(e.currentIndex, from, to)
	e.previousIndex = remapIndex(e.previousIndex, from, to)
	e.rebuildActiveOrder()
	return true
}

// Clear empties the queue except the current entry and suppresses
// auto-fill until the next add. Mode flags and last played survive.
func (e *Engine) Clear() {
	if e.currentIndex >= 0 {
		cur := e.entries[e.currentIndex]
		e.entries = []track.Entry{cur}
		e.currentIndex = 0
		if cur.IsUser() {
			e.standardOrder = []int64{cur.Seq}
			e.shuffleOrder = []int64{cur.Seq}
		} else {
			e.standardOrder = nil
			e.shuffleOrder = nil
		}
	} else {
		e.entries = nil
		e.standardOrder = nil
		e.shuffleOrder = nil
	}
	e.previousIndex = -1
	e.suppressed = true
}

// ToggleRepeat cycles repeat off -> all -> one -> off.
func (e *Engine) ToggleRepeat() RepeatMode {
	e.repeat = e.repeat.next()
	return e.repeat
}

// Advance moves to the next entry, wrapping when repeat is all. At the
// end without repeat-all it reports false and changes nothing.
func (e *Engine) Advance() bool {
	n := len(e.entries)
	if n == 0 {
		return false
	}
	next := e.currentIndex + 1
	if next >= n {
		if e.repeat != RepeatAll {
			return false
		}
		next = 0
	}
	e.moveTo(next)
	return true
}

// Retreat moves to the previous entry, wrapping when repeat is all.
func (e *Engine) Retreat() bool {
	n := len(e.entries)
	if n == 0 {
		return false
	}
	prev := e.currentIndex - 1
	if e.currentIndex <= 0 {
		if e.repeat != RepeatAll {
			return false
		}
		prev = n - 1
	}
	e.moveTo(prev)
	return true
}

// SkipTo jumps directly to the given index. Out of range is a no-op.
func (e *Engine) SkipTo(i int) bool {
	if i < 0 || i >= len(e.entries) {
		return false
	}
	e.moveTo(i)
	return true
}

// moveTo applies the navigation bookkeeping shared by Advance,
// Retreat, and SkipTo.
func (e *Engine) moveTo(i int) {
	if cur, ok := e.Current(); ok {
		t := cur.Track
		e.lastPlayed = &t
	}
	e.previousIndex = e.currentIndex
	e.currentIndex = i
}

// enforceCapacity applies the over-capacity trim rule with incoming
// more entries on the way: keep the newest keepPrevious entries before
// current, current itself, and everything after it. With no current
// entry the tail is cut instead so the head of the queue survives.
func (e *Engine) enforceCapacity(incoming int) {
	if len(e.entries)+incoming <= e.capacity {
		return
	}
	if e.currentIndex < 0 {
		if len(e.entries) > e.capacity {
			e.dropTail(e.capacity)
		}
		return
	}
	firstKeep := e.currentIndex - e.keepPrevious
	if firstKeep <= 0 {
		return
	}
	e.dropHead(firstKeep)
}

func (e *Engine) dropHead(n int) {
	for _, en := range e.entries[:n] {
		if en.IsUser() {
			e.standardOrder = removeSeq(e.standardOrder, en.Seq)
			e.shuffleOrder = removeSeq(e.shuffleOrder, en.Seq)
		}
	}
	e.entries = append([]track.Entry(nil), e.entries[n:]...)
	e.currentIndex -= n
	if e.previousIndex >= 0 {
		if e.previousIndex < n {
			e.previousIndex = -1
		} else {
			e.previousIndex -= n
		}
	}
}

func (e *Engine) dropTail(max int) {
	for _, en := range e.entries[max:] {
		if en.IsUser() {
			e.standardOrder = removeSeq(e.standardOrder, en.Seq)
			e.shuffleOrder = removeSeq(e.shuffleOrder, en.Seq)
		}
	}
	e.entries = e.entries[:max]
	if e.previousIndex >= max {
		e.previousIndex = -1
	}
}

func (e *Engine) takeSeq() int64 {
	seq := e.nextSeq
	e.nextSeq++
	return seq
}

func (e *Engine) indexOfSeq(seq int64) int {
	for i, en := range e.entries {
		if en.Seq == seq {
			return i
		}
	}
	return -1
}

func countUser(entries []track.Entry) int {
	count := 0
	for _, en := range entries {
		if en.IsUser() {
			count++
		}
	}
	return count
}

func spliceMove(entries []track.Entry, from, to int) []track.Entry {
	entry := entries[from]
	entries = append(entries[:from], entries[from+1:]...)
	entries = append(entries, track.Entry{})
	copy(entries[to+1:], entries[to:])
	entries[to] = entry
	return entries
}

// remapIndex follows one slot through a move splice.
func remapIndex(idx, from, to int) int {
	switch {
	case idx < 0:
		return idx
	case idx == from:
		return to
	case from < idx && to >= idx:
		return idx - 1
	case from > idx && to <= idx:
		return idx + 1
	default:
		return idx
	}
}
