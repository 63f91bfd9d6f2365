package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// QueuedFilter rejects tracks already present in the queue.
type QueuedFilter struct{}

// NewQueuedFilter creates a new queued filter.
func NewQueuedFilter() *QueuedFilter {
	return &QueuedFilter{}
}

// Name returns the filter name.
func (f *QueuedFilter) Name() string {
	return "queued_filter"
}

// Description returns the filter description.
func (f *QueuedFilter) Description() string {
	return "既にキュー内にある楽曲を候補から除外"
}

// ReturnCodes returns possible return codes.
func (f *QueuedFilter) ReturnCodes() []string {
	return []string{"already_queued"}
}

// AppliesTo returns which paths this filter applies to.
func (f *QueuedFilter) AppliesTo(path Path) bool {
	return true
}

// Check rejects candidates whose ID is already queued.
func (f *QueuedFilter) Check(cand track.Track, exc *Exclusion) Result {
	if exc.QueuedIDs[cand.ID] {
		return Reject("already_queued")
	}
	return Accept()
}
