package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// HistoryFilter rejects the last-played track and tracks already
// recommended this session.
type HistoryFilter struct{}

// NewHistoryFilter creates a new history filter.
func NewHistoryFilter() *HistoryFilter {
	return &HistoryFilter{}
}

// Name returns the filter name.
func (f *HistoryFilter) Name() string {
	return "history_filter"
}

// Description returns the filter description.
func (f *HistoryFilter) Description() string {
	return "直前に再生した楽曲と今セッションで推薦済みの楽曲を除外"
}

// ReturnCodes returns possible return codes.
func (f *HistoryFilter) ReturnCodes() []string {
	return []string{"last_played", "already_recommended"}
}

// AppliesTo returns which paths this filter applies to.
func (f *HistoryFilter) AppliesTo(path Path) bool {
	return true
}

// Check rejects recently heard or already recommended candidates.
func (f *HistoryFilter) Check(cand track.Track, exc *Exclusion) Result {
	if exc.LastPlayedID != "" && cand.ID == exc.LastPlayedID {
		return Reject("last_played")
	}
	if exc.RecommendedIDs[cand.ID] {
		return Reject("already_recommended")
	}
	return Accept()
}
