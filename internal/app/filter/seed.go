package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// SeedFilter rejects the seed track itself.
type SeedFilter struct{}

// NewSeedFilter creates a new seed filter.
func NewSeedFilter() *SeedFilter {
	return &SeedFilter{}
}

// Name returns the filter name.
func (f *SeedFilter) Name() string {
	return "seed_filter"
}

// Description returns the filter description.
func (f *SeedFilter) Description() string {
	return "シード楽曲自身を候補から除外"
}

// ReturnCodes returns possible return codes.
func (f *SeedFilter) ReturnCodes() []string {
	return []string{"seed_track"}
}

// AppliesTo returns which paths this filter applies to.
func (f *SeedFilter) AppliesTo(path Path) bool {
	return true
}

// Check rejects candidates with the seed's track ID.
func (f *SeedFilter) Check(cand track.Track, exc *Exclusion) Result {
	if cand.ID == exc.Seed.ID {
		return Reject("seed_track")
	}
	return Accept()
}
