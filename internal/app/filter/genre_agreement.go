package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// GenreAgreementFilter rejects candidates sharing no genre with the
// seed. It only runs on genre search paths; the pure fallback path has
// no genre information to agree with, so irrelevant tracks are never
// backfilled there by definition.
type GenreAgreementFilter struct{}

// NewGenreAgreementFilter creates a new genre agreement filter.
func NewGenreAgreementFilter() *GenreAgreementFilter {
	return &GenreAgreementFilter{}
}

// Name returns the filter name.
func (f *GenreAgreementFilter) Name() string {
	return "genre_agreement_filter"
}

// Description returns the filter description.
func (f *GenreAgreementFilter) Description() string {
	return "シードとジャンルが一致しない候補を除外（ジャンル検索パスのみ）"
}

// ReturnCodes returns possible return codes.
func (f *GenreAgreementFilter) ReturnCodes() []string {
	return []string{"genre_mismatch"}
}

// AppliesTo returns which paths this filter applies to.
func (f *GenreAgreementFilter) AppliesTo(path Path) bool {
	return path == PathGenre
}

// Check rejects candidates that share no genre label with the seed.
func (f *GenreAgreementFilter) Check(cand track.Track, exc *Exclusion) Result {
	if !cand.SharesGenre(exc.Seed) {
		return Reject("genre_mismatch")
	}
	return Accept()
}
