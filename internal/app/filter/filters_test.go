package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osn942/spindle/internal/domain/track"
)

func testExclusion() *Exclusion {
	return &Exclusion{
		Seed: track.Track{ID: "seed", Genres: []string{"Rock", "Indie"}},
		QueuedIDs: map[string]bool{
			"queued-1": true,
			"queued-2": true,
		},
		LastPlayedID: "last-played",
		RecommendedIDs: map[string]bool{
			"recommended-1": true,
		},
	}
}

func TestSeedFilter(t *testing.T) {
	f := NewSeedFilter()
	exc := testExclusion()

	result := f.Check(track.Track{ID: "seed"}, exc)
	assert.False(t, result.Accepted)
	assert.Equal(t, "seed_track", result.Code)

	result = f.Check(track.Track{ID: "other"}, exc)
	assert.True(t, result.Accepted)
}

func TestQueuedFilter(t *testing.T) {
	f := NewQueuedFilter()
	exc := testExclusion()

	tests := []struct {
		name     string
		trackID  string
		accepted bool
	}{
		{name: "queued track rejected", trackID: "queued-1", accepted: false},
		{name: "another queued track rejected", trackID: "queued-2", accepted: false},
		{name: "unqueued track accepted", trackID: "fresh", accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(track.Track{ID: tt.trackID}, exc)
			assert.Equal(t, tt.accepted, result.Accepted)
		})
	}
}

func TestHistoryFilter(t *testing.T) {
	f := NewHistoryFilter()
	exc := testExclusion()

	result := f.Check(track.Track{ID: "last-played"}, exc)
	assert.False(t, result.Accepted)
	assert.Equal(t, "last_played", result.Code)

	result = f.Check(track.Track{ID: "recommended-1"}, exc)
	assert.False(t, result.Accepted)
	assert.Equal(t, "already_recommended", result.Code)

	result = f.Check(track.Track{ID: "fresh"}, exc)
	assert.True(t, result.Accepted)
}

func TestHistoryFilter_EmptyLastPlayed(t *testing.T) {
	f := NewHistoryFilter()
	exc := &Exclusion{Seed: track.Track{ID: "seed"}}

	// A track with an empty ID must not match the empty last-played.
	result := f.Check(track.Track{ID: ""}, exc)
	assert.True(t, result.Accepted)
}

func TestGenreAgreementFilter(t *testing.T) {
	f := NewGenreAgreementFilter()
	exc := testExclusion()

	tests := []struct {
		name     string
		genres   []string
		accepted bool
	}{
		{name: "shared genre accepted", genres: []string{"Rock"}, accepted: true},
		{name: "case-insensitive match accepted", genres: []string{"indie"}, accepted: true},
		{name: "no shared genre rejected", genres: []string{"Jazz"}, accepted: false},
		{name: "no genres rejected", genres: nil, accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(track.Track{ID: "cand", Genres: tt.genres}, exc)
			assert.Equal(t, tt.accepted, result.Accepted)
			if !tt.accepted {
				assert.Equal(t, "genre_mismatch", result.Code)
			}
		})
	}
}
