package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osn942/spindle/internal/domain/track"
)

func TestEngine_ToggleShuffle_RoundTrip(t *testing.T) {
	e := New(Config{})
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	e.PlayAlbum(mkTracks(ids...), 2)
	original := queueIDs(e)

	require.True(t, e.ToggleShuffle())
	shuffled := queueIDs(e)

	// Prefix through current is untouched.
	assert.Equal(t, original[:3], shuffled[:3])
	// Upcoming entries are a permutation of the same set.
	assert.ElementsMatch(t, original[3:], shuffled[3:])
	assert.Equal(t, 2, e.CurrentIndex())
	assertOrderBijection(t, e)

	require.False(t, e.ToggleShuffle())
	assert.Equal(t, original, queueIDs(e))
	assertOrderBijection(t, e)
}

func TestEngine_ToggleShuffle_RoundTripAfterAdvancing(t *testing.T) {
	e := New(Config{})
	e.PlayAlbum(mkTracks("a", "b", "c", "d", "e", "f"), 0)

	require.True(t, e.ToggleShuffle())
	// Play through two shuffled entries.
	require.True(t, e.Advance())
	require.True(t, e.Advance())
	played := queueIDs(e)[:3]

	require.False(t, e.ToggleShuffle())

	got := queueIDs(e)
	// The played prefix stays exactly as listened.
	assert.Equal(t, played, got[:3])
	// The rest comes back in standard order.
	var wantUpcoming []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		seen := false
		for _, p := range played {
			if p == id {
				seen = true
				break
			}
		}
		if !seen {
			wantUpcoming = append(wantUpcoming, id)
		}
	}
	assert.Equal(t, wantUpcoming, got[3:])
	assertOrderBijection(t, e)
}

func TestEngine_ToggleShuffle_LeavesRecommendationsAfterUsers(t *testing.T) {
	e := New(Config{})
	e.PlayAlbum(mkTracks("u0", "u1", "u2", "u3"), 0)
	e.Add(mkTracks("r1", "r2"), false, track.OriginRecommendation)

	require.True(t, e.ToggleShuffle())

	got := queueIDs(e)
	assert.Equal(t, "u0", got[0])
	// Recommendations sit at the tail in their original relative order.
	assert.Equal(t, []string{"r1", "r2"}, got[4:])
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, got[1:4])
	assertOrderBijection(t, e)
}

func TestEngine_ToggleShuffle_EmptyAndSingle(t *testing.T) {
	e := New(Config{})
	require.True(t, e.ToggleShuffle())
	require.False(t, e.ToggleShuffle())

	e.PlayTrack(mkTrack("only"), nil)
	require.True(t, e.ToggleShuffle())
	assert.Equal(t, []string{"only"}, queueIDs(e))
	assert.Equal(t, 0, e.CurrentIndex())
	assertOrderBijection(t, e)
}

func TestEngine_ToggleShuffle_AddedDuringShuffleSurvivesDisable(t *testing.T) {
	e := New(Config{})
	e.PlayAlbum(mkTracks("a", "b", "c", "d"), 0)
	require.True(t, e.ToggleShuffle())

	e.Add(mkTracks("x"), true, track.OriginUser)
	require.False(t, e.ToggleShuffle())

	got := queueIDs(e)
	assert.Len(t, got, 5)
	assert.Equal(t, "a", got[0])
	assert.Contains(t, got, "x")
	assertOrderBijection(t, e)
}

func TestEngine_ToggleShuffle_PreservesPreviousEntry(t *testing.T) {
	e := New(Config{})
	e.PlayAlbum(mkTracks("a", "b", "c", "d", "e"), 0)
	require.True(t, e.Advance())
	require.True(t, e.Retreat()) // previousIndex now points past current
	require.Equal(t, 1, e.PreviousIndex())

	require.True(t, e.ToggleShuffle())

	prev := e.PreviousIndex()
	if prev >= 0 {
		entry, ok := e.EntryAt(prev)
		require.True(t, ok)
		assert.Equal(t, "b", entry.Track.ID)
	}
}
