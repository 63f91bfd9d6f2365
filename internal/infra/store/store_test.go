package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/domain/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spindle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storeTrack(id string, year int) track.Track {
	return track.Track{
		ID:       id,
		Name:     "Track " + id,
		Artists:  []track.Artist{{ID: "a-" + id, Name: "Artist " + id}},
		Album:    track.Album{ID: "al-" + id, Name: "Album " + id},
		Duration: 3*time.Minute + 21*time.Second,
		Genres:   []string{"shibuya-kei", "city pop"},
		Year:     year,
		Grouping: "Mellow",
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	s := openTestStore(t)

	_, _, ok, err := s.LoadState(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last := storeTrack("prev", 1999)
	snap := queue.Snapshot{
		Entries: []track.Entry{
			{Track: storeTrack("t1", 2001), Origin: track.OriginUser, Seq: 1, AddedAt: time.Unix(1700000000, 0)},
			{Track: storeTrack("t2", 2002), Origin: track.OriginRecommendation, Seq: 2, AddedAt: time.Unix(1700000600, 0)},
		},
		CurrentIndex:  1,
		PreviousIndex: 0,
		Shuffle:       true,
		Repeat:        queue.RepeatAll,
		StandardOrder: []int64{1},
		ShuffleOrder:  []int64{1},
		LastPlayed:    &last,
		NextSeq:       3,
	}
	require.NoError(t, s.SaveState(ctx, snap, 64))

	got, volume, ok, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 64, volume)
	assert.Equal(t, snap.CurrentIndex, got.CurrentIndex)
	assert.Equal(t, snap.PreviousIndex, got.PreviousIndex)
	assert.Equal(t, snap.Shuffle, got.Shuffle)
	assert.Equal(t, snap.Repeat, got.Repeat)
	assert.Equal(t, snap.StandardOrder, got.StandardOrder)
	assert.Equal(t, snap.ShuffleOrder, got.ShuffleOrder)
	assert.Equal(t, snap.NextSeq, got.NextSeq)
	require.NotNil(t, got.LastPlayed)
	assert.Equal(t, last, *got.LastPlayed)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, snap.Entries[0], got.Entries[0])
	assert.Equal(t, snap.Entries[1], got.Entries[1])
}

func TestStoreSaveReplacesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := queue.Snapshot{
		Entries: []track.Entry{
			{Track: storeTrack("t1", 2001), Origin: track.OriginUser, Seq: 1},
		},
		CurrentIndex:  0,
		PreviousIndex: -1,
		Repeat:        queue.RepeatOff,
		NextSeq:       2,
	}
	require.NoError(t, s.SaveState(ctx, first, 50))

	second := queue.Snapshot{
		Entries: []track.Entry{
			{Track: storeTrack("x1", 2010), Origin: track.OriginUser, Seq: 5},
			{Track: storeTrack("x2", 2011), Origin: track.OriginUser, Seq: 6},
			{Track: storeTrack("x3", 2012), Origin: track.OriginRecommendation, Seq: 7},
		},
		CurrentIndex:  2,
		PreviousIndex: 1,
		Repeat:        queue.RepeatOne,
		StandardOrder: []int64{5, 6},
		ShuffleOrder:  []int64{5, 6},
		NextSeq:       8,
	}
	require.NoError(t, s.SaveState(ctx, second, 80))

	got, volume, ok, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 80, volume)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "x1", got.Entries[0].Track.ID)
	assert.Equal(t, "x3", got.Entries[2].Track.ID)
	assert.Equal(t, queue.RepeatOne, got.Repeat)
	assert.Nil(t, got.LastPlayed)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spindle.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	snap := queue.Snapshot{
		Entries: []track.Entry{
			{Track: storeTrack("t1", 2001), Origin: track.OriginUser, Seq: 1},
		},
		CurrentIndex:  0,
		PreviousIndex: -1,
		Repeat:        queue.RepeatOff,
		NextSeq:       2,
	}
	require.NoError(t, s.SaveState(ctx, snap, 42))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, volume, ok, err := s2.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, volume)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "t1", got.Entries[0].Track.ID)
}
