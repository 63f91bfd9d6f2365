package spotify

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/zmb3/spotify/v2"

	"github.com/osn942/spindle/internal/app/search"
)

func TestReleaseYear(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "full date", input: "2006-01-02", expected: 2006},
		{name: "year and month", input: "1999-11", expected: 1999},
		{name: "year only", input: "1987", expected: 1987},
		{name: "empty", input: "", expected: 0},
		{name: "garbage", input: "soon", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, releaseYear(tt.input))
		})
	}
}

func TestSeedID(t *testing.T) {
	assert.Equal(t, "hard-rock", seedID("Hard Rock"))
	assert.Equal(t, "j-pop", seedID(" J-Pop "))
	assert.Equal(t, "rock", seedID("rock"))
}

func TestYearClause(t *testing.T) {
	assert.Equal(t, "year:2000-2006", yearClause(search.YearRange{From: 2000, To: 2006}))
	assert.Equal(t, "year:2003", yearClause(search.YearRange{From: 2003, To: 2003}))
}

func TestGenreQuery(t *testing.T) {
	assert.Equal(t, `genre:"rock"`, genreQuery("rock", nil))
	assert.Equal(t, `genre:"hard-rock" year:2000-2010`,
		genreQuery("hard-rock", &search.YearRange{From: 2000, To: 2010}))
}

func TestConvertTrack(t *testing.T) {
	ft := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       "track1",
			Name:     "Song",
			Duration: 215000,
			Artists: []spotify.SimpleArtist{
				{ID: "artist1", Name: "Artist One"},
				{ID: "artist2", Name: "Artist Two"},
			},
		},
		Album: spotify.SimpleAlbum{
			ID:          "album1",
			Name:        "Album",
			ReleaseDate: "2004-06-15",
		},
	}

	c := &Client{}
	got := c.convertTrack(ft)

	assert.Equal(t, "track1", got.ID)
	assert.Equal(t, "Song", got.Name)
	assert.Equal(t, 215*time.Second, got.Duration)
	assert.Len(t, got.Artists, 2)
	assert.Equal(t, "artist1", got.Artists[0].ID)
	assert.Equal(t, "album1", got.Album.ID)
	assert.Equal(t, "Album", got.Album.Name)
	assert.Equal(t, 2004, got.Year)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(errors.New("not found")))
	assert.True(t, isRetryable(spotify.Error{Status: 429, Message: "rate limited"}))
	assert.True(t, isRetryable(spotify.Error{Status: 503, Message: "unavailable"}))
	assert.True(t, isRetryable(errors.New("HTTP 502 bad gateway")))
	assert.False(t, isRetryable(spotify.Error{Status: 404, Message: "gone"}))
}

func TestIsResync(t *testing.T) {
	assert.True(t, isResync(spotify.Error{Status: 429}))
	assert.True(t, isResync(spotify.Error{Status: 503}))
	assert.False(t, isResync(spotify.Error{Status: 500}))
	assert.True(t, isResync(errors.New("got 429 from upstream")))
	assert.False(t, isResync(errors.New("connection refused")))
}

func TestPickDevice(t *testing.T) {
	devices := []spotify.PlayerDevice{
		{ID: "d1", Name: "Kitchen", Active: false},
		{ID: "d2", Name: "Living Room", Active: true},
	}

	got := pickDevice(devices, "Kitchen")
	assert.Equal(t, spotify.ID("d1"), got.ID)

	got = pickDevice(devices, "")
	assert.Equal(t, spotify.ID("d2"), got.ID, "active device wins when no name is configured")

	assert.Nil(t, pickDevice(devices, "Garage"))

	inactive := []spotify.PlayerDevice{{ID: "d3", Name: "Office", Active: false}}
	got = pickDevice(inactive, "")
	assert.Equal(t, spotify.ID("d3"), got.ID, "first device is the fallback")
}
