package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

func testReporter(t *testing.T, handler http.HandlerFunc) *Reporter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r, err := New(config.LastFMConfig{
		APIKey:     "test-api-key",
		APISecret:  "test-api-secret",
		SessionKey: "test-session-key",
	})
	require.NoError(t, err)
	r.baseURL = server.URL + "/"
	return r
}

func reportedTrack() track.Track {
	return track.Track{
		ID:       "track-1",
		Name:     "Plastic Love",
		Artists:  []track.Artist{{ID: "artist-1", Name: "Mariya Takeuchi"}},
		Album:    track.Album{ID: "album-1", Name: "Variety"},
		Duration: 4*time.Minute + 52*time.Second,
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.LastFMConfig{APIKey: "key-only"})
	assert.Error(t, err)
}

func TestNowPlaying(t *testing.T) {
	var form url.Values
	r := testReporter(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseForm())
		form = req.PostForm
		fmt.Fprint(w, `{"nowplaying":{"track":{"#text":"Plastic Love"}}}`)
	})

	err := r.NowPlaying(context.Background(), reportedTrack())
	require.NoError(t, err)

	assert.Equal(t, "track.updateNowPlaying", form.Get("method"))
	assert.Equal(t, "Mariya Takeuchi", form.Get("artist"))
	assert.Equal(t, "Plastic Love", form.Get("track"))
	assert.Equal(t, "Variety", form.Get("album"))
	assert.Equal(t, "292", form.Get("duration"))
	assert.Equal(t, "test-api-key", form.Get("api_key"))
	assert.Equal(t, "test-session-key", form.Get("sk"))
	assert.Equal(t, "json", form.Get("format"))
	assert.Len(t, form.Get("api_sig"), 32)
}

func TestReportPlay(t *testing.T) {
	var form url.Values
	r := testReporter(t, func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseForm())
		form = req.PostForm
		fmt.Fprint(w, `{"scrobbles":{"@attr":{"accepted":1,"ignored":0}}}`)
	})

	startedAt := time.Unix(1750000000, 0)
	err := r.ReportPlay(context.Background(), reportedTrack(), startedAt)
	require.NoError(t, err)

	assert.Equal(t, "track.scrobble", form.Get("method"))
	assert.Equal(t, "Mariya Takeuchi", form.Get("artist"))
	assert.Equal(t, "Plastic Love", form.Get("track"))
	assert.Equal(t, "1750000000", form.Get("timestamp"))
}

func TestReportPlayAPIError(t *testing.T) {
	r := testReporter(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"error":9,"message":"Invalid session key - Please re-authenticate"}`)
	})

	err := r.ReportPlay(context.Background(), reportedTrack(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid session key")
}

func TestReportPlayServerError(t *testing.T) {
	r := testReporter(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := r.ReportPlay(context.Background(), reportedTrack(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSkipsTracksWithoutArtistOrName(t *testing.T) {
	called := false
	r := testReporter(t, func(w http.ResponseWriter, req *http.Request) {
		called = true
	})

	err := r.NowPlaying(context.Background(), track.Track{Name: "No Artist"})
	require.NoError(t, err)
	err = r.ReportPlay(context.Background(), track.Track{
		Artists: []track.Artist{{ID: "a", Name: "No Name"}},
	}, time.Now())
	require.NoError(t, err)

	assert.False(t, called)
}

func TestSignExcludesFormat(t *testing.T) {
	r := &Reporter{apiKey: "key", apiSecret: "secret", sessionKey: "session"}

	params := url.Values{}
	params.Set("method", "track.scrobble")
	params.Set("artist", "Tatsuro Yamashita")
	params.Set("track", "Sparkle")
	params.Set("api_key", "key")
	params.Set("sk", "session")
	sig := r.sign(params)
	assert.Len(t, sig, 32)

	withFormat := url.Values{}
	for k, v := range params {
		withFormat[k] = v
	}
	withFormat.Set("format", "json")
	assert.Equal(t, sig, r.sign(withFormat))

	params.Set("track", "Ride On Time")
	assert.NotEqual(t, sig, r.sign(params))
}
