// Package spotify implements the catalog and the Connect playback
// backend against the Spotify Web API.
package spotify

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/domain/playlist"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// searchPageLimit is the Spotify search API page maximum.
const searchPageLimit = 50

// Client is the catalog implementation. All outbound calls go through
// one rate limiter and a retry wrapper that maps throttling and
// service unavailability onto the resync sentinel.
type Client struct {
	api        *spotify.Client
	limiter    *rate.Limiter
	market     string
	maxRetries int
	retryDelay time.Duration

	genreMu    sync.Mutex
	genreSeeds map[string]bool // available genre seeds, lazily fetched

	artistMu     sync.Mutex
	artistGenres map[string][]string // artist id -> genre labels
}

// New creates a catalog client authenticated with the configured
// refresh token or the token file written by the auth helper.
func New(ctx context.Context, cfg config.SpotifyConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	token, err := LoadToken(cfg)
	if err != nil {
		return nil, err
	}

	// HTTP client with auto-refresh capability
	httpClient := NewAuthenticator(cfg).Client(ctx, token)

	return &Client{
		api:          spotify.New(httpClient),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst),
		market:       cfg.Market,
		maxRetries:   3,
		retryDelay:   time.Second,
		artistGenres: make(map[string][]string),
	}, nil
}

// GetTrack retrieves track metadata by ID.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	var result *spotify.FullTrack
	err := c.call(ctx, func() error {
		t, err := c.api.GetTrack(ctx, spotify.ID(trackID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	out := c.convertTrack(result)
	c.attachGenres(ctx, []track.Track{out})
	return &out, nil
}

// ResolveGenres maps genre names onto the catalog's registered genre
// seeds. Names the catalog does not know come back with an empty ID.
func (c *Client) ResolveGenres(ctx context.Context, names []string) ([]search.Genre, error) {
	seeds, err := c.loadGenreSeeds(ctx)
	if err != nil {
		return nil, err
	}

	genres := make([]search.Genre, 0, len(names))
	for _, name := range names {
		g := search.Genre{Name: name}
		if id := seedID(name); seeds[id] {
			g.ID = id
		}
		genres = append(genres, g)
	}
	return genres, nil
}

// loadGenreSeeds fetches the registered genre seed list once and keeps
// it for the lifetime of the client. The list is static per session.
func (c *Client) loadGenreSeeds(ctx context.Context) (map[string]bool, error) {
	c.genreMu.Lock()
	defer c.genreMu.Unlock()

	if c.genreSeeds != nil {
		return c.genreSeeds, nil
	}

	var seeds []string
	err := c.call(ctx, func() error {
		s, err := c.api.GetAvailableGenreSeeds(ctx)
		if err != nil {
			return err
		}
		seeds = s
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get genre seeds")
	}

	set := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		set[strings.ToLower(s)] = true
	}
	c.genreSeeds = set
	return set, nil
}

// seedID normalizes a genre name the way the seed list spells it.
func seedID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// SearchByGenreID searches tracks by registered genre seed, optionally
// bounded to a production-year window.
func (c *Client) SearchByGenreID(ctx context.Context, genreID string, years *search.YearRange, limit int) ([]track.Track, error) {
	return c.searchTracks(ctx, genreQuery(genreID, years), limit)
}

// SearchByGenreName searches tracks by free-form genre name. Callers
// confirm matches client-side; the API treats the name as a hint.
func (c *Client) SearchByGenreName(ctx context.Context, name string, years *search.YearRange, limit int) ([]track.Track, error) {
	return c.searchTracks(ctx, genreQuery(name, years), limit)
}

// SearchByYearRange searches tracks by production-year window alone.
func (c *Client) SearchByYearRange(ctx context.Context, years search.YearRange, limit int) ([]track.Track, error) {
	return c.searchTracks(ctx, yearClause(years), limit)
}

func genreQuery(value string, years *search.YearRange) string {
	q := `genre:"` + value + `"`
	if years != nil {
		q += " " + yearClause(*years)
	}
	return q
}

func yearClause(years search.YearRange) string {
	if years.From == years.To {
		return "year:" + strconv.Itoa(years.From)
	}
	return "year:" + strconv.Itoa(years.From) + "-" + strconv.Itoa(years.To)
}

// searchTracks runs a track search query and converts the first page.
func (c *Client) searchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > searchPageLimit {
		limit = searchPageLimit
	}

	var result *spotify.SearchResult
	err := c.call(ctx, func() error {
		r, err := c.api.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search %q", query)
	}
	if result.Tracks == nil {
		return nil, nil
	}

	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		tracks = append(tracks, c.convertTrack(&result.Tracks.Tracks[i]))
	}
	c.attachGenres(ctx, tracks)
	return tracks, nil
}

// SearchByArtist returns the artist's top tracks.
func (c *Client) SearchByArtist(ctx context.Context, artistID string, limit int) ([]track.Track, error) {
	var result []spotify.FullTrack
	err := c.call(ctx, func() error {
		ts, err := c.api.GetArtistsTopTracks(ctx, spotify.ID(artistID), c.market)
		if err != nil {
			return err
		}
		result = ts
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get artist top tracks")
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	tracks := make([]track.Track, 0, len(result))
	for i := range result {
		tracks = append(tracks, c.convertTrack(&result[i]))
	}
	c.attachGenres(ctx, tracks)
	return tracks, nil
}

// SearchByAlbum returns the album's tracks.
func (c *Client) SearchByAlbum(ctx context.Context, albumID string, limit int) ([]track.Track, error) {
	var album *spotify.FullAlbum
	err := c.call(ctx, func() error {
		a, err := c.api.GetAlbum(ctx, spotify.ID(albumID), spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	year := releaseYear(album.ReleaseDate)
	ref := track.Album{ID: string(album.ID), Name: album.Name}

	items := album.Tracks.Tracks
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	tracks := make([]track.Track, 0, len(items))
	for i := range items {
		t := convertSimpleTrack(&items[i])
		t.Album = ref
		t.Year = year
		tracks = append(tracks, t)
	}
	c.attachGenres(ctx, tracks)
	return tracks, nil
}

// RecentlyAdded returns the user's most recently saved tracks.
func (c *Client) RecentlyAdded(ctx context.Context, limit int) ([]track.Track, error) {
	if limit <= 0 || limit > searchPageLimit {
		limit = searchPageLimit
	}

	var page *spotify.SavedTrackPage
	err := c.call(ctx, func() error {
		p, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Market(c.market))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get saved tracks")
	}

	tracks := make([]track.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, c.convertTrack(&page.Tracks[i].FullTrack))
	}
	c.attachGenres(ctx, tracks)
	return tracks, nil
}

// PlaylistTracks retrieves tracks from a playlist, up to limit.
func (c *Client) PlaylistTracks(ctx context.Context, playlistURL string, limit int) ([]track.Track, error) {
	ref, err := playlist.Parse(playlistURL)
	if err != nil {
		return nil, err
	}

	var tracks []track.Track
	offset := 0
	pageSize := 100

	for limit <= 0 || len(tracks) < limit {
		var page *spotify.PlaylistItemPage
		err := c.call(ctx, func() error {
			p, err := c.api.GetPlaylistItems(ctx, spotify.ID(ref.ID),
				spotify.Limit(pageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for i := range page.Items {
			// Only process tracks (exclude episodes)
			if ft := page.Items[i].Track.Track; ft != nil && ft.ID != "" {
				tracks = append(tracks, c.convertTrack(ft))
			}
		}

		if len(page.Items) < pageSize {
			break
		}
		offset += pageSize
	}

	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	c.attachGenres(ctx, tracks)
	return tracks, nil
}

// CheckPlaylist verifies a playlist exists and is accessible without
// fetching its tracks. Used for startup validation.
func (c *Client) CheckPlaylist(ctx context.Context, playlistURL string) error {
	ref, err := playlist.Parse(playlistURL)
	if err != nil {
		return err
	}

	err = c.call(ctx, func() error {
		_, err := c.api.GetPlaylistItems(ctx, spotify.ID(ref.ID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}
	return nil
}

// attachGenres fills in track genres from the primary artist. Spotify
// carries genre labels on artists, not tracks. Lookups are batched and
// cached; a failed batch just leaves those tracks without genres.
func (c *Client) attachGenres(ctx context.Context, tracks []track.Track) {
	missing := make([]spotify.ID, 0, len(tracks))
	seen := make(map[string]bool)

	c.artistMu.Lock()
	for _, t := range tracks {
		for _, a := range t.Artists {
			if a.ID == "" || seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			if _, ok := c.artistGenres[a.ID]; !ok {
				missing = append(missing, spotify.ID(a.ID))
			}
		}
	}
	c.artistMu.Unlock()

	// Spotify allows max 50 artists per request
	for i := 0; i < len(missing); i += 50 {
		end := i + 50
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[i:end]

		var artists []*spotify.FullArtist
		err := c.call(ctx, func() error {
			as, err := c.api.GetArtists(ctx, batch...)
			if err != nil {
				return err
			}
			artists = as
			return nil
		})
		if err != nil {
			zlog.Warn().Msgf("spotify: artist genre lookup failed: %v", err)
			return
		}

		c.artistMu.Lock()
		for _, a := range artists {
			if a != nil {
				c.artistGenres[string(a.ID)] = a.Genres
			}
		}
		c.artistMu.Unlock()
	}

	c.artistMu.Lock()
	defer c.artistMu.Unlock()
	for i := range tracks {
		if len(tracks[i].Genres) > 0 || len(tracks[i].Artists) == 0 {
			continue
		}
		tracks[i].Genres = c.artistGenres[tracks[i].Artists[0].ID]
	}
}

// convertTrack converts a Spotify FullTrack to a domain Track. Genres
// are attached separately from artist metadata.
func (c *Client) convertTrack(t *spotify.FullTrack) track.Track {
	out := convertSimpleTrack(&t.SimpleTrack)
	out.Album = track.Album{ID: string(t.Album.ID), Name: t.Album.Name}
	out.Year = releaseYear(t.Album.ReleaseDate)
	return out
}

func convertSimpleTrack(t *spotify.SimpleTrack) track.Track {
	artists := make([]track.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = track.Artist{ID: string(a.ID), Name: a.Name}
	}
	return track.Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  artists,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

// releaseYear parses the year out of a Spotify release date, which may
// be "2006", "2006-01" or "2006-01-02".
func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// call runs one API operation through the rate limiter, retrying
// transient failures with linear backoff. Throttling or service
// unavailability that survives the retries is marked as a resync
// condition so the recommendation pipeline reschedules instead of
// giving up.
func (c *Client) call(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}

	lastErr = errors.Wrap(lastErr, "max retries exceeded")
	if isResync(lastErr) {
		lastErr = errors.Mark(lastErr, search.ErrResync)
	}
	return lastErr
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var serr spotify.Error
	if errors.As(err, &serr) {
		return serr.Status == 429 || serr.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// isResync checks if an error signals the transient resync condition:
// the catalog is throttling or re-synchronizing rather than broken.
func isResync(err error) bool {
	var serr spotify.Error
	if errors.As(err, &serr) {
		return serr.Status == 429 || serr.Status == 503
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "503")
}
