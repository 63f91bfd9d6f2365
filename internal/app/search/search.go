// Package search provides the candidate search strategies for the
// recommendation pipeline. Strategies are stateless: every search is
// driven entirely by the seed and the configured limits.
package search

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osn942/spindle/internal/domain/track"
)

// ErrResync marks catalog errors caused by a transient resync
// condition (auth/session loss, library re-import). Callers tell it
// apart from hard failures with errors.Is and retry instead of giving
// up.
var ErrResync = errors.New("catalog resync in progress")

// abortSearch reports errors that must stop a search instead of
// falling through to the next source.
func abortSearch(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrResync)
}

// Genre is a catalog genre reference. Name-only tags carry no ID.
type Genre struct {
	ID   string
	Name string
}

// YearRange bounds a production-year search, inclusive on both ends.
type YearRange struct {
	From int
	To   int
}

// Seed carries one seed track with its resolved genre information.
type Seed struct {
	Track      track.Track
	RealGenres []Genre  // catalog-backed genre ids
	NameOnly   []string // unregistered genre tags
}

// HasGenreInfo reports whether any genre information exists.
func (s Seed) HasGenreInfo() bool {
	return len(s.RealGenres) > 0 || len(s.NameOnly) > 0
}

// Catalog defines the catalog operations needed by the search
// strategies and the recommendation pipeline.
type Catalog interface {
	// ResolveGenres maps genre names to catalog genres. Names the
	// catalog does not know come back with an empty ID.
	ResolveGenres(ctx context.Context, names []string) ([]Genre, error)
	SearchByGenreID(ctx context.Context, genreID string, years *YearRange, limit int) ([]track.Track, error)
	SearchByGenreName(ctx context.Context, name string, years *YearRange, limit int) ([]track.Track, error)
	SearchByArtist(ctx context.Context, artistID string, limit int) ([]track.Track, error)
	SearchByAlbum(ctx context.Context, albumID string, limit int) ([]track.Track, error)
	SearchByYearRange(ctx context.Context, years YearRange, limit int) ([]track.Track, error)
	RecentlyAdded(ctx context.Context, limit int) ([]track.Track, error)
	PlaylistTracks(ctx context.Context, playlistURL string, limit int) ([]track.Track, error)
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
}

// Strategy is the interface for candidate search strategies.
type Strategy interface {
	// Search retrieves up to limit candidates for the seed.
	// matchedGenre reports whether the results were confirmed against
	// the seed's genre information.
	Search(ctx context.Context, seed Seed, limit int) (candidates []track.Track, matchedGenre bool, err error)

	// Name returns the strategy name (used in config).
	Name() string
}

// collector accumulates unique candidates up to a limit.
type collector struct {
	seen  map[string]bool
	out   []track.Track
	limit int
}

func newCollector(limit int) *collector {
	return &collector{seen: make(map[string]bool), limit: limit}
}

func (c *collector) add(tracks ...track.Track) {
	for _, t := range tracks {
		if t.ID == "" || c.seen[t.ID] {
			continue
		}
		if c.full() {
			return
		}
		c.seen[t.ID] = true
		c.out = append(c.out, t)
	}
}

func (c *collector) size() int { return len(c.out) }

func (c *collector) full() bool { return c.limit > 0 && len(c.out) >= c.limit }

func (c *collector) tracks() []track.Track { return c.out }

func newRNG() *rand.Rand {
	var buf [8]byte
	seed := time.Now().UnixNano()
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return rand.New(rand.NewSource(seed))
}
