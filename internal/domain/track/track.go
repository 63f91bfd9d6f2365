// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"
)

// Artist is a reference to a catalog artist.
type Artist struct {
	ID   string // Catalog artist ID
	Name string // Display name
}

// Album is a reference to a catalog album.
type Album struct {
	ID   string // Catalog album ID
	Name string // Album title
}

// Track represents a catalog track entity.
// Contains only information retrieved from the catalog.
type Track struct {
	ID        string        // Catalog track ID
	Name      string        // Track name
	Artists   []Artist      // Artist references
	Album     Album         // Album reference
	Duration  time.Duration // Track duration
	Genres    []string      // Genre labels (from artist info)
	Year      int           // Production year (0 if unknown)
	Grouping  string        // Custom grouping tag (empty if unset)
	StreamURL string        // Direct stream URL (URL-based backends)
}

// ArtistKey returns a stable identity for the primary artist,
// preferring the catalog ID over the display name.
func (t Track) ArtistKey() string {
	if len(t.Artists) == 0 {
		return ""
	}
	if t.Artists[0].ID != "" {
		return t.Artists[0].ID
	}
	return strings.ToLower(t.Artists[0].Name)
}

// ArtistNames returns the display names of all artists.
func (t Track) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// HasGenre reports whether the track carries the given genre label,
// compared case-insensitively.
func (t Track) HasGenre(name string) bool {
	for _, g := range t.Genres {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// SharesGenre reports whether the track shares at least one genre
// label with other, compared case-insensitively.
func (t Track) SharesGenre(other Track) bool {
	for _, g := range other.Genres {
		if t.HasGenre(g) {
			return true
		}
	}
	return false
}

// Origin represents how an entry got into the queue.
type Origin string

const (
	OriginUser           Origin = "USER"
	OriginRecommendation Origin = "RECOMMENDATION"
)

// Entry represents a track in the playback queue.
type Entry struct {
	Track   Track     // Catalog track info
	Origin  Origin    // How the entry was added
	Seq     int64     // Stable insertion sequence number
	AddedAt time.Time // Time when added to queue
}

// IsUser reports whether the entry was added explicitly by the user.
func (e Entry) IsUser() bool { return e.Origin == OriginUser }

// IsRecommendation reports whether the entry was auto-inserted by the
// recommendation pipeline.
func (e Entry) IsRecommendation() bool { return e.Origin == OriginRecommendation }
