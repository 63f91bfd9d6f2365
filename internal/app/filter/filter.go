// Package filter provides the exclusion filter chain for
// recommendation candidates.
package filter

import (
	"github.com/osn942/spindle/internal/domain/track"
)

// Path identifies which pipeline path produced a candidate.
type Path string

const (
	// PathGenre covers genre-id and genre-name searches.
	PathGenre Path = "genre"
	// PathFallback covers the no-genre-information cascade.
	PathFallback Path = "fallback"
)

// Exclusion carries the queue and session context candidates are
// checked against.
type Exclusion struct {
	Seed           track.Track
	QueuedIDs      map[string]bool
	LastPlayedID   string
	RecommendedIDs map[string]bool
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "already_queued", "genre_mismatch"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for candidate filters.
type Filter interface {
	// Name returns the filter name (used in logs).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// AppliesTo reports whether the filter runs for the given path.
	AppliesTo(path Path) bool
	// Check performs the filter check.
	Check(cand track.Track, exc *Exclusion) Result
}
