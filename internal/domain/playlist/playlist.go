// Package playlist provides playlist reference parsing.
package playlist

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Ref identifies a catalog playlist. Source keeps the original input
// for logging.
type Ref struct {
	ID     string // Catalog playlist ID
	Source string // URL, URI, or bare ID as supplied
}

// Parse extracts the playlist ID from a Spotify playlist URL
// (https://open.spotify.com/playlist/ID, including intl-XX variants),
// a URI (spotify:playlist:ID), or a bare ID.
func Parse(input string) (Ref, error) {
	id := extractID(input)
	if id == "" {
		return Ref{}, errors.Newf("invalid playlist reference: %q", input)
	}
	return Ref{ID: id, Source: strings.TrimSpace(input)}, nil
}

func extractID(input string) string {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}

	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a playlist ID
	return input
}
