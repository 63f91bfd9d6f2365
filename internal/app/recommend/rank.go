package recommend

import (
	"sort"
	"strings"

	"github.com/osn942/spindle/internal/domain/track"
)

// rank orders candidates into fixed buckets: artist already among the
// user-queued tracks, then grouping already among them, then year
// proximity to the seed. Order inside a bucket is randomized; the
// buckets themselves never move.
func (p *Pipeline) rank(candidates []track.Track, seed track.Track, req Request) []track.Track {
	if len(candidates) <= 1 {
		return candidates
	}
	ranked := make([]track.Track, len(candidates))
	copy(ranked, candidates)

	p.rng.Shuffle(len(ranked), func(i, j int) {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankKey(ranked[i], seed, req) < rankKey(ranked[j], seed, req)
	})
	return ranked
}

// rankKey maps a candidate to its bucket. Lower sorts first.
func rankKey(t track.Track, seed track.Track, req Request) int {
	key := yearTier(t.Year, seed.Year)
	if t.Grouping == "" || !req.UserGroupings[strings.ToLower(t.Grouping)] {
		key += 3
	}
	if !req.UserArtists[t.ArtistKey()] {
		key += 6
	}
	return key
}

// yearTier buckets year proximity: within 3 years, within 5, rest.
// Unknown years land in the last tier.
func yearTier(candidateYear, seedYear int) int {
	if candidateYear == 0 || seedYear == 0 {
		return 2
	}
	d := candidateYear - seedYear
	if d < 0 {
		d = -d
	}
	switch {
	case d <= 3:
		return 0
	case d <= 5:
		return 1
	default:
		return 2
	}
}

// antiCluster keeps the first antiClusterWindow slots free of repeated
// artists. When that is impossible with the available candidates the
// constraint is dropped for the whole call, never partially.
func (p *Pipeline) antiCluster(tracks []track.Track) []track.Track {
	window := p.antiClusterWindow
	if window <= 1 || len(tracks) <= 1 {
		return tracks
	}
	if window > len(tracks) {
		window = len(tracks)
	}

	rest := make([]track.Track, len(tracks))
	copy(rest, tracks)
	out := make([]track.Track, 0, len(tracks))
	used := make(map[string]bool)

	for len(out) < window {
		picked := -1
		for i, t := range rest {
			if key := t.ArtistKey(); key == "" || !used[key] {
				picked = i
				break
			}
		}
		if picked == -1 {
			return tracks
		}
		if key := rest[picked].ArtistKey(); key != "" {
			used[key] = true
		}
		out = append(out, rest[picked])
		rest = append(rest[:picked], rest[picked+1:]...)
	}
	return append(out, rest...)
}
