// Package recommend implements the background recommendation pipeline
// and the scheduler that keeps the queue topped up with
// recommendation-origin tracks.
package recommend

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/app/filter"
	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// Quality classifies the outcome of one recommendation fetch.
type Quality string

const (
	// QualityGood means candidates were confirmed against seed genres.
	QualityGood Quality = "good"
	// QualityDegraded means only non-genre fallbacks produced results.
	QualityDegraded Quality = "degraded"
	// QualityFailed means retries against a resync condition ran out.
	QualityFailed Quality = "failed"
)

// Request carries the seeds and the exclusion context for one fetch.
// All sets are read-only snapshots taken before the fetch started.
type Request struct {
	// Seeds drive the search, current track first.
	Seeds []track.Track
	// Need is how many candidates the caller wants back.
	Need int
	// QueuedIDs are the ids of every currently queued track.
	QueuedIDs map[string]bool
	// LastPlayedID is the id of the most recently departed track.
	LastPlayedID string
	// RecommendedIDs are ids already recommended this session.
	RecommendedIDs map[string]bool
	// UserArtists are artist keys present among user-queued tracks.
	UserArtists map[string]bool
	// UserGroupings are lowercased groupings among user-queued tracks.
	UserGroupings map[string]bool
}

// Result is the outcome of one pipeline run.
type Result struct {
	Tracks       []track.Track
	Quality      Quality
	MatchedGenre bool
}

// poolFactor sizes the raw candidate pool relative to the per-seed
// target so ranking has something to choose from.
const poolFactor = 3

// Pipeline turns seed tracks into ranked recommendation candidates.
type Pipeline struct {
	catalog           search.Catalog
	strategies        []search.Strategy
	filters           *filter.Chain
	targetPerSeed     int
	antiClusterWindow int
	rng               *rand.Rand
}

// NewPipeline creates a Pipeline. The strategy order defines the
// cascade.
func NewPipeline(cfg *config.Config, catalog search.Catalog, strategies []search.Strategy, filters *filter.Chain) *Pipeline {
	return &Pipeline{
		catalog:           catalog,
		strategies:        strategies,
		filters:           filters,
		targetPerSeed:     cfg.Recommend.TargetPerSeed,
		antiClusterWindow: cfg.Recommend.AntiClusterWindow,
		rng:               newShuffleRNG(),
	}
}

type seedResult struct {
	seed       track.Track
	candidates []track.Track
	matched    bool
}

// Recommend runs the strategy cascade per seed, merges the per-seed
// results and returns at most Need ranked candidates. Only resync and
// cancellation errors propagate; everything else degrades to fewer
// candidates.
func (p *Pipeline) Recommend(ctx context.Context, req Request) (*Result, error) {
	if len(req.Seeds) == 0 || req.Need <= 0 {
		return &Result{Quality: QualityDegraded}, nil
	}

	results := make([]seedResult, 0, len(req.Seeds))
	for _, seed := range req.Seeds {
		r, err := p.recommendSeed(ctx, seed, req)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	merged, matched := p.merge(results, req.Need)

	quality := QualityDegraded
	if matched && len(merged) > 0 {
		quality = QualityGood
	}
	return &Result{Tracks: merged, Quality: quality, MatchedGenre: matched}, nil
}

// recommendSeed runs the cascade for one seed: later stages only run
// while the accepted pool is still short of the per-seed target.
func (p *Pipeline) recommendSeed(ctx context.Context, seed track.Track, req Request) (seedResult, error) {
	resolved, err := p.resolveSeed(ctx, seed)
	if err != nil {
		return seedResult{}, err
	}

	path := filter.PathFallback
	if resolved.HasGenreInfo() {
		path = filter.PathGenre
	}
	exc := &filter.Exclusion{
		Seed:           seed,
		QueuedIDs:      req.QueuedIDs,
		LastPlayedID:   req.LastPlayedID,
		RecommendedIDs: req.RecommendedIDs,
	}

	poolLimit := p.targetPerSeed * poolFactor
	var accepted []track.Track
	seen := make(map[string]bool)
	matched := false

	for _, strategy := range p.strategies {
		if len(accepted) >= p.targetPerSeed {
			break
		}
		found, m, err := strategy.Search(ctx, resolved, poolLimit-len(accepted))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, search.ErrResync) {
				return seedResult{}, err
			}
			zlog.Warn().Msgf("search strategy failed, continuing: strategy=%s error=%v", strategy.Name(), err)
			continue
		}
		if m {
			matched = true
		}
		for _, cand := range found {
			if seen[cand.ID] {
				continue
			}
			seen[cand.ID] = true
			if res := p.filters.Execute(cand, exc, path); !res.Accepted {
				continue
			}
			accepted = append(accepted, cand)
		}
	}

	return seedResult{seed: seed, candidates: p.rank(accepted, seed, req), matched: matched}, nil
}

// resolveSeed splits the seed's genre tags into catalog-backed ids and
// name-only tags. A plain resolution failure keeps every tag as
// name-only rather than abandoning the genre path.
func (p *Pipeline) resolveSeed(ctx context.Context, seed track.Track) (search.Seed, error) {
	out := search.Seed{Track: seed}
	if len(seed.Genres) == 0 {
		return out, nil
	}

	genres, err := p.catalog.ResolveGenres(ctx, seed.Genres)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, search.ErrResync) {
			return search.Seed{}, err
		}
		zlog.Warn().Msgf("genre resolution failed, keeping tags name-only: error=%v", err)
		out.NameOnly = append([]string(nil), seed.Genres...)
		return out, nil
	}

	for _, g := range genres {
		if g.ID != "" {
			out.RealGenres = append(out.RealGenres, g)
		} else if g.Name != "" {
			out.NameOnly = append(out.NameOnly, g.Name)
		}
	}
	return out, nil
}

// merge distributes the needed quota evenly across the seeds that
// achieved genre matches (all seeds when none matched), interleaving
// contributions and de-duplicating across seeds. Leftover capacity is
// backfilled past the quotas before the diversity pass.
func (p *Pipeline) merge(results []seedResult, need int) ([]track.Track, bool) {
	supplying := make([]seedResult, 0, len(results))
	matched := false
	for _, r := range results {
		if r.matched {
			matched = true
		}
	}
	for _, r := range results {
		if !matched || r.matched {
			supplying = append(supplying, r)
		}
	}
	if len(supplying) == 0 {
		return nil, matched
	}

	quotas := evenSplit(need, len(supplying))
	next := make([]int, len(supplying))
	taken := make([]int, len(supplying))
	seen := make(map[string]bool)
	var merged []track.Track

	takeOne := func(i int) bool {
		for next[i] < len(supplying[i].candidates) {
			cand := supplying[i].candidates[next[i]]
			next[i]++
			if seen[cand.ID] {
				continue
			}
			seen[cand.ID] = true
			merged = append(merged, cand)
			taken[i]++
			return true
		}
		return false
	}

	for progress := true; progress && len(merged) < need; {
		progress = false
		for i := range supplying {
			if len(merged) >= need || taken[i] >= quotas[i] {
				continue
			}
			if takeOne(i) {
				progress = true
			}
		}
	}
	// Quotas under-filled (duplicates, short seeds): keep taking.
	for progress := true; progress && len(merged) < need; {
		progress = false
		for i := range supplying {
			if len(merged) >= need {
				break
			}
			if takeOne(i) {
				progress = true
			}
		}
	}

	merged = p.antiCluster(merged)
	if len(merged) > need {
		merged = merged[:need]
	}
	return merged, matched
}

func evenSplit(total, n int) []int {
	quotas := make([]int, n)
	base, rem := total/n, total%n
	for i := range quotas {
		quotas[i] = base
		if i < rem {
			quotas[i]++
		}
	}
	return quotas
}

func newShuffleRNG() *rand.Rand {
	var buf [8]byte
	seed := time.Now().UnixNano()
	if _, err := cryptoRand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return rand.New(rand.NewSource(seed))
}
