package search

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/domain/track"
)

// PlaylistStrategyConfig holds the playlist strategy settings.
type PlaylistStrategyConfig struct {
	// PlaylistURLs are the curated playlists to draw from.
	PlaylistURLs []string `yaml:"playlist_urls" mapstructure:"playlist_urls" validate:"required,min=1,dive,url"`
	SampleLimit  int      `yaml:"sample_limit" mapstructure:"sample_limit" default:"20" validate:"gt=0"`
	PageLimit    int      `yaml:"page_limit" mapstructure:"page_limit" default:"100" validate:"gt=0"`
}

// PlaylistStrategy is an optional fallback drawing a shuffled sample
// from configured playlists.
type PlaylistStrategy struct {
	catalog Catalog
	config  *PlaylistStrategyConfig
	rng     *rand.Rand
}

// NewPlaylistStrategy creates a PlaylistStrategy from settings.
func NewPlaylistStrategy(catalog Catalog, settings map[string]any) (*PlaylistStrategy, error) {
	var config PlaylistStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &PlaylistStrategy{catalog: catalog, config: &config, rng: newRNG()}, nil
}

// Name returns the strategy name.
func (s *PlaylistStrategy) Name() string {
	return "playlist"
}

// Search runs only on the no-genre-information path.
func (s *PlaylistStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if seed.HasGenreInfo() {
		return nil, false, nil
	}

	pool := newCollector(0)
	for _, url := range s.config.PlaylistURLs {
		found, err := s.catalog.PlaylistTracks(ctx, url, s.config.PageLimit)
		if err != nil {
			if abortSearch(err) {
				return nil, false, err
			}
			zlog.Warn().Msgf("playlist fetch failed, continuing: url=%s error=%v", url, err)
			continue
		}
		pool.add(found...)
	}

	tracks := pool.tracks()
	s.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	n := s.config.SampleLimit
	if limit > 0 && limit < n {
		n = limit
	}
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	return tracks, false, nil
}
