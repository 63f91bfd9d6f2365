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

// ArtistStrategyConfig holds the artist strategy settings.
type ArtistStrategyConfig struct {
	// SampleLimit bounds the shuffled sample taken per search.
	SampleLimit int `yaml:"sample_limit" mapstructure:"sample_limit" default:"20" validate:"gt=0"`
	PageLimit   int `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
	// MaxArtists bounds how many of the seed's artists get searched.
	MaxArtists int `yaml:"max_artists" mapstructure:"max_artists" default:"2" validate:"gt=0"`
}

// ArtistStrategy is a fallback for seeds without genre information:
// other tracks by the seed's artists, as a bounded shuffled sample.
type ArtistStrategy struct {
	catalog Catalog
	config  *ArtistStrategyConfig
	rng     *rand.Rand
}

// NewArtistStrategy creates an ArtistStrategy from settings.
func NewArtistStrategy(catalog Catalog, settings map[string]any) (*ArtistStrategy, error) {
	var config ArtistStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &ArtistStrategy{catalog: catalog, config: &config, rng: newRNG()}, nil
}

// Name returns the strategy name.
func (s *ArtistStrategy) Name() string {
	return "artist"
}

// Search runs only on the no-genre-information path.
func (s *ArtistStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if seed.HasGenreInfo() || len(seed.Track.Artists) == 0 {
		return nil, false, nil
	}

	pool := newCollector(0)
	searched := 0
	for _, artist := range seed.Track.Artists {
		if artist.ID == "" {
			continue
		}
		if searched >= s.config.MaxArtists {
			break
		}
		searched++
		found, err := s.catalog.SearchByArtist(ctx, artist.ID, s.config.PageLimit)
		if err != nil {
			if abortSearch(err) {
				return nil, false, err
			}
			zlog.Warn().Msgf("artist search failed, continuing: artist=%s error=%v", artist.Name, err)
			continue
		}
		pool.add(found...)
	}

	return s.sample(pool.tracks(), limit), false, nil
}

func (s *ArtistStrategy) sample(tracks []track.Track, limit int) []track.Track {
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
	return tracks
}
