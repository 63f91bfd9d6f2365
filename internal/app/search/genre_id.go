package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/domain/track"
)

// GenreIDStrategyConfig holds the genre_id strategy settings.
type GenreIDStrategyConfig struct {
	// YearWindows are the half-widths of the production-year windows,
	// in widening order.
	YearWindows []int `yaml:"year_windows" mapstructure:"year_windows" default:"[3,5,7,10]" validate:"min=1,dive,gt=0"`
	// MinConfirmed stops the widening once this many matches exist.
	MinConfirmed int `yaml:"min_confirmed" mapstructure:"min_confirmed" default:"20" validate:"gt=0"`
	// MinFallback triggers the no-year search when the widest window
	// still left the pool below it.
	MinFallback int `yaml:"min_fallback" mapstructure:"min_fallback" default:"10" validate:"gt=0"`
	PageLimit   int `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
}

// GenreIDStrategy searches catalog-backed genre ids with a
// progressively widening production-year window around the seed year.
type GenreIDStrategy struct {
	catalog Catalog
	config  *GenreIDStrategyConfig
}

// NewGenreIDStrategy creates a GenreIDStrategy from settings.
func NewGenreIDStrategy(catalog Catalog, settings map[string]any) (*GenreIDStrategy, error) {
	var config GenreIDStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &GenreIDStrategy{catalog: catalog, config: &config}, nil
}

// Name returns the strategy name.
func (s *GenreIDStrategy) Name() string {
	return "genre_id"
}

// Search runs the widening year-window search per genre id. Searching
// without a year filter only happens when the widest window still left
// the pool short of MinFallback.
func (s *GenreIDStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if len(seed.RealGenres) == 0 {
		return nil, false, nil
	}

	pool := newCollector(limit)
	for _, genre := range seed.RealGenres {
		if pool.full() || pool.size() >= s.config.MinConfirmed {
			break
		}
		if err := s.searchGenre(ctx, seed, genre, pool); err != nil {
			if abortSearch(err) {
				return nil, false, err
			}
			zlog.Warn().Msgf("genre id search failed, continuing: genre=%s error=%v", genre.Name, err)
		}
	}

	tracks := pool.tracks()
	return tracks, len(tracks) > 0, nil
}

func (s *GenreIDStrategy) searchGenre(ctx context.Context, seed Seed, genre Genre, pool *collector) error {
	if seed.Track.Year > 0 {
		for _, w := range s.config.YearWindows {
			if pool.full() || pool.size() >= s.config.MinConfirmed {
				return nil
			}
			years := &YearRange{From: seed.Track.Year - w, To: seed.Track.Year + w}
			found, err := s.catalog.SearchByGenreID(ctx, genre.ID, years, s.config.PageLimit)
			if err != nil {
				return err
			}
			pool.add(found...)
		}
		if pool.size() >= s.config.MinFallback {
			return nil
		}
	}

	found, err := s.catalog.SearchByGenreID(ctx, genre.ID, nil, s.config.PageLimit)
	if err != nil {
		return err
	}
	pool.add(found...)
	return nil
}
