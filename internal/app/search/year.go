package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osn942/spindle/internal/domain/track"
)

// YearStrategyConfig holds the year strategy settings.
type YearStrategyConfig struct {
	YearWindows []int `yaml:"year_windows" mapstructure:"year_windows" default:"[3,5,7,10]" validate:"min=1,dive,gt=0"`
	PageLimit   int   `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
}

// YearStrategy is a fallback for seeds without genre information:
// tracks produced around the seed's year, widening until the limit
// fills.
type YearStrategy struct {
	catalog Catalog
	config  *YearStrategyConfig
}

// NewYearStrategy creates a YearStrategy from settings.
func NewYearStrategy(catalog Catalog, settings map[string]any) (*YearStrategy, error) {
	var config YearStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &YearStrategy{catalog: catalog, config: &config}, nil
}

// Name returns the strategy name.
func (s *YearStrategy) Name() string {
	return "year"
}

// Search runs only on the no-genre-information path.
func (s *YearStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if seed.HasGenreInfo() || seed.Track.Year == 0 {
		return nil, false, nil
	}

	pool := newCollector(limit)
	for _, w := range s.config.YearWindows {
		if pool.full() {
			break
		}
		years := YearRange{From: seed.Track.Year - w, To: seed.Track.Year + w}
		found, err := s.catalog.SearchByYearRange(ctx, years, s.config.PageLimit)
		if err != nil {
			return nil, false, err
		}
		pool.add(found...)
	}

	return pool.tracks(), false, nil
}
