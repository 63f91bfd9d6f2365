package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osn942/spindle/internal/domain/track"
)

// RecentStrategyConfig holds the recent strategy settings.
type RecentStrategyConfig struct {
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
}

// RecentStrategy is the last fallback for seeds without genre
// information: the most recently added catalog tracks.
type RecentStrategy struct {
	catalog Catalog
	config  *RecentStrategyConfig
}

// NewRecentStrategy creates a RecentStrategy from settings.
func NewRecentStrategy(catalog Catalog, settings map[string]any) (*RecentStrategy, error) {
	var config RecentStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &RecentStrategy{catalog: catalog, config: &config}, nil
}

// Name returns the strategy name.
func (s *RecentStrategy) Name() string {
	return "recent"
}

// Search runs only on the no-genre-information path.
func (s *RecentStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if seed.HasGenreInfo() {
		return nil, false, nil
	}

	found, err := s.catalog.RecentlyAdded(ctx, s.config.PageLimit)
	if err != nil {
		return nil, false, err
	}

	pool := newCollector(limit)
	pool.add(found...)
	return pool.tracks(), false, nil
}
