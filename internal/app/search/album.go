package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osn942/spindle/internal/domain/track"
)

// AlbumStrategyConfig holds the album strategy settings.
type AlbumStrategyConfig struct {
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
}

// AlbumStrategy is a fallback for seeds without genre information:
// the remaining tracks of the seed's album.
type AlbumStrategy struct {
	catalog Catalog
	config  *AlbumStrategyConfig
}

// NewAlbumStrategy creates an AlbumStrategy from settings.
func NewAlbumStrategy(catalog Catalog, settings map[string]any) (*AlbumStrategy, error) {
	var config AlbumStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &AlbumStrategy{catalog: catalog, config: &config}, nil
}

// Name returns the strategy name.
func (s *AlbumStrategy) Name() string {
	return "album"
}

// Search runs only on the no-genre-information path.
func (s *AlbumStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if seed.HasGenreInfo() || seed.Track.Album.ID == "" {
		return nil, false, nil
	}

	found, err := s.catalog.SearchByAlbum(ctx, seed.Track.Album.ID, s.config.PageLimit)
	if err != nil {
		return nil, false, err
	}

	pool := newCollector(limit)
	pool.add(found...)
	return pool.tracks(), false, nil
}
