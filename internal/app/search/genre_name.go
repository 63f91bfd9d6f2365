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

// GenreNameStrategyConfig holds the genre_name strategy settings.
type GenreNameStrategyConfig struct {
	YearWindows  []int `yaml:"year_windows" mapstructure:"year_windows" default:"[3,5,7,10]" validate:"min=1,dive,gt=0"`
	MinConfirmed int   `yaml:"min_confirmed" mapstructure:"min_confirmed" default:"20" validate:"gt=0"`
	MinFallback  int   `yaml:"min_fallback" mapstructure:"min_fallback" default:"10" validate:"gt=0"`
	PageLimit    int   `yaml:"page_limit" mapstructure:"page_limit" default:"50" validate:"gt=0"`
}

// GenreNameStrategy handles seeds whose genre tags the catalog does
// not register as real genres. It mirrors the genre-id widening but
// confirms matches client side: only candidates carrying the exact tag
// (case-insensitive) count.
type GenreNameStrategy struct {
	catalog Catalog
	config  *GenreNameStrategyConfig
}

// NewGenreNameStrategy creates a GenreNameStrategy from settings.
func NewGenreNameStrategy(catalog Catalog, settings map[string]any) (*GenreNameStrategy, error) {
	var config GenreNameStrategyConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &GenreNameStrategy{catalog: catalog, config: &config}, nil
}

// Name returns the strategy name.
func (s *GenreNameStrategy) Name() string {
	return "genre_name"
}

// Search runs only when the seed has name-only tags and no real genre
// ids. Candidates that do not carry the searched tag are discarded.
func (s *GenreNameStrategy) Search(ctx context.Context, seed Seed, limit int) ([]track.Track, bool, error) {
	if len(seed.RealGenres) > 0 || len(seed.NameOnly) == 0 {
		return nil, false, nil
	}

	pool := newCollector(limit)
	for _, name := range seed.NameOnly {
		if pool.full() || pool.size() >= s.config.MinConfirmed {
			break
		}
		if err := s.searchName(ctx, seed, name, pool); err != nil {
			if abortSearch(err) {
				return nil, false, err
			}
			zlog.Warn().Msgf("genre name search failed, continuing: genre=%s error=%v", name, err)
		}
	}

	tracks := pool.tracks()
	return tracks, len(tracks) > 0, nil
}

func (s *GenreNameStrategy) searchName(ctx context.Context, seed Seed, name string, pool *collector) error {
	if seed.Track.Year > 0 {
		for _, w := range s.config.YearWindows {
			if pool.full() || pool.size() >= s.config.MinConfirmed {
				return nil
			}
			years := &YearRange{From: seed.Track.Year - w, To: seed.Track.Year + w}
			found, err := s.catalog.SearchByGenreName(ctx, name, years, s.config.PageLimit)
			if err != nil {
				return err
			}
			pool.add(confirmTag(found, name)...)
		}
		if pool.size() >= s.config.MinFallback {
			return nil
		}
	}

	found, err := s.catalog.SearchByGenreName(ctx, name, nil, s.config.PageLimit)
	if err != nil {
		return err
	}
	pool.add(confirmTag(found, name)...)
	return nil
}

// confirmTag keeps only candidates that actually carry the tag. Text
// search matches loosely; the tag agreement has to be exact.
func confirmTag(candidates []track.Track, name string) []track.Track {
	confirmed := make([]track.Track, 0, len(candidates))
	for _, t := range candidates {
		if t.HasGenre(name) {
			confirmed = append(confirmed, t)
		}
	}
	return confirmed
}
