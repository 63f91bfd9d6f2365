package search

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/infra/config"
)

// NewCascadeFromConfig creates the ordered strategy cascade from
// configuration. With no strategies configured it falls back to the
// standard cascade: genre searches first, then the no-genre fallbacks.
func NewCascadeFromConfig(cfg *config.Config, catalog Catalog) ([]Strategy, error) {
	if len(cfg.Recommend.Strategies) == 0 {
		return defaultCascade(catalog)
	}

	var strategies []Strategy

	for i, scfg := range cfg.Recommend.Strategies {
		var strategy Strategy
		var err error
		zlog.Debug().Msgf("creating search strategy: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch scfg.Type {
		case "genre_id":
			strategy, err = NewGenreIDStrategy(catalog, scfg.Settings)

		case "genre_name":
			strategy, err = NewGenreNameStrategy(catalog, scfg.Settings)

		case "artist":
			strategy, err = NewArtistStrategy(catalog, scfg.Settings)

		case "album":
			strategy, err = NewAlbumStrategy(catalog, scfg.Settings)

		case "year":
			strategy, err = NewYearStrategy(catalog, scfg.Settings)

		case "recent":
			strategy, err = NewRecentStrategy(catalog, scfg.Settings)

		case "playlist":
			strategy, err = NewPlaylistStrategy(catalog, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported strategy type: %s (strategy index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create strategy (index %d, type %s)", i, scfg.Type)
		}

		strategies = append(strategies, strategy)

		zlog.Info().Msgf("registered search strategy: index=%d type=%s", i+1, scfg.Type)
	}

	return strategies, nil
}

func defaultCascade(catalog Catalog) ([]Strategy, error) {
	var strategies []Strategy
	constructors := []func(Catalog, map[string]any) (Strategy, error){
		func(c Catalog, s map[string]any) (Strategy, error) { return NewGenreIDStrategy(c, s) },
		func(c Catalog, s map[string]any) (Strategy, error) { return NewGenreNameStrategy(c, s) },
		func(c Catalog, s map[string]any) (Strategy, error) { return NewArtistStrategy(c, s) },
		func(c Catalog, s map[string]any) (Strategy, error) { return NewAlbumStrategy(c, s) },
		func(c Catalog, s map[string]any) (Strategy, error) { return NewYearStrategy(c, s) },
		func(c Catalog, s map[string]any) (Strategy, error) { return NewRecentStrategy(c, s) },
	}
	for _, construct := range constructors {
		strategy, err := construct(catalog, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create default cascade")
		}
		strategies = append(strategies, strategy)
		zlog.Info().Msgf("registered search strategy: type=%s", strategy.Name())
	}
	return strategies, nil
}
