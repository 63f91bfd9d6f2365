package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osn942/spindle/internal/infra/config"
)

func TestNewCascadeFromConfig_BuildsConfiguredStrategies(t *testing.T) {
	cfg := &config.Config{
		Recommend: config.RecommendConfig{
			Strategies: []config.StrategyConfig{
				{Type: "genre_id", Settings: map[string]any{"min_confirmed": 5}},
				{Type: "artist"},
			},
		},
	}

	strategies, err := NewCascadeFromConfig(cfg, &mockCatalog{})
	require.NoError(t, err)

	require.Len(t, strategies, 2)
	assert.Equal(t, "genre_id", strategies[0].Name())
	assert.Equal(t, "artist", strategies[1].Name())
}

func TestNewCascadeFromConfig_UnsupportedType(t *testing.T) {
	cfg := &config.Config{
		Recommend: config.RecommendConfig{
			Strategies: []config.StrategyConfig{{Type: "mood_ring"}},
		},
	}

	_, err := NewCascadeFromConfig(cfg, &mockCatalog{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported strategy type")
}

func TestNewCascadeFromConfig_InvalidSettings(t *testing.T) {
	cfg := &config.Config{
		Recommend: config.RecommendConfig{
			Strategies: []config.StrategyConfig{{Type: "playlist", Settings: map[string]any{}}},
		},
	}

	_, err := NewCascadeFromConfig(cfg, &mockCatalog{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create strategy")
}

func TestNewCascadeFromConfig_DefaultCascade(t *testing.T) {
	strategies, err := NewCascadeFromConfig(&config.Config{}, &mockCatalog{})
	require.NoError(t, err)

	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"genre_id", "genre_name", "artist", "album", "year", "recent"}, names,
		"genre searches come before the no-genre fallbacks")
}
