package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Spotify: SpotifyConfig{
			ClientID:        "test-client-id",
			ClientSecret:    "test-client-secret",
			RefreshToken:    "test-refresh-token",
			Market:          "JP",
			RateLimitPerSec: 8,
			RateBurst:       4,
		},
		Audio: AudioConfig{Backend: "spotify", PollIntervalMs: 1000},
		Store: StoreConfig{Path: "spindle.db"},
		Queue: QueueConfig{Capacity: 1000, KeepPrevious: 5},
		Recommend: RecommendConfig{
			TargetUpcoming:     12,
			TargetPerSeed:      10,
			MaxSeeds:           3,
			FailureCooldownSec: 10,
			SuccessCooldownSec: 5,
			RetryBackoffSec:    []int{15, 30, 60},
			SafetyTimeoutSec:   30,
			AntiClusterWindow:  3,
		},
		Player: PlayerConfig{
			PersistDebounceMs:  1000,
			ReportDelayMs:      10000,
			RestartThresholdMs: 3000,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing spotify client id",
			mutate:  func(c *Config) { c.Spotify.ClientID = "" },
			wantErr: true,
			errMsg:  "ClientID",
		},
		{
			name:    "missing spotify client secret",
			mutate:  func(c *Config) { c.Spotify.ClientSecret = "" },
			wantErr: true,
			errMsg:  "ClientSecret",
		},
		{
			name:    "invalid redirect url",
			mutate:  func(c *Config) { c.Spotify.RedirectURL = "not-a-url" },
			wantErr: true,
			errMsg:  "RedirectURL",
		},
		{
			name:    "invalid market length",
			mutate:  func(c *Config) { c.Spotify.Market = "JAPAN" },
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name:    "invalid audio backend",
			mutate:  func(c *Config) { c.Audio.Backend = "alsa" },
			wantErr: true,
			errMsg:  "Backend",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name:    "keep_previous not below capacity",
			mutate:  func(c *Config) { c.Queue.Capacity = 5; c.Queue.KeepPrevious = 5 },
			wantErr: true,
			errMsg:  "keep_previous",
		},
		{
			name: "strategy without type",
			mutate: func(c *Config) {
				c.Recommend.Strategies = []StrategyConfig{{Settings: map[string]any{}}}
			},
			wantErr: true,
			errMsg:  "Type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
spotify:
  client_id: file-id
  client_secret: file-secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "US", cfg.Spotify.Market)
	assert.Equal(t, "http://localhost:8899/callback", cfg.Spotify.RedirectURL)
	assert.Equal(t, "token.json", cfg.Spotify.TokenFile)
	assert.Equal(t, "spotify", cfg.Audio.Backend)
	assert.Equal(t, time.Second, cfg.Audio.PollInterval())
	assert.Equal(t, 1000, cfg.Queue.Capacity)
	assert.Equal(t, 5, cfg.Queue.KeepPrevious)
	assert.True(t, cfg.Recommend.IsEnabled())
	assert.Equal(t, 12, cfg.Recommend.TargetUpcoming)
	assert.Equal(t, []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second}, cfg.Recommend.RetryBackoff())
	assert.Equal(t, 30*time.Second, cfg.Recommend.SafetyTimeout())
	assert.Equal(t, time.Second, cfg.Player.PersistDebounce())
	assert.Equal(t, 3*time.Second, cfg.Player.RestartThreshold())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
spotify:
  client_id: file-id
  client_secret: file-secret
`)

	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-token")
	t.Setenv("LASTFM_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "file-secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "env-token", cfg.Spotify.RefreshToken)
	assert.Equal(t, "env-key", cfg.LastFM.APIKey)
}

func TestLoad_DisabledRecommendSurvivesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
spotify:
  client_id: id
  client_secret: secret
recommend:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Recommend.IsEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_PlaylistURLs(t *testing.T) {
	cfg := validConfig()
	cfg.Recommend.Strategies = []StrategyConfig{
		{Type: "genre_id"},
		{Type: "playlist", Settings: map[string]any{
			"playlist_urls": []any{"https://open.spotify.com/playlist/a", "https://open.spotify.com/playlist/b"},
		}},
		{Type: "playlist", Settings: map[string]any{
			"playlist_urls": []any{"https://open.spotify.com/playlist/c"},
		}},
	}

	assert.Equal(t, []string{
		"https://open.spotify.com/playlist/a",
		"https://open.spotify.com/playlist/b",
		"https://open.spotify.com/playlist/c",
	}, cfg.PlaylistURLs())
}

func TestLastFMConfig_Configured(t *testing.T) {
	assert.False(t, LastFMConfig{}.Configured())
	assert.False(t, LastFMConfig{APIKey: "k", APISecret: "s"}.Configured())
	assert.True(t, LastFMConfig{APIKey: "k", APISecret: "s", SessionKey: "sk"}.Configured())
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
