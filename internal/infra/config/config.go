// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	LastFM    LastFMConfig    `yaml:"lastfm"`
	Audio     AudioConfig     `yaml:"audio"`
	Store     StoreConfig     `yaml:"store"`
	Queue     QueueConfig     `yaml:"queue"`
	Recommend RecommendConfig `yaml:"recommend"`
	Player    PlayerConfig    `yaml:"player"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	// RefreshToken bypasses the token file when set. Normally supplied
	// via the SPOTIFY_REFRESH_TOKEN environment variable.
	RefreshToken string `yaml:"refresh_token"`
	RedirectURL  string `yaml:"redirect_url" default:"http://localhost:8899/callback" validate:"omitempty,url"`
	// TokenFile is where the auth helper stores the authorization-code
	// token the player authenticates with.
	TokenFile string `yaml:"token_file" default:"token.json"`
	Market    string `yaml:"market" validate:"omitempty,len=2" default:"US"`
	// DeviceName selects the Connect device for playback. Empty means
	// the currently active device.
	DeviceName      string  `yaml:"device_name"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" default:"8" validate:"gt=0"`
	RateBurst       int     `yaml:"rate_burst" default:"4" validate:"gt=0"`
}

// LastFMConfig represents Last.fm scrobbling configuration.
// Leaving it empty disables play reporting.
type LastFMConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	SessionKey string `yaml:"session_key"`
}

// Configured reports whether scrobbling credentials are present.
func (c LastFMConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != "" && c.SessionKey != ""
}

// AudioConfig represents audio backend configuration.
type AudioConfig struct {
	Backend        string    `yaml:"backend" default:"spotify" validate:"oneof=spotify mpd"`
	PollIntervalMs int       `yaml:"poll_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	MPD            MPDConfig `yaml:"mpd"`
}

// PollInterval returns the playback status poll interval.
func (c AudioConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MPDConfig represents MPD backend configuration.
type MPDConfig struct {
	Address  string `yaml:"address" default:"localhost:6600"`
	Password string `yaml:"password"`
}

// StoreConfig represents state persistence configuration.
type StoreConfig struct {
	Path string `yaml:"path" default:"spindle.db"`
}

// QueueConfig represents queue limits.
type QueueConfig struct {
	Capacity     int `yaml:"capacity" default:"1000" validate:"gt=0"`
	KeepPrevious int `yaml:"keep_previous" default:"5" validate:"gte=0"`
}

// RecommendConfig represents recommendation pipeline configuration.
type RecommendConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
	// TargetUpcoming is how many recommended tracks should sit ahead
	// of the current position.
	TargetUpcoming int `yaml:"target_upcoming" default:"12" validate:"gt=0"`
	// TargetPerSeed bounds how many candidates one seed contributes.
	TargetPerSeed int `yaml:"target_per_seed" default:"10" validate:"gt=0"`
	MaxSeeds      int `yaml:"max_seeds" default:"3" validate:"gt=0"`
	// FailureCooldownSec suppresses refill attempts after a failure.
	FailureCooldownSec int `yaml:"failure_cooldown_sec" default:"10" validate:"gte=0"`
	// SuccessCooldownSec spaces out consecutive successful refills.
	SuccessCooldownSec int `yaml:"success_cooldown_sec" default:"5" validate:"gte=0"`
	// RetryBackoffSec schedules retries after a failed refill. Its
	// length is the retry count.
	RetryBackoffSec []int `yaml:"retry_backoff_sec" default:"[15,30,60]" validate:"min=1,dive,gt=0"`
	// SafetyTimeoutSec aborts a refill that exceeds it.
	SafetyTimeoutSec  int              `yaml:"safety_timeout_sec" default:"30" validate:"gt=0"`
	AntiClusterWindow int              `yaml:"anti_cluster_window" default:"3" validate:"gte=0"`
	Strategies        []StrategyConfig `yaml:"strategies" validate:"omitempty,dive"`
}

// IsEnabled reports the configured initial state of the pipeline.
func (c RecommendConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// FailureCooldown returns the post-failure suppression window.
func (c RecommendConfig) FailureCooldown() time.Duration {
	return time.Duration(c.FailureCooldownSec) * time.Second
}

// SuccessCooldown returns the post-success spacing window.
func (c RecommendConfig) SuccessCooldown() time.Duration {
	return time.Duration(c.SuccessCooldownSec) * time.Second
}

// RetryBackoff returns the retry schedule.
func (c RecommendConfig) RetryBackoff() []time.Duration {
	out := make([]time.Duration, len(c.RetryBackoffSec))
	for i, s := range c.RetryBackoffSec {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// SafetyTimeout returns the per-refill deadline.
func (c RecommendConfig) SafetyTimeout() time.Duration {
	return time.Duration(c.SafetyTimeoutSec) * time.Second
}

// StrategyConfig represents a single search strategy configuration.
type StrategyConfig struct {
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// PlayerConfig represents player service configuration.
type PlayerConfig struct {
	// PersistDebounceMs coalesces state writes after mutations.
	PersistDebounceMs int `yaml:"persist_debounce_ms" default:"1000" validate:"gte=0"`
	// ReportDelayMs is how long a track must play before it is
	// reported as played.
	ReportDelayMs int `yaml:"report_delay_ms" default:"10000" validate:"gte=0"`
	// RestartThresholdMs decides whether Previous restarts the current
	// track instead of stepping back.
	RestartThresholdMs int `yaml:"restart_threshold_ms" default:"3000" validate:"gte=0"`
}

// PersistDebounce returns the state write debounce window.
func (c PlayerConfig) PersistDebounce() time.Duration {
	return time.Duration(c.PersistDebounceMs) * time.Millisecond
}

// ReportDelay returns the played-report delay.
func (c PlayerConfig) ReportDelay() time.Duration {
	return time.Duration(c.ReportDelayMs) * time.Millisecond
}

// RestartThreshold returns the restart-vs-step-back threshold.
func (c PlayerConfig) RestartThreshold() time.Duration {
	return time.Duration(c.RestartThresholdMs) * time.Millisecond
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
	if v := os.Getenv("LASTFM_API_SECRET"); v != "" {
		c.LastFM.APISecret = v
	}
	if v := os.Getenv("LASTFM_SESSION_KEY"); v != "" {
		c.LastFM.SessionKey = v
	}
	if v := os.Getenv("MPD_PASSWORD"); v != "" {
		c.Audio.MPD.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Queue.KeepPrevious >= c.Queue.Capacity {
		return errors.Newf("queue.keep_previous (%d) must be smaller than queue.capacity (%d)", c.Queue.KeepPrevious, c.Queue.Capacity)
	}

	return nil
}

// PlaylistURLs collects the playlist URLs referenced by playlist
// strategies, for startup validation.
func (c *Config) PlaylistURLs() []string {
	var urls []string
	for _, s := range c.Recommend.Strategies {
		if s.Type != "playlist" {
			continue
		}
		raw, ok := s.Settings["playlist_urls"]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if url, ok := item.(string); ok {
				urls = append(urls, url)
			}
		}
	}
	return urls
}
