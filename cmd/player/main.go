// Package main provides the player daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/app/filter"
	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/app/player"
	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/app/recommend"
	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/infra/config"
	"github.com/osn942/spindle/internal/infra/lastfm"
	"github.com/osn942/spindle/internal/infra/logger"
	"github.com/osn942/spindle/internal/infra/mpdaudio"
	"github.com/osn942/spindle/internal/infra/spotify"
	"github.com/osn942/spindle/internal/infra/store"
)

var (
	app        = kingpin.New("spindle", "Playback queue engine with background recommendations")
	configPath = app.Flag("config", "Path to config file").Default("config.yaml").String()
	debug      = app.Flag("debug", "Enable debug logging").Short('d').Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Log.Level
	if *debug {
		level = "debug"
	}
	logger.Init(level, cfg.Log.Format)

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("player error: %v", err)
		os.Exit(1)
	}
}

// run builds the infra adapters and the service, then blocks until a
// shutdown signal arrives. Using a separate function ensures defer
// statements run even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	catalog, err := spotify.New(ctx, cfg.Spotify)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	if err := validatePlaylists(ctx, cfg, catalog); err != nil {
		return fmt.Errorf("playlist validation failed: %w", err)
	}

	audio, err := buildAudio(ctx, cfg, catalog)
	if err != nil {
		return fmt.Errorf("failed to create audio backend: %w", err)
	}

	var reporter playback.Reporter
	if cfg.LastFM.Configured() {
		r, err := lastfm.New(cfg.LastFM)
		if err != nil {
			return fmt.Errorf("failed to create play reporter: %w", err)
		}
		reporter = r
		zlog.Info().Msg("play reporting enabled")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer st.Close()

	engine := queue.New(queue.Config{
		Capacity:     cfg.Queue.Capacity,
		KeepPrevious: cfg.Queue.KeepPrevious,
	})
	controller := playback.NewController(playback.ConfigFrom(cfg), audio, reporter)
	svc := player.New(engine, controller, catalog, st, cfg)

	strategies, err := search.NewCascadeFromConfig(cfg, catalog)
	if err != nil {
		return fmt.Errorf("failed to build search cascade: %w", err)
	}
	pipeline := recommend.NewPipeline(cfg, catalog, strategies, filter.NewChain())
	svc.AttachScheduler(recommend.NewScheduler(recommend.SchedulerConfigFrom(cfg), pipeline, svc))

	svc.Start()
	zlog.Info().Msgf("player started: backend=%s store=%s", cfg.Audio.Backend, cfg.Store.Path)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("received shutdown signal...")

	if err := svc.Close(); err != nil {
		zlog.Error().Msgf("failed to close player: %v", err)
	}
	zlog.Info().Msg("player stopped")
	return nil
}

// buildAudio selects the playback backend from config.
func buildAudio(ctx context.Context, cfg *config.Config, catalog *spotify.Client) (playback.Audio, error) {
	switch cfg.Audio.Backend {
	case "mpd":
		return mpdaudio.New(cfg.Audio.MPD)
	default:
		return spotify.NewConnectAudio(ctx, catalog, cfg.Spotify.DeviceName)
	}
}

// validatePlaylists checks that playlists referenced by playlist
// strategies exist. Retries cover the catalog warming up at boot;
// an invalid playlist only logs a warning because the cascade treats
// missing playlists as an empty source.
func validatePlaylists(ctx context.Context, cfg *config.Config, catalog *spotify.Client) error {
	urls := cfg.PlaylistURLs()
	if len(urls) == 0 {
		return nil
	}

	maxRetries := 5
	for _, url := range urls {
		var err error
		for attempt := 0; attempt < maxRetries; attempt++ {
			if err = catalog.CheckPlaylist(ctx, url); err == nil {
				break
			}
			wait := time.Duration(1<<attempt) * time.Second
			zlog.Warn().Msgf("playlist check failed, retrying in %s: url=%s error=%v", wait, url, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err != nil {
			zlog.Warn().Msgf("dropping unreachable playlist: url=%s error=%v", url, err)
		}
	}
	return nil
}
