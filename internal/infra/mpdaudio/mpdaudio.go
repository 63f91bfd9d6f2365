// Package mpdaudio plays stream URLs through a local MPD instance.
package mpdaudio

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fhs/gompd/v2/mpd"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// Audio is an MPD-backed playback resource. The player holds exactly
// one track in the MPD queue at a time; queue semantics live upstream.
type Audio struct {
	mu       sync.Mutex
	client   *mpd.Client
	address  string
	password string
	loaded   bool
	started  bool
	playing  bool

	watcher *mpd.Watcher
	events  chan playback.AudioEvent
	done    chan struct{}
	closed  bool
}

// New connects to MPD and starts the idle watcher that delivers
// resource-side ended signals.
func New(cfg config.MPDConfig) (*Audio, error) {
	a := &Audio{
		address:  cfg.Address,
		password: cfg.Password,
		events:   make(chan playback.AudioEvent, 4),
		done:     make(chan struct{}),
	}
	if err := a.connect(); err != nil {
		return nil, err
	}

	watcher, err := mpd.NewWatcher("tcp", cfg.Address, cfg.Password, "player")
	if err != nil {
		a.client.Close()
		return nil, errors.Wrap(err, "failed to watch mpd")
	}
	a.watcher = watcher
	go a.watch()
	return a, nil
}

func (a *Audio) connect() error {
	zlog.Info().Msgf("mpdaudio: connecting: addr=%s", a.address)
	client, err := mpd.Dial("tcp", a.address)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mpd")
	}
	if a.password != "" {
		if err := client.Command("password %s", a.password).OK(); err != nil {
			client.Close()
			return errors.Wrap(err, "mpd authentication failed")
		}
	}
	a.client = client
	return nil
}

// ensureConnected pings the connection and reconnects when it dropped.
// Callers must hold the mutex.
func (a *Audio) ensureConnected() error {
	if a.client == nil {
		return a.connect()
	}
	if err := a.client.Ping(); err != nil {
		zlog.Warn().Msgf("mpdaudio: connection lost, reconnecting: %v", err)
		a.client.Close()
		a.client = nil
		return a.connect()
	}
	return nil
}

// Load replaces the MPD queue with the track's stream URL.
func (a *Audio) Load(_ context.Context, t track.Track) error {
	if t.StreamURL == "" {
		return errors.Newf("track %s has no stream url", t.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if err := a.client.Clear(); err != nil {
		return errors.Wrap(err, "failed to clear mpd queue")
	}
	if err := a.client.Add(t.StreamURL); err != nil {
		return errors.Wrap(err, "failed to load stream")
	}
	a.loaded = true
	a.started = false
	a.playing = false
	return nil
}

// Play starts the loaded track, or resumes after a pause.
func (a *Audio) Play(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return err
	}

	if a.playing {
		return nil
	}
	var err error
	if a.loaded && !a.started {
		err = a.client.Play(0)
	} else {
		err = a.client.Pause(false)
	}
	if err != nil {
		return errors.Wrap(err, "failed to play")
	}
	a.started = true
	a.playing = true
	return nil
}

// Pause pauses playback.
func (a *Audio) Pause(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if err := a.client.Pause(true); err != nil {
		return errors.Wrap(err, "failed to pause")
	}
	a.playing = false
	return nil
}

// Seek moves the position within the loaded track.
func (a *Audio) Seek(_ context.Context, pos time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return err
	}
	// The single loaded track always sits at queue position 0.
	if err := a.client.Seek(0, int(pos.Seconds())); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	return nil
}

// SetVolume sets the MPD volume.
func (a *Audio) SetVolume(_ context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return err
	}
	if err := a.client.SetVolume(pct); err != nil {
		return errors.Wrap(err, "failed to set volume")
	}
	return nil
}

// Status reports the MPD playback state.
func (a *Audio) Status(_ context.Context) (playback.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureConnected(); err != nil {
		return playback.Status{}, err
	}
	attrs, err := a.client.Status()
	if err != nil {
		return playback.Status{}, errors.Wrap(err, "failed to get mpd status")
	}
	st := parseStatus(attrs)
	a.playing = st.Playing
	return st, nil
}

// parseStatus converts MPD status attributes.
func parseStatus(attrs mpd.Attrs) playback.Status {
	st := playback.Status{
		Playing: attrs["state"] == "play",
	}
	if v, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		st.Position = time.Duration(v * float64(time.Second))
	}
	if v, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		st.Duration = time.Duration(v * float64(time.Second))
	}
	if v, err := strconv.Atoi(attrs["volume"]); err == nil && v >= 0 {
		st.Volume = v
	}
	return st
}

// watch drains the MPD idle stream. A stop while a track was loaded
// and playing means MPD ran off the end of the stream.
func (a *Audio) watch() {
	for {
		select {
		case <-a.done:
			return
		case subsystem, ok := <-a.watcher.Event:
			if !ok {
				return
			}
			if subsystem != "player" {
				continue
			}
			a.onPlayerEvent()
		case err, ok := <-a.watcher.Error:
			if !ok {
				return
			}
			zlog.Warn().Msgf("mpdaudio: watcher error: %v", err)
		}
	}
}

func (a *Audio) onPlayerEvent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return
	}
	attrs, err := a.client.Status()
	if err != nil {
		return
	}

	if attrs["state"] == "stop" && a.loaded && a.playing {
		a.loaded = false
		a.started = false
		a.playing = false
		if !a.closed {
			select {
			case a.events <- playback.AudioEvent{Type: playback.AudioEnded}:
			default:
			}
		}
	}
}

// Events returns the resource-side signal channel.
func (a *Audio) Events() <-chan playback.AudioEvent {
	return a.events
}

// Close stops the watcher and closes the MPD connection.
func (a *Audio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.done)
	close(a.events)

	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}
