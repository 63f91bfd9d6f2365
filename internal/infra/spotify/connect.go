package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/domain/track"
)

// ConnectAudio plays tracks on a Spotify Connect device. It shares the
// catalog client's rate limiter and retry wrapper.
type ConnectAudio struct {
	client   *Client
	deviceID *spotify.ID

	mu      sync.Mutex
	pending spotify.URI // URI loaded but not yet started
	loaded  spotify.URI // URI of the current track
	playing bool
	volume  int

	events chan playback.AudioEvent
	closed bool
}

// NewConnectAudio selects the playback device and returns the backend.
// An empty deviceName means the currently active device; without one,
// the first available device is used.
func NewConnectAudio(ctx context.Context, client *Client, deviceName string) (*ConnectAudio, error) {
	a := &ConnectAudio{
		client: client,
		events: make(chan playback.AudioEvent, 4),
		volume: 100,
	}

	var devices []spotify.PlayerDevice
	err := client.call(ctx, func() error {
		ds, err := client.api.PlayerDevices(ctx)
		if err != nil {
			return err
		}
		devices = ds
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playback devices")
	}
	if len(devices) == 0 {
		return nil, errors.New("no playback device available")
	}

	dev := pickDevice(devices, deviceName)
	if dev == nil {
		return nil, errors.Newf("playback device %q not found", deviceName)
	}
	id := dev.ID
	a.deviceID = &id
	a.volume = int(dev.Volume)
	zlog.Info().Msgf("spotify: using playback device: name=%s active=%v", dev.Name, dev.Active)
	return a, nil
}

func pickDevice(devices []spotify.PlayerDevice, name string) *spotify.PlayerDevice {
	if name != "" {
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i]
			}
		}
		return nil
	}
	for i := range devices {
		if devices[i].Active {
			return &devices[i]
		}
	}
	return &devices[0]
}

// Load stages the track. Playback starts on the next Play call.
func (a *ConnectAudio) Load(_ context.Context, t track.Track) error {
	if t.ID == "" {
		return errors.New("track has no catalog id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = spotify.URI("spotify:track:" + t.ID)
	a.loaded = a.pending
	a.playing = false
	return nil
}

// Play starts the staged track, or resumes when nothing is staged.
func (a *ConnectAudio) Play(ctx context.Context) error {
	a.mu.Lock()
	opts := &spotify.PlayOptions{DeviceID: a.deviceID}
	if a.pending != "" {
		opts.URIs = []spotify.URI{a.pending}
		a.pending = ""
	}
	a.mu.Unlock()

	err := a.client.call(ctx, func() error {
		return a.client.api.PlayOpt(ctx, opts)
	})
	if err != nil {
		return errors.Wrap(err, "failed to start playback")
	}

	a.mu.Lock()
	a.playing = true
	a.mu.Unlock()
	return nil
}

// Pause pauses playback on the device.
func (a *ConnectAudio) Pause(ctx context.Context) error {
	err := a.client.call(ctx, func() error {
		return a.client.api.PauseOpt(ctx, &spotify.PlayOptions{DeviceID: a.deviceID})
	})
	if err != nil {
		return errors.Wrap(err, "failed to pause playback")
	}

	a.mu.Lock()
	a.playing = false
	a.mu.Unlock()
	return nil
}

// Seek moves the device position.
func (a *ConnectAudio) Seek(ctx context.Context, pos time.Duration) error {
	err := a.client.call(ctx, func() error {
		return a.client.api.SeekOpt(ctx, int(pos.Milliseconds()), &spotify.PlayOptions{DeviceID: a.deviceID})
	})
	return errors.Wrap(err, "failed to seek")
}

// SetVolume sets the device volume percentage.
func (a *ConnectAudio) SetVolume(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	err := a.client.call(ctx, func() error {
		return a.client.api.VolumeOpt(ctx, pct, &spotify.PlayOptions{DeviceID: a.deviceID})
	})
	if err != nil {
		return errors.Wrap(err, "failed to set volume")
	}

	a.mu.Lock()
	a.volume = pct
	a.mu.Unlock()
	return nil
}

// Status reports the device state. Connect has no push channel for
// track completion, so Status doubles as the watcher: when the device
// stops on its own after playing the loaded track, an ended event is
// emitted. The controller's poll loop drives this.
func (a *ConnectAudio) Status(ctx context.Context) (playback.Status, error) {
	var state *spotify.PlayerState
	err := a.client.call(ctx, func() error {
		s, err := a.client.api.PlayerState(ctx)
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return playback.Status{}, errors.Wrap(err, "failed to get player state")
	}

	st := playback.Status{
		Playing:  state.Playing,
		Position: time.Duration(state.Progress) * time.Millisecond,
		Volume:   int(state.Device.Volume),
	}
	if state.Item != nil {
		st.Duration = time.Duration(state.Item.Duration) * time.Millisecond
	}

	a.mu.Lock()
	wasPlaying := a.playing
	sameTrack := state.Item != nil && a.loaded == spotify.URI("spotify:track:"+string(state.Item.ID))
	if wasPlaying && !state.Playing && sameTrack && state.Progress == 0 {
		// Device ran off the end of the loaded track.
		a.playing = false
		if !a.closed {
			select {
			case a.events <- playback.AudioEvent{Type: playback.AudioEnded}:
			default:
			}
		}
	} else {
		a.playing = state.Playing
	}
	a.mu.Unlock()

	return st, nil
}

// Events returns the resource-side signal channel.
func (a *ConnectAudio) Events() <-chan playback.AudioEvent {
	return a.events
}

// Close releases the backend. The remote device keeps its own state.
func (a *ConnectAudio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	return nil
}
