// Package playback drives one audio resource and reports its
// lifecycle to the player service.
package playback

import (
	"context"
	"time"

	"github.com/osn942/spindle/internal/domain/track"
)

// Status is a point-in-time report from the audio resource.
type Status struct {
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Volume   int // 0-100
}

// AudioEventType represents a resource-side signal type.
type AudioEventType int

const (
	AudioEnded   AudioEventType = iota // Resource finished the loaded track
	AudioErrored                       // Resource failed mid-playback
)

// String returns the string representation of the audio event type.
func (e AudioEventType) String() string {
	switch e {
	case AudioEnded:
		return "ended"
	case AudioErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// AudioEvent is a resource-side signal.
type AudioEvent struct {
	Type AudioEventType
	Err  error // Set for AudioErrored
}

// Audio abstracts the playback resource (a Spotify Connect device or
// an MPD instance). Implementations deliver ended/errored signals on
// Events; the channel closes when the resource shuts down.
type Audio interface {
	Load(ctx context.Context, t track.Track) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, pos time.Duration) error
	SetVolume(ctx context.Context, pct int) error
	Status(ctx context.Context) (Status, error)
	Events() <-chan AudioEvent
	Close() error
}

// Reporter receives play notifications. Implementations must tolerate
// being called for the same track repeatedly.
type Reporter interface {
	NowPlaying(ctx context.Context, t track.Track) error
	ReportPlay(ctx context.Context, t track.Track, startedAt time.Time) error
}
