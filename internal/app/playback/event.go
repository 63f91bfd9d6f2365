package playback

import (
	"time"

	"github.com/osn942/spindle/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackFinished EventType = iota // Track played to completion
	EventTrackFailed                    // Resource reported a playback error
	EventProgress                       // Periodic telemetry snapshot
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackFinished:
		return "track_finished"
	case EventTrackFailed:
		return "track_failed"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event is delivered to the service event pump. Progress events carry
// a telemetry snapshot; failure events carry the resource error.
type Event struct {
	Type      EventType
	Track     *track.Track
	Err       error
	Telemetry Telemetry
}

// Telemetry is the observable playback state.
type Telemetry struct {
	Playing     bool
	CurrentTime time.Duration
	Duration    time.Duration
	Volume      int
}
