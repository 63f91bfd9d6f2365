package player

import (
	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/domain/track"
)

// subscriberBuffer sizes each subscriber channel. Slow consumers drop
// events rather than stalling the service.
const subscriberBuffer = 16

// EventType represents a service event type.
type EventType int

const (
	EventQueueChanged  EventType = iota // Queue contents or indices changed
	EventTrackChanged                   // A new track started
	EventStateChanged                   // Playing/paused flipped or volume moved
	EventModeChanged                    // Shuffle, repeat, or recommendations toggled
	EventProgress                       // Periodic telemetry snapshot
	EventPlaybackError                  // The audio resource failed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventQueueChanged:
		return "queue_changed"
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventProgress:
		return "progress"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event is a change notification. Subscribers read Snapshot or
// Telemetry for full state; the event itself carries just enough to
// decide whether to.
type Event struct {
	Type      EventType
	Track     *track.Track
	Telemetry playback.Telemetry
	Err       error
}

// Subscribe registers an event channel. The returned func
// unsubscribes and closes the channel; calling it twice is safe.
func (s *Service) Subscribe() (<-chan Event, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// broadcast fans an event out to every subscriber without blocking.
func (s *Service) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Service) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
