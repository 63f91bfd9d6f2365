package player

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/domain/track"
)

// Play starts or resumes playback. With a track loaded it resumes
// (pressing play while playing is a no-op); otherwise it starts the
// current queue entry, stepping onto the first entry when nothing has
// played yet.
func (s *Service) Play(ctx context.Context) error {
	if _, loaded := s.controller.Current(); loaded {
		if err := s.controller.Resume(ctx); err != nil && !errors.Is(err, playback.ErrNotPaused) {
			return err
		}
		s.broadcast(Event{Type: EventStateChanged, Telemetry: s.controller.Telemetry()})
		return nil
	}

	s.mu.Lock()
	cur, ok := s.engine.Current()
	moved := false
	if !ok {
		moved = s.engine.Advance()
		cur, ok = s.engine.Current()
	}
	s.mu.Unlock()

	if !ok {
		return ErrQueueEmpty
	}
	if moved {
		s.persist.Signal()
		s.broadcast(Event{Type: EventQueueChanged})
	}
	return s.start(ctx, cur.Track)
}

// Pause pauses playback. Pressing pause while paused is a no-op.
func (s *Service) Pause(ctx context.Context) error {
	if err := s.controller.Pause(ctx); err != nil && !errors.Is(err, playback.ErrNotPlaying) {
		return err
	}
	s.broadcast(Event{Type: EventStateChanged, Telemetry: s.controller.Telemetry()})
	return nil
}

// Toggle flips between playing and paused. With nothing loaded it
// behaves like Play.
func (s *Service) Toggle(ctx context.Context) error {
	if _, loaded := s.controller.Current(); !loaded {
		return s.Play(ctx)
	}
	if err := s.controller.Toggle(ctx); err != nil {
		return err
	}
	s.broadcast(Event{Type: EventStateChanged, Telemetry: s.controller.Telemetry()})
	return nil
}

// Next advances to the next queue entry and starts it. At the tail
// with repeat off it does nothing.
func (s *Service) Next(ctx context.Context) error {
	s.mu.Lock()
	moved := s.engine.Advance()
	var next track.Track
	if moved {
		if cur, ok := s.engine.Current(); ok {
			next = cur.Track
		}
	}
	s.mu.Unlock()

	if !moved {
		return nil
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
	return s.start(ctx, next)
}

// Previous restarts the current track when it is more than the restart
// threshold in, and steps back one entry otherwise. The queue itself
// never restarts tracks; that distinction lives here.
func (s *Service) Previous(ctx context.Context) error {
	if _, loaded := s.controller.Current(); loaded &&
		s.controller.Telemetry().CurrentTime > s.restartThreshold {
		if err := s.controller.Seek(ctx, 0); err != nil {
			return err
		}
		s.broadcast(Event{Type: EventProgress, Telemetry: s.controller.Telemetry()})
		return nil
	}

	s.mu.Lock()
	moved := s.engine.Retreat()
	var prev track.Track
	if moved {
		if cur, ok := s.engine.Current(); ok {
			prev = cur.Track
		}
	}
	s.mu.Unlock()

	if !moved {
		return nil
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
	return s.start(ctx, prev)
}

// SeekTo moves the playback position. The controller clamps to the
// track bounds.
func (s *Service) SeekTo(ctx context.Context, pos time.Duration) error {
	if err := s.controller.Seek(ctx, pos); err != nil {
		return err
	}
	s.broadcast(Event{Type: EventProgress, Telemetry: s.controller.Telemetry()})
	return nil
}

// SetVolume applies the volume, clamped to 0-100. The level is part
// of the persisted state.
func (s *Service) SetVolume(ctx context.Context, pct int) error {
	if err := s.controller.SetVolume(ctx, pct); err != nil {
		return err
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventStateChanged, Telemetry: s.controller.Telemetry()})
	return nil
}

// PlayTrack replaces the queue with the given context and starts the
// track. A nil context yields a single-entry queue. Starting a fresh
// context resets the recommendation session.
func (s *Service) PlayTrack(ctx context.Context, t track.Track, contextQueue []track.Track) error {
	s.mu.Lock()
	s.engine.PlayTrack(t, contextQueue)
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.ResetSession()
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
	return s.start(ctx, t)
}

// PlayAlbum replaces the queue with the given tracks and starts at
// startIndex.
func (s *Service) PlayAlbum(ctx context.Context, tracks []track.Track, startIndex int) error {
	if len(tracks) == 0 {
		return ErrQueueEmpty
	}

	s.mu.Lock()
	s.engine.PlayAlbum(tracks, startIndex)
	cur, ok := s.engine.Current()
	s.mu.Unlock()

	if !ok {
		return ErrQueueEmpty
	}
	if s.scheduler != nil {
		s.scheduler.ResetSession()
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
	return s.start(ctx, cur.Track)
}

// PlayTrackByID resolves a catalog track and plays it as a
// single-entry queue.
func (s *Service) PlayTrackByID(ctx context.Context, id string) error {
	t, err := s.catalog.GetTrack(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "resolve track %s", id)
	}
	return s.PlayTrack(ctx, *t, nil)
}

// Add queues tracks as user entries, right after the current entry
// when playNext is set and at the tail otherwise. It reports how many
// entries the queue accepted and never starts playback.
func (s *Service) Add(tracks []track.Track, playNext bool) int {
	s.mu.Lock()
	n := s.engine.Add(tracks, playNext, track.OriginUser)
	s.mu.Unlock()

	if n > 0 {
		s.persist.Signal()
		s.broadcast(Event{Type: EventQueueChanged})
		s.kickScheduler()
	}
	return n
}

// RemoveAt removes the entry at i. Out-of-range indexes are a no-op;
// removing the playing entry leaves playback running.
func (s *Service) RemoveAt(i int) bool {
	s.mu.Lock()
	ok := s.engine.RemoveAt(i)
	s.mu.Unlock()

	if ok {
		s.persist.Signal()
		s.broadcast(Event{Type: EventQueueChanged})
		s.kickScheduler()
	}
	return ok
}

// Move reorders the entry at from to position to. Cross-origin moves
// and invalid indexes are a no-op.
func (s *Service) Move(from, to int) bool {
	s.mu.Lock()
	ok := s.engine.Move(from, to)
	s.mu.Unlock()

	if ok {
		s.persist.Signal()
		s.broadcast(Event{Type: EventQueueChanged})
		s.kickScheduler()
	}
	return ok
}

// Clear empties the queue except for the playing entry and suppresses
// recommendation refills until the user queues something again.
func (s *Service) Clear() {
	s.mu.Lock()
	s.engine.Clear()
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.ResetSession()
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
}

// ToggleShuffle flips shuffle mode and reports the new state.
func (s *Service) ToggleShuffle() bool {
	s.mu.Lock()
	on := s.engine.ToggleShuffle()
	s.mu.Unlock()

	s.persist.Signal()
	s.broadcast(Event{Type: EventModeChanged})
	s.broadcast(Event{Type: EventQueueChanged})
	s.kickScheduler()
	return on
}

// ToggleRepeat cycles repeat off, all, one and syncs the controller's
// in-place restart behavior.
func (s *Service) ToggleRepeat() queue.RepeatMode {
	s.mu.Lock()
	mode := s.engine.ToggleRepeat()
	s.mu.Unlock()

	s.controller.SetRepeatOne(mode == queue.RepeatOne)
	s.persist.Signal()
	s.broadcast(Event{Type: EventModeChanged})
	return mode
}

// SkipTo jumps to the entry at i and starts it. Out-of-range indexes
// are a no-op.
func (s *Service) SkipTo(ctx context.Context, i int) error {
	s.mu.Lock()
	moved := s.engine.SkipTo(i)
	var next track.Track
	if moved {
		if cur, ok := s.engine.Current(); ok {
			next = cur.Track
		}
	}
	s.mu.Unlock()

	if !moved {
		return nil
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})
	return s.start(ctx, next)
}

// SetRecommendEnabled toggles the recommendation feature. Re-enabling
// starts a fresh session.
func (s *Service) SetRecommendEnabled(enabled bool) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.SetEnabled(enabled)
	s.broadcast(Event{Type: EventModeChanged})
}
