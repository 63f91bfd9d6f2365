// Package player is the application shell: it serializes queue
// mutations, pumps controller events, persists durable state, and
// feeds the recommendation scheduler.
package player

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/app/recommend"
	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/debounce"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// ErrQueueEmpty is returned by Play when there is nothing to play.
var ErrQueueEmpty = errors.New("queue is empty")

// opTimeout bounds internal resource and store calls that carry no
// caller context. State writes run on a background context so the
// shutdown flush still lands.
const opTimeout = 5 * time.Second

// Store persists the durable player state. LoadState reports ok=false
// on a fresh database.
type Store interface {
	SaveState(ctx context.Context, snap queue.Snapshot, volume int) error
	LoadState(ctx context.Context) (queue.Snapshot, int, bool, error)
}

// Service owns the queue engine. Every mutation runs under one mutex,
// atomically and in issue order; everything asynchronous (audio
// resource, scheduler, timers) talks to the queue through here.
type Service struct {
	mu         sync.Mutex
	engine     *queue.Engine
	controller *playback.Controller
	catalog    search.Catalog
	store      Store
	scheduler  *recommend.Scheduler

	restartThreshold time.Duration
	maxSeeds         int

	persist        *debounce.Debouncer
	restoredVolume int
	restored       bool

	subsMu    sync.Mutex
	subs      map[int]chan Event
	nextSubID int

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
	closeOnce sync.Once
}

// Snapshot is the observable queue state plus capability flags.
type Snapshot struct {
	Entries       []track.Entry
	CurrentIndex  int
	PreviousIndex int
	Shuffle       bool
	Repeat        queue.RepeatMode
	HasNext       bool
	HasPrevious   bool
	LastPlayed    *track.Track

	UpcomingRecommendations int
	RecommendEnabled        bool
	RecommendQuality        recommend.Quality
}

// New builds the service and restores persisted state. Playback does
// not start; the caller decides when to play.
func New(engine *queue.Engine, controller *playback.Controller, catalog search.Catalog, store Store, cfg *config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		engine:           engine,
		controller:       controller,
		catalog:          catalog,
		store:            store,
		restartThreshold: cfg.Player.RestartThreshold(),
		maxSeeds:         cfg.Recommend.MaxSeeds,
		subs:             make(map[int]chan Event),
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}
	s.persist = debounce.New(cfg.Player.PersistDebounce(), s.persistNow)

	if store != nil {
		snap, volume, ok, err := store.LoadState(ctx)
		switch {
		case err != nil:
			zlog.Warn().Msgf("player: failed to restore state, starting fresh: %v", err)
		case ok:
			s.engine.Restore(snap)
			s.restoredVolume = volume
			s.restored = true
			zlog.Info().Msgf("player: state restored: entries=%d current=%d volume=%d",
				engine.Len(), engine.CurrentIndex(), volume)
		}
	}
	return s
}

// AttachScheduler wires the recommendation scheduler. Must be called
// before Start; the scheduler's queue view is this service.
func (s *Service) AttachScheduler(sched *recommend.Scheduler) {
	s.scheduler = sched
}

// Start launches the controller event pump and the scheduler, and
// applies restored volume and repeat mode to the controller.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	repeatOne := s.engine.Repeat() == queue.RepeatOne
	restored := s.restored
	volume := s.restoredVolume
	s.mu.Unlock()

	s.controller.SetRepeatOne(repeatOne)
	if restored {
		ctx, cancel := context.WithTimeout(s.ctx, opTimeout)
		if err := s.controller.SetVolume(ctx, volume); err != nil {
			zlog.Warn().Msgf("player: failed to restore volume: %v", err)
		}
		cancel()
	}

	go s.pump()
	if s.scheduler != nil {
		s.scheduler.Start()
	}
}

// Close flushes state and tears down the scheduler, the controller,
// and all subscriptions.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		if s.scheduler != nil {
			s.scheduler.Close()
		}
		err = s.controller.Close()

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}

		s.persist.Stop()
		s.persistNow()
		s.closeSubscribers()
	})
	return err
}

// Snapshot returns the observable queue state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	es := s.engine.Snapshot()
	upcoming := s.engine.UpcomingRecommendationCount()
	s.mu.Unlock()

	snap := Snapshot{
		Entries:                 es.Entries,
		CurrentIndex:            es.CurrentIndex,
		PreviousIndex:           es.PreviousIndex,
		Shuffle:                 es.Shuffle,
		Repeat:                  es.Repeat,
		HasNext:                 es.HasNext,
		HasPrevious:             es.HasPrevious,
		LastPlayed:              es.LastPlayed,
		UpcomingRecommendations: upcoming,
	}
	if s.scheduler != nil {
		snap.RecommendEnabled = s.scheduler.Enabled()
		snap.RecommendQuality = s.scheduler.LastQuality()
	}
	return snap
}

// Telemetry returns the observable playback state.
func (s *Service) Telemetry() playback.Telemetry {
	return s.controller.Telemetry()
}

// pump drains controller events. It restarts itself on panic so one
// bad handler cannot silence playback progression.
func (s *Service) pump() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("player: event pump panicked: %v", r)
			zlog.Info().Msg("player: restarting event pump")
			go s.pump()
			return
		}
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.controller.Events():
			if !ok {
				return
			}
			s.handlePlaybackEvent(ev)
		}
	}
}

func (s *Service) handlePlaybackEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventTrackFinished:
		s.onTrackFinished()
	case playback.EventTrackFailed:
		zlog.Warn().Msgf("player: playback failed: error=%v", ev.Err)
		s.broadcast(Event{Type: EventPlaybackError, Track: ev.Track, Err: ev.Err})
	case playback.EventProgress:
		s.broadcast(Event{Type: EventProgress, Track: ev.Track, Telemetry: ev.Telemetry})
		s.kickScheduler()
	}
}

// onTrackFinished advances the queue and starts the new current
// entry. Repeat-one never reaches here; the controller restarts in
// place.
func (s *Service) onTrackFinished() {
	s.mu.Lock()
	moved := s.engine.Advance()
	var next *track.Track
	if moved {
		if cur, ok := s.engine.Current(); ok {
			t := cur.Track
			next = &t
		}
	}
	s.mu.Unlock()

	if next == nil {
		zlog.Info().Msg("player: queue exhausted")
		return
	}
	s.persist.Signal()
	s.broadcast(Event{Type: EventQueueChanged})

	ctx, cancel := context.WithTimeout(s.ctx, opTimeout)
	defer cancel()
	_ = s.start(ctx, *next)
}

// start hands a track to the controller and reports the outcome.
// Errors are non-fatal: the queue advanced, playback just did not.
func (s *Service) start(ctx context.Context, t track.Track) error {
	if err := s.controller.Start(ctx, t); err != nil {
		zlog.Warn().Msgf("player: failed to start track: track=%s error=%v", t.Name, err)
		s.broadcast(Event{Type: EventPlaybackError, Track: &t, Err: err})
		return err
	}
	s.broadcast(Event{Type: EventTrackChanged, Track: &t})
	if s.scheduler != nil {
		s.scheduler.OnTrackChanged()
	}
	return nil
}

func (s *Service) kickScheduler() {
	if s.scheduler != nil {
		s.scheduler.Kick()
	}
}

// persistNow writes the durable state. It runs on a background
// context so the shutdown flush survives service cancellation.
func (s *Service) persistNow() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	snap := s.engine.Snapshot()
	s.mu.Unlock()
	volume := s.controller.Telemetry().Volume

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.store.SaveState(ctx, snap, volume); err != nil {
		zlog.Error().Msgf("player: failed to persist state: %v", err)
	}
}

// RecommendState snapshots what the scheduler needs to decide and
// build a fetch: seeds (current plus nearby upcoming), exclusion ids,
// and the user's taste context. ok is false without a current entry.
func (s *Service) RecommendState() (recommend.QueueState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := recommend.QueueState{
		Suppressed:              s.engine.Suppressed(),
		UpcomingRecommendations: s.engine.UpcomingRecommendationCount(),
		QueuedIDs:               make(map[string]bool, s.engine.Len()),
		UserArtists:             make(map[string]bool),
		UserGroupings:           make(map[string]bool),
	}

	cur, ok := s.engine.Current()
	if !ok {
		return state, false
	}

	state.Seeds = append(state.Seeds, cur.Track)
	entries := s.engine.Entries()
	for i := s.engine.CurrentIndex() + 1; i < len(entries) && len(state.Seeds) < s.maxSeeds; i++ {
		state.Seeds = append(state.Seeds, entries[i].Track)
	}

	for _, en := range entries {
		state.QueuedIDs[en.Track.ID] = true
	}
	if lp, ok := s.engine.LastPlayed(); ok {
		state.LastPlayedID = lp.ID
	}
	for _, t := range s.engine.UserTracks() {
		if key := t.ArtistKey(); key != "" {
			state.UserArtists[key] = true
		}
		if t.Grouping != "" {
			state.UserGroupings[strings.ToLower(t.Grouping)] = true
		}
	}
	return state, true
}

// InsertRecommendations re-checks the live queue under the service
// lock and enqueues what still applies. A user mutation that happened
// mid-fetch wins: duplicates, a suppressed queue, and a vanished
// current position all shed tracks here.
func (s *Service) InsertRecommendations(tracks []track.Track) int {
	s.mu.Lock()
	if _, ok := s.engine.Current(); !ok || s.engine.Suppressed() {
		s.mu.Unlock()
		return 0
	}

	queued := make(map[string]bool, s.engine.Len())
	for _, en := range s.engine.Entries() {
		queued[en.Track.ID] = true
	}
	lastID := ""
	if lp, ok := s.engine.LastPlayed(); ok {
		lastID = lp.ID
	}

	accepted := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if queued[t.ID] || t.ID == lastID {
			continue
		}
		accepted = append(accepted, t)
	}

	n := s.engine.Add(accepted, false, track.OriginRecommendation)
	s.mu.Unlock()

	if n > 0 {
		s.persist.Signal()
		s.broadcast(Event{Type: EventQueueChanged})
	}
	return n
}
