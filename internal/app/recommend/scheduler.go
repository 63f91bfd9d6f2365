package recommend

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// QueueState is the scheduler's snapshot of the queue, taken right
// before a fetch.
type QueueState struct {
	// Seeds drive the fetch: current track first, then nearby upcoming.
	Seeds []track.Track
	// Suppressed blocks refills until the next explicit play action.
	Suppressed bool
	// UpcomingRecommendations counts recommendation-origin entries
	// after the current position.
	UpcomingRecommendations int
	QueuedIDs               map[string]bool
	LastPlayedID            string
	UserArtists             map[string]bool
	UserGroupings           map[string]bool
}

// Queue is the scheduler's view of the player. RecommendState reports
// ok=false when no valid current position exists. Insert re-checks the
// live queue under the player lock and drops tracks that no longer
// apply, returning how many were actually inserted.
type Queue interface {
	RecommendState() (QueueState, bool)
	InsertRecommendations(tracks []track.Track) int
}

// Recommender produces candidates for a request.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (*Result, error)
}

// SchedulerConfig holds the scheduler timing knobs.
type SchedulerConfig struct {
	TargetUpcoming  int
	FailureCooldown time.Duration
	SuccessCooldown time.Duration
	RetryBackoff    []time.Duration
	SafetyTimeout   time.Duration
	Enabled         bool
}

// SchedulerConfigFrom extracts the scheduler knobs from the app
// configuration.
func SchedulerConfigFrom(cfg *config.Config) SchedulerConfig {
	return SchedulerConfig{
		TargetUpcoming:  cfg.Recommend.TargetUpcoming,
		FailureCooldown: cfg.Recommend.FailureCooldown(),
		SuccessCooldown: cfg.Recommend.SuccessCooldown(),
		RetryBackoff:    cfg.Recommend.RetryBackoff(),
		SafetyTimeout:   cfg.Recommend.SafetyTimeout(),
		Enabled:         cfg.Recommend.IsEnabled(),
	}
}

// Scheduler owns the refill loop: it watches the queue through Kick
// signals and tops it up with recommendations when the trigger
// conditions hold.
type Scheduler struct {
	cfg         SchedulerConfig
	recommender Recommender
	queue       Queue

	mu          sync.Mutex
	enabled     bool
	fetching    bool
	halted      bool
	retries     int
	lastFailure time.Time
	lastSuccess time.Time
	retryAt     time.Time
	lastQuality Quality
	recommended map[string]bool
	retryTimer  *time.Timer
	safetyTimer *time.Timer
	started     bool

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	now func() time.Time
}

// NewScheduler creates a Scheduler. Call Start to launch the loop.
func NewScheduler(cfg SchedulerConfig, recommender Recommender, queue Queue) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:         cfg,
		recommender: recommender,
		queue:       queue,
		enabled:     cfg.Enabled,
		recommended: make(map[string]bool),
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
}

// Start launches the refill loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.loop()
	s.Kick()
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
			s.runCycle()
		}
	}
}

// Kick asks the loop to re-evaluate the trigger. Never blocks;
// coalesces while a cycle is pending.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Enabled reports whether the feature is on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// LastQuality reports the outcome of the most recent fetch.
func (s *Scheduler) LastQuality() Quality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuality
}

// SetEnabled toggles the feature. Re-enabling clears the halt state
// and the session's already-recommended memory, then kicks the loop.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	was := s.enabled
	s.enabled = enabled
	if enabled && !was {
		s.halted = false
		s.retries = 0
		s.retryAt = time.Time{}
		s.recommended = make(map[string]bool)
	}
	if !enabled {
		s.stopRetryLocked()
	}
	s.mu.Unlock()

	if enabled && !was {
		s.Kick()
	}
}

// OnTrackChanged clears retry state so a new track gets a fresh
// chance, and cancels any pending retry aimed at the old one.
func (s *Scheduler) OnTrackChanged() {
	s.mu.Lock()
	s.halted = false
	s.retries = 0
	s.retryAt = time.Time{}
	s.stopRetryLocked()
	s.mu.Unlock()

	s.Kick()
}

// ResetSession forgets which tracks were already recommended. Called
// when the listening context changes wholesale.
func (s *Scheduler) ResetSession() {
	s.mu.Lock()
	s.recommended = make(map[string]bool)
	s.mu.Unlock()
}

// Close stops the loop and every pending timer.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopRetryLocked()
		if s.safetyTimer != nil {
			s.safetyTimer.Stop()
			s.safetyTimer = nil
		}
		started := s.started
		s.mu.Unlock()

		s.cancel()
		if started {
			close(s.stop)
			<-s.done
		}
	})
}

func (s *Scheduler) stopRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// shouldFetch evaluates the trigger condition. Caller holds mu.
func (s *Scheduler) shouldFetch(state QueueState, ok bool) bool {
	if !s.enabled || s.fetching || s.halted {
		return false
	}
	if !ok || len(state.Seeds) == 0 || state.Suppressed {
		return false
	}
	if state.UpcomingRecommendations >= s.cfg.TargetUpcoming {
		return false
	}
	now := s.now()
	if !s.retryAt.IsZero() && now.Before(s.retryAt) {
		return false
	}
	if !s.lastFailure.IsZero() && now.Sub(s.lastFailure) <= s.cfg.FailureCooldown {
		return false
	}
	if !s.lastSuccess.IsZero() && now.Sub(s.lastSuccess) <= s.cfg.SuccessCooldown {
		return false
	}
	return true
}

func (s *Scheduler) runCycle() {
	state, ok := s.queue.RecommendState()

	s.mu.Lock()
	if !s.shouldFetch(state, ok) {
		s.mu.Unlock()
		return
	}
	s.fetching = true
	fetchID := uuid.NewString()
	need := s.cfg.TargetUpcoming - state.UpcomingRecommendations
	recommended := make(map[string]bool, len(s.recommended))
	for id := range s.recommended {
		recommended[id] = true
	}
	s.safetyTimer = time.AfterFunc(s.cfg.SafetyTimeout, func() {
		s.forceReset(fetchID)
	})
	s.mu.Unlock()

	zlog.Debug().Msgf("recommendation fetch started: id=%s seeds=%d need=%d", fetchID, len(state.Seeds), need)

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SafetyTimeout)
	result, err := s.recommender.Recommend(ctx, Request{
		Seeds:          state.Seeds,
		Need:           need,
		QueuedIDs:      state.QueuedIDs,
		LastPlayedID:   state.LastPlayedID,
		RecommendedIDs: recommended,
		UserArtists:    state.UserArtists,
		UserGroupings:  state.UserGroupings,
	})
	cancel()

	s.finish(fetchID, result, err)
}

// forceReset clears a stuck in-flight flag so one hung fetch cannot
// wedge the scheduler forever.
func (s *Scheduler) forceReset(fetchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fetching {
		return
	}
	s.fetching = false
	s.lastFailure = s.now()
	zlog.Warn().Msgf("recommendation fetch timed out, resetting in-flight flag: id=%s", fetchID)
}

func (s *Scheduler) finish(fetchID string, result *Result, err error) {
	s.mu.Lock()
	s.fetching = false
	if s.safetyTimer != nil {
		s.safetyTimer.Stop()
		s.safetyTimer = nil
	}

	if err != nil {
		if errors.Is(err, search.ErrResync) {
			s.handleResyncLocked(fetchID)
			return
		}
		s.lastFailure = s.now()
		s.mu.Unlock()
		zlog.Warn().Msgf("recommendation fetch failed: id=%s error=%v", fetchID, err)
		return
	}

	if len(result.Tracks) == 0 {
		s.lastFailure = s.now()
		s.lastQuality = result.Quality
		s.mu.Unlock()
		zlog.Debug().Msgf("recommendation fetch yielded nothing: id=%s", fetchID)
		return
	}
	s.mu.Unlock()

	inserted := s.queue.InsertRecommendations(result.Tracks)

	s.mu.Lock()
	for _, t := range result.Tracks {
		s.recommended[t.ID] = true
	}
	s.lastSuccess = s.now()
	s.retries = 0
	s.retryAt = time.Time{}
	s.lastQuality = result.Quality
	s.mu.Unlock()

	zlog.Info().Msgf("recommendations inserted: id=%s count=%d quality=%s", fetchID, inserted, result.Quality)
}

// handleResyncLocked schedules a backoff retry, or halts after the
// schedule runs out. Caller holds mu; unlocks before returning.
func (s *Scheduler) handleResyncLocked(fetchID string) {
	s.lastFailure = s.now()
	s.retries++
	if s.retries > len(s.cfg.RetryBackoff) {
		s.halted = true
		s.lastQuality = QualityFailed
		retries := s.retries
		s.mu.Unlock()
		zlog.Warn().Msgf("recommendation retries exhausted, halting until track change: id=%s attempts=%d", fetchID, retries)
		return
	}
	delay := s.cfg.RetryBackoff[s.retries-1]
	s.retryAt = s.now().Add(delay)
	s.stopRetryLocked()
	s.retryTimer = time.AfterFunc(delay, s.Kick)
	attempt := s.retries
	s.mu.Unlock()
	zlog.Info().Msgf("catalog resync detected, retry scheduled: id=%s attempt=%d delay=%s", fetchID, attempt, delay)
}
