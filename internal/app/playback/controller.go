package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/debounce"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// Errors
var (
	ErrNoTrack    = errors.New("no track loaded")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
	ErrLoadFailed = errors.New("track load failed")
)

// nearEndWindow is how close to the track end the status poll treats
// playback as finished when the resource never delivers an ended
// event.
const nearEndWindow = time.Second

// controlTimeout bounds resource calls made from internal paths that
// carry no caller context.
const controlTimeout = 5 * time.Second

// Config holds controller configuration.
type Config struct {
	PollInterval time.Duration // Status poll interval
	ReportDelay  time.Duration // How long a track must survive before it counts as played
}

// ConfigFrom extracts the controller knobs from the app configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		PollInterval: cfg.Audio.PollInterval(),
		ReportDelay:  cfg.Player.ReportDelay(),
	}
}

// Controller owns the audio resource. It loads and plays tracks on
// demand, polls the resource for telemetry, detects completion, and
// reports plays that survive the report delay.
type Controller struct {
	audio    Audio
	reporter Reporter
	cfg      Config

	mu            sync.Mutex
	current       *track.Track
	playing       bool
	position      time.Duration
	duration      time.Duration
	volume        int
	startedAt     time.Time
	advanced      bool // completion already claimed for the current track
	repeatOne     bool
	pendingReport *track.Track

	report *debounce.Debouncer

	eventCh   chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewController creates a controller and starts its poll loop. A nil
// reporter disables play reporting.
func NewController(cfg Config, audio Audio, reporter Reporter) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		audio:    audio,
		reporter: reporter,
		cfg:      cfg,
		eventCh:  make(chan Event, 10),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.report = debounce.New(cfg.ReportDelay, c.firePlayReport)
	go c.run()
	return c
}

// Events returns the event channel. It closes on Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Start loads and plays a track. On failure the controller flags
// itself stopped and returns the error; the caller's queue state is
// untouched. Starting a new track drops any play report still pending
// for the previous one.
func (c *Controller) Start(ctx context.Context, t track.Track) error {
	c.report.Cancel()

	c.mu.Lock()
	c.current = &t
	c.advanced = false
	c.playing = false
	c.position = 0
	c.duration = t.Duration
	c.pendingReport = nil
	c.mu.Unlock()

	if err := c.audio.Load(ctx, t); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to load track %s", t.ID), ErrLoadFailed)
	}
	if err := c.audio.Play(ctx); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to play track %s", t.ID), ErrLoadFailed)
	}

	c.mu.Lock()
	c.playing = true
	c.startedAt = time.Now()
	c.pendingReport = &t
	c.mu.Unlock()

	c.report.Signal()
	c.announce(t)

	zlog.Info().Msgf("playback: started: track=%s id=%s duration=%v", t.Name, t.ID, t.Duration)
	return nil
}

// Pause pauses the current playback.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	if !c.playing {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	c.mu.Unlock()

	if err := c.audio.Pause(ctx); err != nil {
		return errors.Wrap(err, "failed to pause")
	}

	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	return nil
}

// Resume resumes paused playback.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	if c.playing {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.mu.Unlock()

	if err := c.audio.Play(ctx); err != nil {
		return errors.Wrap(err, "failed to resume")
	}

	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
	return nil
}

// Toggle pauses when playing and resumes when paused.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()

	if playing {
		return c.Pause(ctx)
	}
	return c.Resume(ctx)
}

// Seek moves the playback position, clamped to [0, duration]. The
// reported position updates immediately rather than waiting for the
// next status poll.
func (c *Controller) Seek(ctx context.Context, pos time.Duration) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	duration := c.duration
	c.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if duration > 0 && pos > duration {
		pos = duration
	}

	if err := c.audio.Seek(ctx, pos); err != nil {
		return errors.Wrap(err, "failed to seek")
	}

	c.mu.Lock()
	c.position = pos
	c.mu.Unlock()
	return nil
}

// SetVolume sets the resource volume, clamped to 0-100.
func (c *Controller) SetVolume(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	if err := c.audio.SetVolume(ctx, pct); err != nil {
		return errors.Wrap(err, "failed to set volume")
	}

	c.mu.Lock()
	c.volume = pct
	c.mu.Unlock()
	return nil
}

// Current returns the loaded track, if any.
func (c *Controller) Current() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return track.Track{}, false
	}
	return *c.current, true
}

// SetRepeatOne controls whether a finished track restarts in place
// instead of emitting a finished event.
func (c *Controller) SetRepeatOne(v bool) {
	c.mu.Lock()
	c.repeatOne = v
	c.mu.Unlock()
}

// Telemetry returns the observable playback state.
func (c *Controller) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.telemetryLocked()
}

func (c *Controller) telemetryLocked() Telemetry {
	return Telemetry{
		Playing:     c.playing,
		CurrentTime: c.position,
		Duration:    c.duration,
		Volume:      c.volume,
	}
}

// Close stops the poll loop, drops any pending play report, and
// releases the audio resource.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.report.Stop()
		<-c.done
		err = c.audio.Close()
		close(c.eventCh)
	})
	return err
}

// run polls the resource for status and watches its event channel.
// All completion and failure events originate here, so no event is
// sent after run returns.
func (c *Controller) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	events := c.audio.Events()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.pollStatus()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleAudioEvent(ev)
		}
	}
}

func (c *Controller) pollStatus() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PollInterval)
	st, err := c.audio.Status(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		zlog.Debug().Msgf("playback: status poll failed: error=%v", err)
		return
	}

	c.mu.Lock()
	c.volume = st.Volume
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.playing = st.Playing
	c.position = st.Position
	if st.Duration > 0 {
		c.duration = st.Duration
	}
	t := *c.current
	tel := c.telemetryLocked()
	nearEnd := !c.advanced && st.Playing && c.duration > 0 && c.duration-st.Position <= nearEndWindow
	c.mu.Unlock()

	c.send(Event{Type: EventProgress, Track: &t, Telemetry: tel})

	if nearEnd {
		c.complete("near end")
	}
}

func (c *Controller) handleAudioEvent(ev AudioEvent) {
	switch ev.Type {
	case AudioEnded:
		c.complete("resource ended")
	case AudioErrored:
		c.mu.Lock()
		if c.current == nil {
			c.mu.Unlock()
			zlog.Warn().Msgf("playback: resource error with no track loaded: error=%v", ev.Err)
			return
		}
		c.playing = false
		t := *c.current
		c.mu.Unlock()

		zlog.Warn().Msgf("playback: resource error: track=%s error=%v", t.Name, ev.Err)
		c.send(Event{Type: EventTrackFailed, Track: &t, Err: ev.Err})
	}
}

// complete claims the one-shot advance for the current track. The
// status poll and the resource watcher can both observe the same
// completion; whichever arrives first wins.
func (c *Controller) complete(reason string) {
	c.mu.Lock()
	if c.current == nil || c.advanced {
		c.mu.Unlock()
		return
	}
	c.advanced = true
	t := *c.current
	repeat := c.repeatOne
	if !repeat {
		c.playing = false
	}
	c.mu.Unlock()

	zlog.Debug().Msgf("playback: track finished (%s): track=%s", reason, t.Name)

	if repeat {
		c.restart(t)
		return
	}
	c.send(Event{Type: EventTrackFinished, Track: &t})
}

// restart replays the current track from the top without advancing
// the queue. A restarted play counts as a new play.
func (c *Controller) restart(t track.Track) {
	ctx, cancel := context.WithTimeout(c.ctx, controlTimeout)
	defer cancel()

	if err := c.audio.Seek(ctx, 0); err != nil {
		c.markFailed(t, errors.Wrap(err, "failed to restart track"))
		return
	}
	if err := c.audio.Play(ctx); err != nil {
		c.markFailed(t, errors.Wrap(err, "failed to restart track"))
		return
	}

	c.mu.Lock()
	c.advanced = false
	c.playing = true
	c.position = 0
	c.startedAt = time.Now()
	c.pendingReport = &t
	c.mu.Unlock()

	c.report.Signal()
	c.announce(t)

	zlog.Debug().Msgf("playback: restarted: track=%s", t.Name)
}

func (c *Controller) markFailed(t track.Track, err error) {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()

	zlog.Warn().Msgf("playback: %v: track=%s", err, t.Name)
	c.send(Event{Type: EventTrackFailed, Track: &t, Err: err})
}

// announce reports now-playing in the background. Failures are
// logged, never surfaced.
func (c *Controller) announce(t track.Track) {
	if c.reporter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, controlTimeout)
		defer cancel()
		if err := c.reporter.NowPlaying(ctx, t); err != nil {
			zlog.Debug().Msgf("playback: now playing report failed: track=%s error=%v", t.Name, err)
		}
	}()
}

// firePlayReport runs when a track has survived the report delay.
func (c *Controller) firePlayReport() {
	if c.reporter == nil {
		return
	}
	c.mu.Lock()
	t := c.pendingReport
	startedAt := c.startedAt
	c.pendingReport = nil
	c.mu.Unlock()
	if t == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, controlTimeout)
	defer cancel()
	if err := c.reporter.ReportPlay(ctx, *t, startedAt); err != nil {
		zlog.Warn().Msgf("playback: play report failed: track=%s error=%v", t.Name, err)
	}
}

// send delivers an event to the service pump. Progress ticks are
// droppable; lifecycle events must land.
func (c *Controller) send(e Event) {
	if e.Type == EventProgress {
		select {
		case c.eventCh <- e:
		default:
		}
		return
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	}
}
