package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osn942/spindle/internal/app/playback"
	"github.com/osn942/spindle/internal/app/queue"
	"github.com/osn942/spindle/internal/app/recommend"
	"github.com/osn942/spindle/internal/app/search"
	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// fakeAudio mirrors transport calls into its reported status so the
// controller's poll loop confirms rather than stomps state.
type fakeAudio struct {
	mu     sync.Mutex
	status playback.Status
	events chan playback.AudioEvent
	loads  []string
	seeks  []time.Duration
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{events: make(chan playback.AudioEvent, 4)}
}

func (a *fakeAudio) Load(_ context.Context, t track.Track) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loads = append(a.loads, t.ID)
	a.status = playback.Status{Duration: t.Duration, Volume: a.status.Volume}
	return nil
}

func (a *fakeAudio) Play(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Playing = true
	return nil
}

func (a *fakeAudio) Pause(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Playing = false
	return nil
}

func (a *fakeAudio) Seek(_ context.Context, pos time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeks = append(a.seeks, pos)
	a.status.Position = pos
	return nil
}

func (a *fakeAudio) SetVolume(_ context.Context, pct int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Volume = pct
	return nil
}

func (a *fakeAudio) Status(context.Context) (playback.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, nil
}

func (a *fakeAudio) Events() <-chan playback.AudioEvent { return a.events }

func (a *fakeAudio) Close() error { return nil }

// end stops the reported playback and signals track completion, the
// way a real resource does.
func (a *fakeAudio) end() {
	a.mu.Lock()
	a.status.Playing = false
	a.mu.Unlock()
	a.events <- playback.AudioEvent{Type: playback.AudioEnded}
}

func (a *fakeAudio) setPosition(pos time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Position = pos
}

func (a *fakeAudio) loaded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.loads...)
}

func (a *fakeAudio) lastLoaded() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.loads) == 0 {
		return ""
	}
	return a.loads[len(a.loads)-1]
}

func (a *fakeAudio) seekLog() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.seeks...)
}

func (a *fakeAudio) volume() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Volume
}

// memStore keeps persisted state in memory.
type memStore struct {
	mu     sync.Mutex
	snap   queue.Snapshot
	volume int
	ok     bool
	saves  int
}

func (m *memStore) SaveState(_ context.Context, snap queue.Snapshot, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.volume = volume
	m.ok = true
	m.saves++
	return nil
}

func (m *memStore) LoadState(context.Context) (queue.Snapshot, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.volume, m.ok, nil
}

func (m *memStore) savedVolume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok {
		return -1
	}
	return m.volume
}

// stubCatalog resolves tracks from a fixed map; the search methods are
// not exercised by these tests.
type stubCatalog struct {
	tracks map[string]track.Track
}

func (c *stubCatalog) ResolveGenres(context.Context, []string) ([]search.Genre, error) {
	return nil, nil
}

func (c *stubCatalog) SearchByGenreID(context.Context, string, *search.YearRange, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) SearchByGenreName(context.Context, string, *search.YearRange, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) SearchByArtist(context.Context, string, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) SearchByAlbum(context.Context, string, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) SearchByYearRange(context.Context, search.YearRange, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) RecentlyAdded(context.Context, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) PlaylistTracks(context.Context, string, int) ([]track.Track, error) {
	return nil, nil
}

func (c *stubCatalog) GetTrack(_ context.Context, id string) (*track.Track, error) {
	if t, ok := c.tracks[id]; ok {
		return &t, nil
	}
	return nil, errors.Newf("track %q not in catalog", id)
}

func testServiceConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Audio.PollIntervalMs = 10
	cfg.Player.PersistDebounceMs = 20
	cfg.Player.ReportDelayMs = 40
	cfg.Player.RestartThresholdMs = 3000
	cfg.Recommend.MaxSeeds = 3
	return cfg
}

func serviceTrack(id string) track.Track {
	return track.Track{
		ID:       id,
		Name:     "Track " + id,
		Artists:  []track.Artist{{ID: "artist-" + id, Name: "Artist " + id}},
		Duration: 3 * time.Minute,
	}
}

type harness struct {
	svc     *Service
	audio   *fakeAudio
	catalog *stubCatalog
	store   *memStore
}

func newHarness(t *testing.T, store *memStore) *harness {
	t.Helper()

	audio := newFakeAudio()
	ctrl := playback.NewController(playback.Config{
		PollInterval: 10 * time.Millisecond,
		ReportDelay:  40 * time.Millisecond,
	}, audio, nil)
	catalog := &stubCatalog{tracks: make(map[string]track.Track)}

	var st Store
	if store != nil {
		st = store
	}
	svc := New(queue.New(queue.Config{}), ctrl, catalog, st, testServiceConfig())
	svc.Start()
	t.Cleanup(func() { _ = svc.Close() })

	return &harness{svc: svc, audio: audio, catalog: catalog, store: store}
}

func waitTelemetry(t *testing.T, svc *Service, cond func(playback.Telemetry) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(svc.Telemetry()) },
		time.Second, 5*time.Millisecond)
}

func waitPlaying(t *testing.T, svc *Service, want bool) {
	t.Helper()
	waitTelemetry(t, svc, func(tel playback.Telemetry) bool { return tel.Playing == want })
}

func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event channel closed while waiting for %s", want)
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func entryIDs(entries []track.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Track.ID
	}
	return out
}

func trackIDs(tracks []track.Track) []string {
	out := make([]string, len(tracks))
	for i, tr := range tracks {
		out[i] = tr.ID
	}
	return out
}

func TestServicePlayStartsFirstEntry(t *testing.T) {
	h := newHarness(t, nil)

	n := h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.Equal(t, 2, n)
	require.NoError(t, h.svc.Play(context.Background()))

	assert.Equal(t, []string{"t1"}, h.audio.loaded())
	waitPlaying(t, h.svc, true)

	snap := h.svc.Snapshot()
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.True(t, snap.HasNext)
	assert.False(t, snap.HasPrevious)
}

func TestServicePlayEmptyQueue(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.svc.Play(context.Background()), ErrQueueEmpty)
}

func TestServicePauseResumeToggle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1")}, false)
	require.NoError(t, h.svc.Play(ctx))
	waitPlaying(t, h.svc, true)

	require.NoError(t, h.svc.Pause(ctx))
	waitPlaying(t, h.svc, false)

	// Pausing twice is a no-op.
	require.NoError(t, h.svc.Pause(ctx))

	require.NoError(t, h.svc.Play(ctx))
	waitPlaying(t, h.svc, true)
	assert.Equal(t, []string{"t1"}, h.audio.loaded(), "resume must not reload")

	require.NoError(t, h.svc.Toggle(ctx))
	waitPlaying(t, h.svc, false)
}

func TestServiceNextAndPrevious(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2"), serviceTrack("t3")}, false)
	require.NoError(t, h.svc.Play(ctx))

	require.NoError(t, h.svc.Next(ctx))
	assert.Equal(t, "t2", h.audio.lastLoaded())
	assert.Equal(t, 1, h.svc.Snapshot().CurrentIndex)

	// Early in the track Previous steps back.
	require.NoError(t, h.svc.Previous(ctx))
	assert.Equal(t, "t1", h.audio.lastLoaded())
	assert.Equal(t, 0, h.svc.Snapshot().CurrentIndex)
}

func TestServiceNextAtTailIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1")}, false)
	require.NoError(t, h.svc.Play(ctx))

	require.NoError(t, h.svc.Next(ctx))
	assert.Equal(t, []string{"t1"}, h.audio.loaded())
	assert.Equal(t, 0, h.svc.Snapshot().CurrentIndex)
}

func TestServicePreviousRestartsMidTrack(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.NoError(t, h.svc.Play(ctx))
	require.NoError(t, h.svc.Next(ctx))

	h.audio.setPosition(10 * time.Second)
	waitTelemetry(t, h.svc, func(tel playback.Telemetry) bool {
		return tel.CurrentTime == 10*time.Second
	})

	require.NoError(t, h.svc.Previous(ctx))

	assert.Equal(t, "t2", h.audio.lastLoaded(), "restart must not reload")
	assert.Equal(t, 1, h.svc.Snapshot().CurrentIndex)
	assert.Equal(t, []time.Duration{0}, h.audio.seekLog())
}

func TestServiceAdvancesWhenResourceEnds(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.NoError(t, h.svc.Play(context.Background()))

	h.audio.end()

	require.Eventually(t, func() bool { return h.audio.lastLoaded() == "t2" },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.svc.Snapshot().CurrentIndex)
	waitPlaying(t, h.svc, true)
}

func TestServiceQueueExhaustedStopsPlayback(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Add([]track.Track{serviceTrack("t1")}, false)
	require.NoError(t, h.svc.Play(context.Background()))

	h.audio.end()

	waitPlaying(t, h.svc, false)
	assert.Equal(t, []string{"t1"}, h.audio.loaded())
	assert.Equal(t, 0, h.svc.Snapshot().CurrentIndex)
}

func TestServicePlayTrackReplacesQueue(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("old")}, false)
	require.NoError(t, h.svc.Play(ctx))

	a, x, b := serviceTrack("a"), serviceTrack("x"), serviceTrack("b")
	require.NoError(t, h.svc.PlayTrack(ctx, x, []track.Track{a, x, b}))

	snap := h.svc.Snapshot()
	assert.Equal(t, []string{"a", "x", "b"}, entryIDs(snap.Entries))
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, "x", h.audio.lastLoaded())

	// Without a context the track plays as a single-entry queue.
	require.NoError(t, h.svc.PlayTrack(ctx, serviceTrack("solo"), nil))
	snap = h.svc.Snapshot()
	assert.Equal(t, []string{"solo"}, entryIDs(snap.Entries))
	assert.Equal(t, 0, snap.CurrentIndex)
}

func TestServicePlayAlbum(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tracks := []track.Track{serviceTrack("a1"), serviceTrack("a2"), serviceTrack("a3")}
	require.NoError(t, h.svc.PlayAlbum(ctx, tracks, 1))

	snap := h.svc.Snapshot()
	assert.Equal(t, []string{"a1", "a2", "a3"}, entryIDs(snap.Entries))
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, "a2", h.audio.lastLoaded())

	assert.ErrorIs(t, h.svc.PlayAlbum(ctx, nil, 0), ErrQueueEmpty)
}

func TestServicePlayTrackByID(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.catalog.tracks["t9"] = serviceTrack("t9")

	require.NoError(t, h.svc.PlayTrackByID(ctx, "t9"))
	assert.Equal(t, "t9", h.audio.lastLoaded())

	assert.Error(t, h.svc.PlayTrackByID(ctx, "missing"))
}

func TestServiceAddPlayNext(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.NoError(t, h.svc.Play(ctx))

	h.svc.Add([]track.Track{serviceTrack("x")}, true)

	assert.Equal(t, []string{"t1", "x", "t2"}, entryIDs(h.svc.Snapshot().Entries))
}

func TestServiceQueueEditing(t *testing.T) {
	h := newHarness(t, nil)
	n := h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2"), serviceTrack("t3")}, false)
	require.Equal(t, 3, n)

	assert.True(t, h.svc.Move(0, 2))
	assert.Equal(t, []string{"t2", "t3", "t1"}, entryIDs(h.svc.Snapshot().Entries))
	assert.False(t, h.svc.Move(0, 9))

	assert.True(t, h.svc.RemoveAt(0))
	assert.False(t, h.svc.RemoveAt(9))
	assert.Equal(t, []string{"t3", "t1"}, entryIDs(h.svc.Snapshot().Entries))
}

func TestServiceClearKeepsCurrentAndSuppresses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2"), serviceTrack("t3")}, false)
	require.NoError(t, h.svc.Play(ctx))

	h.svc.Clear()

	snap := h.svc.Snapshot()
	assert.Equal(t, []string{"t1"}, entryIDs(snap.Entries))
	waitPlaying(t, h.svc, true)

	state, ok := h.svc.RecommendState()
	require.True(t, ok)
	assert.True(t, state.Suppressed)

	// Suppression drops inserts until the user queues again.
	assert.Zero(t, h.svc.InsertRecommendations([]track.Track{serviceTrack("r1")}))
	h.svc.Add([]track.Track{serviceTrack("t4")}, false)
	assert.Equal(t, 1, h.svc.InsertRecommendations([]track.Track{serviceTrack("r1")}))
}

func TestServiceToggleShuffleRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tracks := make([]track.Track, 8)
	for i := range tracks {
		tracks[i] = serviceTrack(fmt.Sprintf("t%d", i))
	}
	h.svc.Add(tracks, false)
	require.NoError(t, h.svc.Play(ctx))

	before := entryIDs(h.svc.Snapshot().Entries)
	assert.True(t, h.svc.ToggleShuffle())
	assert.True(t, h.svc.Snapshot().Shuffle)
	assert.False(t, h.svc.ToggleShuffle())
	assert.Equal(t, before, entryIDs(h.svc.Snapshot().Entries))
}

func TestServiceToggleRepeatCycles(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, queue.RepeatAll, h.svc.ToggleRepeat())
	assert.Equal(t, queue.RepeatOne, h.svc.ToggleRepeat())
	assert.Equal(t, queue.RepeatOff, h.svc.ToggleRepeat())
	assert.Equal(t, queue.RepeatOff, h.svc.Snapshot().Repeat)
}

func TestServiceRepeatOneRestartsWithoutAdvance(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.NoError(t, h.svc.Play(ctx))

	h.svc.ToggleRepeat() // all
	h.svc.ToggleRepeat() // one

	h.audio.end()

	require.Eventually(t, func() bool { return len(h.audio.seekLog()) == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"t1"}, h.audio.loaded())
	assert.Equal(t, 0, h.svc.Snapshot().CurrentIndex)
	waitPlaying(t, h.svc, true)
}

func TestServiceSkipTo(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2"), serviceTrack("t3")}, false)
	require.NoError(t, h.svc.Play(ctx))

	require.NoError(t, h.svc.SkipTo(ctx, 2))
	assert.Equal(t, "t3", h.audio.lastLoaded())
	assert.Equal(t, 2, h.svc.Snapshot().CurrentIndex)

	require.NoError(t, h.svc.SkipTo(ctx, 9))
	assert.Equal(t, 2, h.svc.Snapshot().CurrentIndex)
}

func TestServiceSeekAndVolume(t *testing.T) {
	store := &memStore{}
	h := newHarness(t, store)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1")}, false)
	require.NoError(t, h.svc.Play(ctx))

	require.NoError(t, h.svc.SeekTo(ctx, 30*time.Second))
	waitTelemetry(t, h.svc, func(tel playback.Telemetry) bool {
		return tel.CurrentTime == 30*time.Second
	})

	require.NoError(t, h.svc.SetVolume(ctx, 55))
	waitTelemetry(t, h.svc, func(tel playback.Telemetry) bool {
		return tel.Volume == 55
	})

	// The debounced writer picks the volume up.
	require.Eventually(t, func() bool { return store.savedVolume() == 55 },
		time.Second, 5*time.Millisecond)
}

func TestServicePersistsAndRestoresState(t *testing.T) {
	store := &memStore{}
	ctx := context.Background()

	h := newHarness(t, store)
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2"), serviceTrack("t3")}, false)
	require.NoError(t, h.svc.Play(ctx))
	require.NoError(t, h.svc.Next(ctx))
	require.NoError(t, h.svc.SetVolume(ctx, 70))
	require.NoError(t, h.svc.Close())

	h2 := newHarness(t, store)
	snap := h2.svc.Snapshot()
	assert.Equal(t, []string{"t1", "t2", "t3"}, entryIDs(snap.Entries))
	assert.Equal(t, 1, snap.CurrentIndex)

	// Playback never auto-resumes but the volume reaches the resource.
	assert.False(t, h2.svc.Telemetry().Playing)
	assert.Empty(t, h2.audio.loaded())
	assert.Equal(t, 70, h2.audio.volume())
}

func TestServiceCloseIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.svc.Close())
	require.NoError(t, h.svc.Close())
}

func TestServiceSubscribe(t *testing.T) {
	h := newHarness(t, nil)
	events, unsub := h.svc.Subscribe()

	h.svc.Add([]track.Track{serviceTrack("t1")}, false)
	waitEvent(t, events, EventQueueChanged)

	require.NoError(t, h.svc.Play(context.Background()))
	ev := waitEvent(t, events, EventTrackChanged)
	require.NotNil(t, ev.Track)
	assert.Equal(t, "t1", ev.Track.ID)

	unsub()
	unsub() // safe to call twice
	for range events {
	}
}

func TestServiceRecommendState(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, ok := h.svc.RecommendState()
	assert.False(t, ok)

	t1 := serviceTrack("t1")
	t1.Grouping = "Night Drive"
	h.svc.Add([]track.Track{t1, serviceTrack("t2"), serviceTrack("t3"), serviceTrack("t4")}, false)
	require.NoError(t, h.svc.Play(ctx))

	state, ok := h.svc.RecommendState()
	require.True(t, ok)
	assert.Equal(t, []string{"t1", "t2", "t3"}, trackIDs(state.Seeds))
	assert.True(t, state.QueuedIDs["t4"])
	assert.False(t, state.Suppressed)
	assert.Zero(t, state.UpcomingRecommendations)
	assert.True(t, state.UserArtists["artist-t1"])
	assert.True(t, state.UserGroupings["night drive"])
}

func TestServiceInsertRecommendationsFiltersStale(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.Add([]track.Track{serviceTrack("t1"), serviceTrack("t2")}, false)
	require.NoError(t, h.svc.Play(ctx))

	// The user queued r2 by hand while the fetch was in flight; the
	// fresh state wins at insert time.
	h.svc.Add([]track.Track{serviceTrack("r2")}, false)
	n := h.svc.InsertRecommendations([]track.Track{
		serviceTrack("r1"), serviceTrack("r2"), serviceTrack("t2"),
	})
	assert.Equal(t, 1, n)

	snap := h.svc.Snapshot()
	assert.Equal(t, []string{"t1", "t2", "r2", "r1"}, entryIDs(snap.Entries))
	assert.Equal(t, 1, snap.UpcomingRecommendations)
	assert.True(t, snap.Entries[3].IsRecommendation())
}

func TestServiceInsertRecommendationsNeedsCurrent(t *testing.T) {
	h := newHarness(t, nil)
	h.svc.Add([]track.Track{serviceTrack("t1")}, false)

	assert.Zero(t, h.svc.InsertRecommendations([]track.Track{serviceTrack("r1")}))
}

// stubRecommender returns a canned result for every request.
type stubRecommender struct {
	mu     sync.Mutex
	result *recommend.Result
	calls  int
}

func (r *stubRecommender) Recommend(context.Context, recommend.Request) (*recommend.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.result, nil
}

func TestServiceSchedulerFillsQueue(t *testing.T) {
	audio := newFakeAudio()
	ctrl := playback.NewController(playback.Config{
		PollInterval: 10 * time.Millisecond,
		ReportDelay:  40 * time.Millisecond,
	}, audio, nil)
	svc := New(queue.New(queue.Config{}), ctrl, &stubCatalog{}, nil, testServiceConfig())

	rec := &stubRecommender{result: &recommend.Result{
		Tracks:  []track.Track{serviceTrack("r1"), serviceTrack("r2")},
		Quality: recommend.QualityGood,
	}}
	sched := recommend.NewScheduler(recommend.SchedulerConfig{
		TargetUpcoming:  2,
		FailureCooldown: 10 * time.Second,
		SuccessCooldown: time.Second,
		RetryBackoff:    []time.Duration{time.Second},
		SafetyTimeout:   5 * time.Second,
		Enabled:         true,
	}, rec, svc)
	svc.AttachScheduler(sched)
	svc.Start()
	t.Cleanup(func() { _ = svc.Close() })

	svc.Add([]track.Track{serviceTrack("t1")}, false)
	require.NoError(t, svc.Play(context.Background()))

	require.Eventually(t, func() bool {
		return svc.Snapshot().UpcomingRecommendations == 2
	}, 2*time.Second, 10*time.Millisecond)

	snap := svc.Snapshot()
	assert.Equal(t, []string{"t1", "r1", "r2"}, entryIDs(snap.Entries))
	assert.Equal(t, recommend.QualityGood, snap.RecommendQuality)
	assert.True(t, snap.RecommendEnabled)
}
