package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tycoon/internal/catalog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu      sync.Mutex
	states  map[string]*PlayerState
	reports map[string]LoadReport
	saves   int
	loadErr error
	saveErr error
}

func newMemPersister() *memPersister {
	return &memPersister{states: map[string]*PlayerState{}, reports: map[string]LoadReport{}}
}

func (p *memPersister) Load(_ context.Context, id string) (*PlayerState, LoadReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, LoadReport{}, p.loadErr
	}
	st, ok := p.states[id]
	if !ok {
		return nil, LoadReport{Source: LoadedFresh}, nil
	}
	report, ok := p.reports[id]
	if !ok {
		report = LoadReport{Source: LoadedMain}
	}
	return st.Clone(), report, nil
}

func (p *memPersister) Save(_ context.Context, id string, s *PlayerState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	p.states[id] = s.Clone()
	return nil
}

func (p *memPersister) stored(id string) *PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[id]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (r *recordingPublisher) Publish(id string, events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]Event{}
	}
	r.events[id] = append(r.events[id], events...)
}

func (r *recordingPublisher) has(id string, typ EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events[id] {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T) (*Service, *memPersister, *recordingPublisher) {
	t.Helper()
	store := newMemPersister()
	pub := &recordingPublisher{}
	svc := NewService(NewEngine(catalog.Default(), quiet()), store, pub, nil)
	return svc, store, pub
}

func TestServiceCreatePlayerSaves(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreatePlayer(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(d.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Level)
	assert.Equal(t, "dragon_basic", d.EquippedSkin)
	require.NotNil(t, store.stored(d.PlayerID))
	assert.Equal(t, 1, store.saves)
}

func TestServiceClickAndIdempotency(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	sum, err := svc.Click(ctx, id, 100, "k1")
	require.NoError(t, err)
	assert.Equal(t, 100, sum.Clicks)
	assert.Equal(t, 1, sum.LevelUps)
	assert.Contains(t, sum.Achievements, "first_click")
	assert.Contains(t, sum.Achievements, "hundred_clicks")
	assert.True(t, pub.has(id, EventLevelUp))

	before, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)

	_, err = svc.Click(ctx, id, 5, "k1")
	require.ErrorIs(t, err, ErrDuplicateIdempotency)
	after, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	sum, err = svc.Click(ctx, id, 10_000, "")
	require.NoError(t, err)
	assert.Equal(t, MaxClicksPerRequest, sum.Clicks)
}

func TestServiceRejectsInvalidPlayer(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Dashboard(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidPlayerID)
}

func TestServiceLoadFailureIsNotCached(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	store.loadErr = errors.New("connection refused")
	_, err := svc.Dashboard(ctx, id)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	store.loadErr = nil
	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, d.PlayerID)
}

func TestServiceResumesStoredState(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	st := NewPlayerState(catalog.Default().Rules())
	st.Coins = 777
	st.Level = 4
	store.states[id] = st
	store.reports[id] = LoadReport{Source: LoadedBackup, Problem: "main: checksum mismatch"}

	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 777.0, d.Coins)
	assert.Equal(t, 4, d.Level)

	report, err := svc.LoadReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, LoadedBackup, report.Source)
	assert.True(t, pub.has(id, EventSaveRecovered))
}

func TestServiceSaveFailureKeepsPlaying(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	_, err := svc.Click(ctx, id, 3, "")
	require.NoError(t, err)

	store.saveErr = errors.New("disk full")
	assert.Equal(t, 1, svc.Flush(ctx))
	assert.True(t, pub.has(id, EventSaveFailed))

	err = svc.SaveNow(ctx, id)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = svc.Click(ctx, id, 2, "")
	require.NoError(t, err, "gameplay continues while storage is down")

	store.saveErr = nil
	assert.Equal(t, 0, svc.Flush(ctx))
	require.NotNil(t, store.stored(id))
	assert.Equal(t, int64(5), store.stored(id).TotalClicks)
}

func TestServiceFlushEvictsIdlePlayers(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()
	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	svc.SetIdleAfter(time.Minute)

	_, err := svc.Click(ctx, id, 1, "")
	require.NoError(t, err)
	svc.Flush(ctx)
	assert.Len(t, svc.liveSessions(), 1)

	clock = clock.Add(2 * time.Minute)
	svc.Flush(ctx)
	assert.Empty(t, svc.liveSessions())

	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.TotalClicks)
	assert.Equal(t, 1, store.saves)
}

func TestServiceTickRunsTimers(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.ClicksPerSecond)

	err = svc.withSession(ctx, id, func(sess *session) error {
		sess.state.ClicksPerSecond = 2
		return nil
	})
	require.NoError(t, err)

	svc.Tick(ctx, 3*time.Second)
	snap, err = svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3.0, snap.Coins)
	assert.Equal(t, int64(3), snap.Stats.PlayTime)
	assert.True(t, pub.has(id, EventAutoClick))
}

func TestServiceReplay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	results, err := svc.Replay(ctx, id, []Action{
		{Kind: ActionClick, Count: 150, IdempotencyKey: "a"},
		{Kind: ActionClick, Count: 150, IdempotencyKey: "a"},
		{Kind: ActionBuyUpgrade, Ref: "sharp_claws", IdempotencyKey: "b"},
		{Kind: ActionBuySkin, Ref: "dragon_god", IdempotencyKey: "c"},
		{Kind: "dance", IdempotencyKey: "d"},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	statuses := make([]string, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []string{ReplayApplied, ReplayDuplicate, ReplayApplied, ReplayRejected, ReplayRejected}, statuses)
	assert.Contains(t, results[3].Error, ErrInsufficientFunds.Error())
	assert.Contains(t, results[4].Error, ErrUnknownAction.Error())

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(150), snap.TotalClicks)
	assert.Equal(t, 1, snap.Upgrades["sharp_claws"])

	_, err = svc.Replay(ctx, id, make([]Action, maxReplayActions+1))
	assert.ErrorIs(t, err, ErrTooManyActions)
}

func TestServiceSerializesConcurrentClicks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := svc.Click(ctx, id, 1, uuid.NewString()); err != nil {
					t.Errorf("click: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(200), snap.TotalClicks)
}

func TestServiceRunFlushesOnShutdown(t *testing.T) {
	svc, store, _ := newTestService(t)
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.Click(context.Background(), id, 2, "")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NotNil(t, store.stored(id))
	assert.Equal(t, int64(2), store.stored(id).TotalClicks)
}

// gatedPersister holds the first Save it receives until release is closed.
type gatedPersister struct {
	*memPersister
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPersister) Save(ctx context.Context, id string, st *PlayerState) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.memPersister.Save(ctx, id, st)
}

func TestServiceSavesLandInSnapshotOrder(t *testing.T) {
	store := &gatedPersister{memPersister: newMemPersister(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(NewEngine(catalog.Default(), quiet()), store, nil, nil)
	ctx := context.Background()
	id := uuid.NewString()
	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	svc.SetIdleAfter(time.Minute)

	_, err := svc.Click(ctx, id, 1, "")
	require.NoError(t, err)

	flushed := make(chan int)
	go func() { flushed <- svc.Flush(ctx) }()
	<-store.entered

	_, err = svc.Click(ctx, id, 1, "")
	require.NoError(t, err)

	saved := make(chan error)
	go func() { saved <- svc.SaveNow(ctx, id) }()

	close(store.release)
	assert.Equal(t, 0, <-flushed)
	require.NoError(t, <-saved)

	clockMu.Lock()
	clock = clock.Add(2 * time.Minute)
	clockMu.Unlock()
	svc.Flush(ctx)
	assert.Empty(t, svc.liveSessions())

	require.NotNil(t, store.stored(id))
	assert.Equal(t, int64(2), store.stored(id).TotalClicks)
	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.TotalClicks)
}

func TestServiceClickBatchBuildsCombo(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }

	sum, err := svc.Click(ctx, id, 30, "")
	require.NoError(t, err)
	assert.Equal(t, 25, sum.Combo)
	assert.Contains(t, sum.Achievements, "speed_clicker")
	assert.Contains(t, sum.Achievements, "frenzy")
	// ten clicks at ×1.0..×1.9, ten at ×2.0..×2.9, ten at ×3.0..×3.4
	assert.Equal(t, 60.0, sum.Damage)

	d, err := svc.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 25, d.Combo)
	assert.Equal(t, 3.4, d.ComboMultiplier)
	assert.Equal(t, int64(25), d.Stats.BestCombo)
}
