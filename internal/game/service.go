package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tycoon/internal/metrics"

	"github.com/google/uuid"
)

const rememberedKeys = 256

// Persister loads and stores whole player states. A nil state with a nil
// error means the player has no usable save.
type Persister interface {
	Load(ctx context.Context, playerID string) (*PlayerState, LoadReport, error)
	Save(ctx context.Context, playerID string, s *PlayerState) error
}

type session struct {
	mu sync.Mutex
	// saveMu is held from taking a snapshot until the store has it, so saves
	// of one player reach the store in snapshot order.
	saveMu sync.Mutex

	id       string
	state    *PlayerState
	report   LoadReport
	dirty    bool
	evicted  bool
	err      error
	lastSeen time.Time
	keys     []string
	keySet   map[string]struct{}
}

func (s *session) seen(key string) bool {
	if key == "" {
		return false
	}
	_, ok := s.keySet[key]
	return ok
}

func (s *session) remember(key string) {
	if key == "" {
		return
	}
	if s.keySet == nil {
		s.keySet = map[string]struct{}{}
	}
	s.keys = append(s.keys, key)
	s.keySet[key] = struct{}{}
	if len(s.keys) > rememberedKeys {
		delete(s.keySet, s.keys[0])
		s.keys = s.keys[1:]
	}
}

// Service keeps live players in memory. Every action, timer tick and save
// holds the player's session lock for one whole transition.
type Service struct {
	engine *Engine
	store  Persister
	pub    Publisher
	log    *slog.Logger
	now    func() time.Time

	idleAfter time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(engine *Engine, store Persister, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Service{
		engine:    engine,
		store:     store,
		pub:       pub,
		log:       logger,
		now:       time.Now,
		idleAfter: 30 * time.Minute,
		sessions:  map[string]*session{},
	}
}

func (s *Service) SetIdleAfter(d time.Duration) {
	if d > 0 {
		s.idleAfter = d
	}
}

// SetClock replaces the service's time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

func (s *Service) CreatePlayer(ctx context.Context) (Dashboard, error) {
	id := uuid.NewString()
	var out Dashboard
	err := s.withSession(ctx, id, func(sess *session) error {
		out = s.engine.Dashboard(id, sess.state, s.now())
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	if err := s.SaveNow(ctx, id); err != nil {
		s.log.Warn("initial save failed", "player_id", id, "err", err)
	}
	s.log.Info("player created", "player_id", id)
	return out, nil
}

func (s *Service) Dashboard(ctx context.Context, playerID string) (Dashboard, error) {
	var out Dashboard
	err := s.read(ctx, playerID, func(st *PlayerState) {
		out = s.engine.Dashboard(playerID, st, s.now())
	})
	return out, err
}

func (s *Service) Shop(ctx context.Context, playerID string) ([]UpgradeView, error) {
	var out []UpgradeView
	err := s.read(ctx, playerID, func(st *PlayerState) { out = s.engine.Shop(st) })
	return out, err
}

func (s *Service) BossBoard(ctx context.Context, playerID string) ([]BossView, error) {
	var out []BossView
	err := s.read(ctx, playerID, func(st *PlayerState) { out = s.engine.BossBoard(st) })
	return out, err
}

func (s *Service) SkinBoard(ctx context.Context, playerID string) ([]SkinView, error) {
	var out []SkinView
	err := s.read(ctx, playerID, func(st *PlayerState) { out = s.engine.SkinBoard(st) })
	return out, err
}

func (s *Service) AchievementBoard(ctx context.Context, playerID string) ([]AchievementView, error) {
	var out []AchievementView
	err := s.read(ctx, playerID, func(st *PlayerState) { out = s.engine.AchievementBoard(st) })
	return out, err
}

func (s *Service) PreviewPrestige(ctx context.Context, playerID string) (PrestigePreview, error) {
	var out PrestigePreview
	err := s.read(ctx, playerID, func(st *PlayerState) { out = s.engine.PreviewPrestige(st) })
	return out, err
}

func (s *Service) LoadReport(ctx context.Context, playerID string) (LoadReport, error) {
	var out LoadReport
	err := s.withSession(ctx, playerID, func(sess *session) error {
		out = sess.report
		return nil
	})
	return out, err
}

// Snapshot returns a deep copy of the player's current state.
func (s *Service) Snapshot(ctx context.Context, playerID string) (*PlayerState, error) {
	var out *PlayerState
	err := s.read(ctx, playerID, func(st *PlayerState) { out = st.Clone() })
	return out, err
}

func (s *Service) Click(ctx context.Context, playerID string, count int, idem string) (ClickSummary, error) {
	if count < 1 {
		count = 1
	}
	if count > MaxClicksPerRequest {
		count = MaxClicksPerRequest
	}
	var out ClickSummary
	err := s.mutate(ctx, playerID, ActionClick, idem, func(st *PlayerState) ([]Event, error) {
		var events []Event
		at := s.now()
		for i := 0; i < count; i++ {
			res, evs := s.engine.ResolveClickAt(st, at)
			out.Clicks++
			out.Damage += res.Damage
			out.CoinsGained += res.CoinsGained
			out.LuckyBonus += res.LuckyBonus
			out.XPGained += res.XPGained
			out.Diamonds += res.DiamondsGained
			if res.IsCritical {
				out.Criticals++
			}
			if res.IsLucky {
				out.Luckies++
			}
			for _, ev := range evs {
				switch ev.Type {
				case EventLevelUp:
					out.LevelUps++
				case EventBossDefeated:
					out.BossesSlain = append(out.BossesSlain, ev.Ref)
				}
			}
			events = append(events, evs...)
		}
		out.Combo = st.Combo
		if st.CurrentBoss != nil {
			remaining := st.CurrentBoss.CurrentHealth
			out.BossRemaining = &remaining
		}
		metrics.ClicksTotal.Add(float64(out.Clicks))
		return events, nil
	}, func(evs []Event) {
		for _, ev := range evs {
			if ev.Type == EventAchievement {
				out.Achievements = append(out.Achievements, ev.Ref)
			}
		}
	})
	return out, err
}

func (s *Service) BuyUpgrade(ctx context.Context, playerID, upgradeID, idem string) (Purchase, error) {
	var out Purchase
	err := s.mutate(ctx, playerID, ActionBuyUpgrade, idem, func(st *PlayerState) ([]Event, error) {
		p, evs, err := s.engine.Purchase(st, upgradeID)
		out = p
		return evs, err
	}, nil)
	return out, err
}

func (s *Service) EngageBoss(ctx context.Context, playerID, bossID, idem string) (BossEncounter, error) {
	var out BossEncounter
	err := s.mutate(ctx, playerID, ActionEngageBoss, idem, func(st *PlayerState) ([]Event, error) {
		enc, evs, err := s.engine.EngageBoss(st, bossID, s.now())
		if enc != nil {
			out = *enc
		}
		return evs, err
	}, nil)
	return out, err
}

func (s *Service) FleeBoss(ctx context.Context, playerID, idem string) (string, error) {
	var out string
	err := s.mutate(ctx, playerID, ActionFleeBoss, idem, func(st *PlayerState) ([]Event, error) {
		id, evs, err := s.engine.FleeBoss(st)
		out = id
		return evs, err
	}, nil)
	return out, err
}

func (s *Service) Prestige(ctx context.Context, playerID, idem string) (PrestigeResult, error) {
	var out PrestigeResult
	err := s.mutate(ctx, playerID, ActionPrestige, idem, func(st *PlayerState) ([]Event, error) {
		res, evs, err := s.engine.Prestige(st)
		out = res
		return evs, err
	}, nil)
	if err == nil {
		s.log.Info("player prestiged", "player_id", playerID, "prestige_level", out.PrestigeLevel, "multiplier", out.Multiplier)
	}
	return out, err
}

func (s *Service) BuySkin(ctx context.Context, playerID, skinID, idem string) error {
	return s.mutate(ctx, playerID, ActionBuySkin, idem, func(st *PlayerState) ([]Event, error) {
		_, evs, err := s.engine.PurchaseSkin(st, skinID)
		return evs, err
	}, nil)
}

func (s *Service) EquipSkin(ctx context.Context, playerID, skinID, idem string) error {
	return s.mutate(ctx, playerID, ActionEquipSkin, idem, func(st *PlayerState) ([]Event, error) {
		return s.engine.EquipSkin(st, skinID)
	}, nil)
}

func (s *Service) ClaimDaily(ctx context.Context, playerID, idem string) (DailyClaim, error) {
	var out DailyClaim
	err := s.mutate(ctx, playerID, ActionClaimDaily, idem, func(st *PlayerState) ([]Event, error) {
		claim, evs, err := s.engine.ClaimDaily(st, s.now())
		out = claim
		return evs, err
	}, nil)
	return out, err
}

// SaveNow writes the player's state immediately. The in-memory state is kept
// whatever the outcome.
func (s *Service) SaveNow(ctx context.Context, playerID string) error {
	var live *session
	err := s.withSession(ctx, playerID, func(sess *session) error {
		live = sess
		return nil
	})
	if err != nil {
		return err
	}
	return s.save(ctx, live, true)
}

// save writes a snapshot of the session when it is dirty, or always with force.
func (s *Service) save(ctx context.Context, sess *session, force bool) error {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	sess.mu.Lock()
	if sess.evicted || sess.err != nil || sess.state == nil || (!force && !sess.dirty) {
		sess.mu.Unlock()
		return nil
	}
	snapshot := sess.state.Clone()
	sess.dirty = false
	id := sess.id
	sess.mu.Unlock()

	if err := s.persist(ctx, id, snapshot); err != nil {
		sess.mu.Lock()
		sess.dirty = true
		sess.mu.Unlock()
		return err
	}
	return nil
}

// Tick advances timers for every live player.
func (s *Service) Tick(ctx context.Context, elapsed time.Duration) {
	for _, sess := range s.liveSessions() {
		if ctx.Err() != nil {
			return
		}
		sess.mu.Lock()
		if sess.evicted || sess.err != nil || sess.state == nil {
			sess.mu.Unlock()
			continue
		}
		_, events := s.engine.Tick(sess.state, elapsed)
		events = append(events, s.engine.CheckAchievements(sess.state)...)
		sess.dirty = true
		id := sess.id
		sess.mu.Unlock()
		s.emit(id, events)
	}
}

// Flush saves every dirty player and drops players idle past the limit.
// Failures are logged and published; the player stays dirty for the next try.
func (s *Service) Flush(ctx context.Context) int {
	failed := 0
	now := s.now()
	for _, sess := range s.liveSessions() {
		if err := s.save(ctx, sess, false); err != nil {
			failed++
			continue
		}
		s.evictIfIdle(sess, now)
	}
	return failed
}

// Run drives the tick and autosave timers until ctx is done, then saves once more.
func (s *Service) Run(ctx context.Context, tickEvery, autosaveEvery time.Duration) {
	tick := time.NewTicker(tickEvery)
	defer tick.Stop()
	autosave := time.NewTicker(autosaveEvery)
	defer autosave.Stop()

	s.log.Info("game timers started", "tick_every", tickEvery.String(), "autosave_every", autosaveEvery.String())
	last := s.now()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			failed := s.Flush(flushCtx)
			cancel()
			s.log.Info("game timers stopped", "unsaved_players", failed)
			return
		case <-tick.C:
			now := s.now()
			s.Tick(ctx, now.Sub(last).Truncate(time.Second))
			last = last.Add(now.Sub(last).Truncate(time.Second))
		case <-autosave.C:
			if failed := s.Flush(ctx); failed > 0 {
				s.log.Warn("autosave incomplete", "failed", failed)
			}
		}
	}
}

func (s *Service) read(ctx context.Context, playerID string, fn func(st *PlayerState)) error {
	return s.withSession(ctx, playerID, func(sess *session) error {
		fn(sess.state)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, playerID, action, idem string, fn func(st *PlayerState) ([]Event, error), after func([]Event)) error {
	var events []Event
	var id string
	err := s.withSession(ctx, playerID, func(sess *session) error {
		if sess.seen(idem) {
			return fmt.Errorf("%w: %s", ErrDuplicateIdempotency, idem)
		}
		evs, err := fn(sess.state)
		if err != nil {
			return err
		}
		evs = append(evs, s.engine.CheckAchievements(sess.state)...)
		sess.remember(idem)
		sess.dirty = true
		events = evs
		id = sess.id
		return nil
	})
	if err != nil {
		metrics.ActionRejections.WithLabelValues(action, rejectionReason(err)).Inc()
		return err
	}
	if after != nil {
		after(events)
	}
	s.emit(id, events)
	return nil
}

func (s *Service) withSession(ctx context.Context, playerID string, fn func(sess *session) error) error {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return err
	}
	for {
		sess, err := s.acquire(ctx, id)
		if err != nil {
			return err
		}
		sess.mu.Lock()
		if sess.err != nil {
			err := sess.err
			sess.mu.Unlock()
			return err
		}
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		sess.lastSeen = s.now()
		err = fn(sess)
		sess.mu.Unlock()
		return err
	}
}

// acquire returns the live session for id, loading it on first use. The
// session lock is held during the load so concurrent callers wait for it.
func (s *Service) acquire(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	sess := &session{id: id}
	sess.mu.Lock()
	s.sessions[id] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	err := s.load(ctx, sess)
	if err != nil {
		sess.err = err
	}
	sess.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		if s.sessions[id] == sess {
			delete(s.sessions, id)
		}
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.mu.Unlock()
	}
	return sess, err
}

func (s *Service) load(ctx context.Context, sess *session) error {
	st, report, err := s.store.Load(ctx, sess.id)
	if err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		s.log.Error("player load failed", "player_id", sess.id, "err", err)
		return err
	}
	if st == nil {
		st = s.engine.NewPlayerState()
		report.Source = LoadedFresh
		sess.dirty = true
	}
	st.Normalize()
	sess.state = st
	sess.report = report
	sess.lastSeen = s.now()
	metrics.Loads.WithLabelValues(report.Source).Inc()

	if report.Problem != "" {
		s.log.Warn("player save recovered", "player_id", sess.id, "source", report.Source, "problem", report.Problem)
		s.pub.Publish(sess.id, []Event{{Type: EventSaveRecovered, Ref: report.Source, Message: report.Problem}})
	}
	return nil
}

func (s *Service) persist(ctx context.Context, id string, snapshot *PlayerState) error {
	err := s.store.Save(ctx, id, snapshot)
	if err == nil {
		metrics.Saves.WithLabelValues("ok").Inc()
		return nil
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	metrics.Saves.WithLabelValues("failed").Inc()
	s.log.Error("save failed", "player_id", id, "err", err)
	s.pub.Publish(id, []Event{{Type: EventSaveFailed, Message: err.Error()}})
	return err
}

func (s *Service) evictIfIdle(sess *session, now time.Time) {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.dirty || sess.evicted || now.Sub(sess.lastSeen) < s.idleAfter {
		return
	}
	sess.evicted = true
	delete(s.sessions, sess.id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.log.Info("player session evicted", "player_id", sess.id)
}

func (s *Service) liveSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Service) emit(playerID string, events []Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		switch ev.Type {
		case EventCritical:
			metrics.CriticalHits.Inc()
		case EventLucky:
			metrics.LuckyClicks.Inc()
		case EventUpgradePurchased:
			metrics.UpgradesPurchased.WithLabelValues(ev.Ref).Inc()
		case EventBossDefeated:
			metrics.BossesDefeated.WithLabelValues(ev.Ref).Inc()
		case EventPrestige:
			metrics.Prestiges.Inc()
		}
	}
	s.pub.Publish(playerID, events)
}

func rejectionReason(err error) string {
	for _, known := range []struct {
		err    error
		reason string
	}{
		{ErrInsufficientFunds, "insufficient_funds"},
		{ErrMaxLevelReached, "max_level"},
		{ErrUnknownUpgrade, "unknown_upgrade"},
		{ErrUpgradeLocked, "upgrade_locked"},
		{ErrBelowThreshold, "below_threshold"},
		{ErrUnknownBoss, "unknown_boss"},
		{ErrBossLocked, "boss_locked"},
		{ErrBossActive, "boss_active"},
		{ErrBossDefeated, "boss_defeated"},
		{ErrNoActiveBoss, "no_active_boss"},
		{ErrUnknownSkin, "unknown_skin"},
		{ErrSkinOwned, "skin_owned"},
		{ErrSkinNotOwned, "skin_not_owned"},
		{ErrDailyClaimed, "daily_claimed"},
		{ErrDuplicateIdempotency, "duplicate"},
		{ErrInvalidPlayerID, "invalid_player"},
		{ErrStorageUnavailable, "storage"},
	} {
		if errors.Is(err, known.err) {
			return known.reason
		}
	}
	return "other"
}
