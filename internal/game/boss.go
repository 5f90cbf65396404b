package game

import (
	"fmt"
	"math"
	"slices"
	"time"

	"tycoon/internal/catalog"
)

type BossDefeat struct {
	BossID         string  `json:"boss_id"`
	RewardCoins    float64 `json:"reward_coins"`
	RewardDiamonds float64 `json:"reward_diamonds"`
	RewardXP       int64   `json:"reward_xp"`
}

type BossView struct {
	catalog.Boss
	Unlocked bool `json:"unlocked"`
	Defeated bool `json:"defeated"`
	Engaged  bool `json:"engaged"`
}

func (e *Engine) BossBoard(s *PlayerState) []BossView {
	bosses := e.cat.Bosses()
	out := make([]BossView, 0, len(bosses))
	for _, b := range bosses {
		out = append(out, BossView{
			Boss:     b,
			Unlocked: s.Level >= b.UnlockLevel,
			Defeated: slices.Contains(s.DefeatedBosses, b.ID),
			Engaged:  s.CurrentBoss != nil && s.CurrentBoss.BossID == b.ID,
		})
	}
	return out
}

func (e *Engine) EngageBoss(s *PlayerState, bossID string, now time.Time) (*BossEncounter, []Event, error) {
	b, ok := e.cat.Boss(bossID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownBoss, bossID)
	}
	if s.CurrentBoss != nil {
		return nil, nil, fmt.Errorf("%w: fighting %s", ErrBossActive, s.CurrentBoss.BossID)
	}
	if s.Level < b.UnlockLevel {
		return nil, nil, fmt.Errorf("%w: %s unlocks at level %d", ErrBossLocked, b.ID, b.UnlockLevel)
	}
	if slices.Contains(s.DefeatedBosses, b.ID) {
		return nil, nil, fmt.Errorf("%w: %s", ErrBossDefeated, b.ID)
	}
	s.CurrentBoss = &BossEncounter{
		BossID:        b.ID,
		MaxHealth:     b.Health,
		CurrentHealth: b.Health,
		RewardCoins:   b.RewardCoins,
		Phase:         PhaseNormal,
		StartedAt:     now.UTC(),
	}
	cp := *s.CurrentBoss
	return &cp, []Event{{Type: EventBossEngaged, Ref: b.ID, Amount: b.Health, Message: b.Name}}, nil
}

func (e *Engine) FleeBoss(s *PlayerState) (string, []Event, error) {
	if s.CurrentBoss == nil {
		return "", nil, ErrNoActiveBoss
	}
	id := s.CurrentBoss.BossID
	s.CurrentBoss = nil
	return id, []Event{{Type: EventBossFled, Ref: id}}, nil
}

// damageBoss lowers the engaged boss's health, clamped at zero. Reaching zero
// defeats the boss and clears the encounter, so rewards cannot repeat.
func (e *Engine) damageBoss(s *PlayerState, damage float64) []Event {
	b := s.CurrentBoss
	if b == nil {
		return nil
	}
	b.CurrentHealth = math.Max(0, b.CurrentHealth-damage)
	events := []Event{{Type: EventBossDamaged, Ref: b.BossID, Amount: damage}}
	if b.CurrentHealth <= 0 {
		_, defeatEvents := e.defeatBoss(s)
		return append(events, defeatEvents...)
	}
	if phase := e.phaseFor(b); phase != b.Phase {
		b.Phase = phase
		events = append(events, Event{Type: EventBossPhase, Ref: b.BossID, Message: string(phase)})
	}
	return events
}

func (e *Engine) defeatBoss(s *PlayerState) (BossDefeat, []Event) {
	enc := s.CurrentBoss
	s.CurrentBoss = nil

	out := BossDefeat{BossID: enc.BossID, RewardCoins: enc.RewardCoins}
	if def, ok := e.cat.Boss(enc.BossID); ok {
		out.RewardDiamonds = def.RewardDiamonds
		out.RewardXP = def.RewardXP
	}
	earnCoins(s, out.RewardCoins)
	s.Score += out.RewardCoins
	earnDiamonds(s, out.RewardDiamonds)
	s.DefeatedBosses, _ = addUnique(s.DefeatedBosses, enc.BossID)
	s.Stats.TotalBossesDefeated++

	events := []Event{{Type: EventBossDefeated, Ref: enc.BossID, Amount: out.RewardCoins}}
	return out, append(events, levelUpEvents(e.ApplyExperience(s, out.RewardXP))...)
}

func (e *Engine) phaseFor(b *BossEncounter) BossPhase {
	ratio := b.HealthRatio()
	switch {
	case ratio <= e.rules.BerserkAt:
		return PhaseBerserk
	case ratio <= e.rules.EnragedAt:
		return PhaseEnraged
	default:
		return PhaseNormal
	}
}

func (e *Engine) attackProfile(phase BossPhase) (time.Duration, float64) {
	switch phase {
	case PhaseBerserk:
		return e.rules.BerserkAttackEvery, e.rules.BerserkDamage
	case PhaseEnraged:
		return e.rules.EnragedAttackEvery, e.rules.EnragedDamage
	default:
		return e.rules.BossAttackEvery, 1
	}
}

// BossCounterAttack advances the engaged boss's attack timer. Every elapsed
// interval takes coins from the player, never more than they hold.
func (e *Engine) BossCounterAttack(s *PlayerState, elapsed time.Duration) []Event {
	b := s.CurrentBoss
	if b == nil || elapsed <= 0 {
		return nil
	}
	def, ok := e.cat.Boss(b.BossID)
	if !ok || def.AttackDamage <= 0 {
		return nil
	}
	var events []Event
	if phase := e.phaseFor(b); phase != b.Phase {
		b.Phase = phase
		events = append(events, Event{Type: EventBossPhase, Ref: b.BossID, Message: string(phase)})
	}
	every, scale := e.attackProfile(b.Phase)
	if every < time.Millisecond {
		return events
	}
	b.SinceAttackMS += elapsed.Milliseconds()
	for b.SinceAttackMS >= every.Milliseconds() {
		b.SinceAttackMS -= every.Milliseconds()
		loss := math.Min(math.Floor(def.AttackDamage*scale), s.Coins)
		s.Coins -= loss
		events = append(events, Event{Type: EventBossAttack, Ref: b.BossID, Amount: loss, Message: string(b.Phase)})
	}
	return events
}
