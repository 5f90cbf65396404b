package game

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type ClickResult struct {
	Damage         float64 `json:"damage"`
	CoinsGained    float64 `json:"coins_gained"`
	LuckyBonus     float64 `json:"lucky_bonus"`
	XPGained       int64   `json:"xp_gained"`
	DiamondsGained float64 `json:"diamonds_gained"`
	IsCritical     bool    `json:"is_critical"`
	IsLucky        bool    `json:"is_lucky"`
	HitBoss        bool    `json:"hit_boss"`
	Combo          int     `json:"combo"`
}

// ResolveClick applies one untimed click. It never extends a combo.
func (e *Engine) ResolveClick(s *PlayerState) (ClickResult, []Event) {
	return e.ResolveClickAt(s, time.Time{})
}

// ResolveClickAt applies one manual click made at the given time. While a boss
// is engaged the click damage goes to the boss and earns no coins or score;
// lucky bonus coins are still paid because they do not come from damage.
func (e *Engine) ResolveClickAt(s *PlayerState, at time.Time) (ClickResult, []Event) {
	base := e.BaseDamage(s)
	combo := e.advanceCombo(s, at)
	critRoll := e.nextFloat()
	luckyRoll := e.nextFloat()
	diamondRoll := e.nextFloat()

	var res ClickResult
	var events []Event

	res.Combo = combo
	damage := base
	if critRoll < e.CriticalChance(s) {
		damage *= e.CriticalMultiplier(s)
		res.IsCritical = true
		s.Stats.CriticalHits++
		s.CriticalStreak++
		s.Stats.BestCriticalStreak = max(s.Stats.BestCriticalStreak, int64(s.CriticalStreak))
	} else {
		s.CriticalStreak = 0
	}
	damage = floorNonNeg(damage * e.ComboMultiplier(combo))
	res.Damage = damage

	s.TotalClicks++
	s.Stats.TotalDamageDealt += damage
	if res.IsCritical {
		events = append(events, Event{Type: EventCritical, Amount: damage})
	}

	if s.CurrentBoss != nil {
		res.HitBoss = true
		events = append(events, e.damageBoss(s, damage)...)
	} else {
		coins := floorNonNeg(damage * s.Multipliers.Coin)
		earnCoins(s, coins)
		s.Score += damage
		res.CoinsGained = coins
		events = append(events, Event{Type: EventDamage, Amount: damage})
	}

	if luckyRoll < e.LuckyChance(s) {
		bonus := floorNonNeg(math.Floor(base) * e.LuckyMultiplier(s) * s.Multipliers.Coin)
		earnCoins(s, bonus)
		res.IsLucky = true
		res.LuckyBonus = bonus
		res.CoinsGained += bonus
		s.Stats.LuckyClicks++
		s.LuckyStreak++
		s.Stats.BestLuckyStreak = max(s.Stats.BestLuckyStreak, int64(s.LuckyStreak))
		events = append(events, Event{Type: EventLucky, Amount: bonus})
	} else {
		s.LuckyStreak = 0
	}

	if diamondRoll < e.rules.DiamondDropChance {
		d := math.Max(1, math.Floor(s.Multipliers.Diamond))
		earnDiamonds(s, d)
		res.DiamondsGained = d
		events = append(events, Event{Type: EventDiamondDrop, Amount: d})
	}

	res.XPGained = e.rules.XPPerClick
	events = append(events, levelUpEvents(e.ApplyExperience(s, res.XPGained))...)
	return res, events
}

// advanceCombo counts a click made at the given time toward the combo and
// returns the new combo. A click outside the window, or one without a time,
// starts over at 1.
func (e *Engine) advanceCombo(s *PlayerState, at time.Time) int {
	if at.IsZero() {
		s.Combo = 1
	} else {
		if s.LastClickAt != nil && s.Combo > 0 {
			if gap := at.Sub(*s.LastClickAt); gap >= 0 && gap < e.rules.ComboWindow {
				s.Combo = min(s.Combo+1, e.rules.ComboCap)
			} else {
				s.Combo = 1
			}
		} else {
			s.Combo = 1
		}
		t := at.UTC()
		s.LastClickAt = &t
	}
	s.Stats.BestCombo = max(s.Stats.BestCombo, int64(s.Combo))
	return s.Combo
}

// ComboMultiplier is 1 + ComboStep × (combo - 1), exact to the step.
func (e *Engine) ComboMultiplier(combo int) float64 {
	if combo <= 1 {
		return 1
	}
	m := decimal.NewFromFloat(e.rules.ComboStep).Mul(decimal.NewFromInt(int64(combo - 1))).Add(decimal.NewFromInt(1))
	return m.InexactFloat64()
}

// liveCombo is the combo a click made at now would continue from.
func (e *Engine) liveCombo(s *PlayerState, now time.Time) int {
	if s.LastClickAt == nil || now.Sub(*s.LastClickAt) >= e.rules.ComboWindow {
		return 0
	}
	return s.Combo
}
