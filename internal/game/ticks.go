package game

import "time"

type TickResult struct {
	AutoDamage  float64 `json:"auto_damage"`
	CoinsGained float64 `json:"coins_gained"`
	CoinsLost   float64 `json:"coins_lost"`
	PlayTime    int64   `json:"play_time"`
}

// AutoClick credits auto-clicker output for the elapsed time: each auto click
// is worth AutoClickFactor of a manual click and never rolls critical or lucky.
func (e *Engine) AutoClick(s *PlayerState, elapsed time.Duration) (float64, float64, []Event) {
	if s.ClicksPerSecond <= 0 || elapsed <= 0 {
		return 0, 0, nil
	}
	damage := floorNonNeg(e.BaseDamage(s) * e.rules.AutoClickFactor * s.ClicksPerSecond * elapsed.Seconds())
	if damage <= 0 {
		return 0, 0, nil
	}
	s.Stats.TotalDamageDealt += damage
	if s.CurrentBoss != nil {
		return damage, 0, e.damageBoss(s, damage)
	}
	coins := floorNonNeg(damage * s.Multipliers.Coin)
	earnCoins(s, coins)
	s.Score += damage
	return damage, coins, []Event{{Type: EventAutoClick, Amount: coins}}
}

// Tick runs the timer-driven behavior for one interval: auto clicks, boss
// counter-attacks and play time.
func (e *Engine) Tick(s *PlayerState, elapsed time.Duration) (TickResult, []Event) {
	var res TickResult
	var events []Event

	damage, coins, autoEvents := e.AutoClick(s, elapsed)
	res.AutoDamage = damage
	res.CoinsGained = coins
	events = append(events, autoEvents...)

	before := s.Coins
	events = append(events, e.BossCounterAttack(s, elapsed)...)
	res.CoinsLost = before - s.Coins

	if secs := int64(elapsed / time.Second); secs > 0 {
		s.Stats.PlayTime += secs
	}
	res.PlayTime = s.Stats.PlayTime
	return res, events
}
