package game

import (
	"fmt"
	"math"
)

type PrestigeResult struct {
	Bonus         int64   `json:"bonus"`
	PrestigeLevel int     `json:"prestige_level"`
	Multiplier    float64 `json:"prestige_multiplier"`
}

type PrestigePreview struct {
	Eligible          bool    `json:"eligible"`
	Score             float64 `json:"score"`
	Threshold         float64 `json:"threshold"`
	Bonus             int64   `json:"bonus"`
	CurrentMultiplier float64 `json:"current_multiplier"`
	NextMultiplier    float64 `json:"next_multiplier"`
}

func (e *Engine) PreviewPrestige(s *PlayerState) PrestigePreview {
	p := PrestigePreview{
		Score:             s.Score,
		Threshold:         e.rules.PrestigeThreshold,
		CurrentMultiplier: s.PrestigeMultiplier,
		NextMultiplier:    s.PrestigeMultiplier,
	}
	if s.Score >= e.rules.PrestigeThreshold {
		p.Eligible = true
		p.Bonus = int64(math.Floor(s.Score / e.rules.PrestigeThreshold))
		p.NextMultiplier = addPrestigeBonus(s.PrestigeMultiplier, p.Bonus, e.rules.PrestigeBonusStep)
	}
	return p
}

// Prestige trades the current run for a permanent multiplier. Skins,
// achievements, diamonds, the daily streak and lifetime stats carry over.
func (e *Engine) Prestige(s *PlayerState) (PrestigeResult, []Event, error) {
	preview := e.PreviewPrestige(s)
	if !preview.Eligible {
		return PrestigeResult{}, nil, fmt.Errorf("%w: %s of %s", ErrBelowThreshold, FormatNumber(s.Score), FormatNumber(e.rules.PrestigeThreshold))
	}

	s.PrestigeLevel++
	s.PrestigeMultiplier = preview.NextMultiplier
	s.Stats.TotalPrestiges++

	s.Coins = 0
	s.Score = 0
	s.ClickPower = StartingClickPower
	s.ClicksPerSecond = 0
	s.Upgrades = map[string]int{}
	s.Multipliers = IdentityMultipliers()
	s.Bonuses = Bonuses{}
	s.Level = 1
	s.Experience = 0
	s.ExperienceToNext = e.rules.StartingXPToNext
	s.CurrentBoss = nil
	s.DefeatedBosses = []string{}

	out := PrestigeResult{
		Bonus:         preview.Bonus,
		PrestigeLevel: s.PrestigeLevel,
		Multiplier:    s.PrestigeMultiplier,
	}
	return out, []Event{{Type: EventPrestige, Level: s.PrestigeLevel, Amount: s.PrestigeMultiplier}}, nil
}
