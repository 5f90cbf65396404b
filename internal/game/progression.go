package game

import "math"

type LevelUp struct {
	Level          int     `json:"level"`
	RewardCoins    float64 `json:"reward_coins"`
	RewardDiamonds float64 `json:"reward_diamonds"`
}

// ApplyExperience adds XP and resolves every level it pays for, so one large
// grant and several small ones summing to it end in the same state.
func (e *Engine) ApplyExperience(s *PlayerState, amount int64) []LevelUp {
	if amount <= 0 {
		return nil
	}
	if s.ExperienceToNext <= 0 {
		s.ExperienceToNext = e.rules.StartingXPToNext
	}
	s.Experience += amount

	var ups []LevelUp
	for s.Experience >= s.ExperienceToNext {
		s.Experience -= s.ExperienceToNext
		s.Level++
		s.ExperienceToNext = int64(math.Floor(float64(s.ExperienceToNext) * e.rules.XPGrowth))
		if s.ExperienceToNext < 1 {
			s.ExperienceToNext = 1
		}

		up := LevelUp{
			Level:       s.Level,
			RewardCoins: float64(s.Level) * e.rules.LevelCoinReward,
		}
		if e.rules.LevelDiamondEvery > 0 {
			up.RewardDiamonds = float64(s.Level / e.rules.LevelDiamondEvery)
		}
		earnCoins(s, up.RewardCoins)
		earnDiamonds(s, up.RewardDiamonds)
		ups = append(ups, up)
	}
	return ups
}

// ExperienceProgress is the fraction of the current level already earned.
func ExperienceProgress(s *PlayerState) float64 {
	if s.ExperienceToNext <= 0 {
		return 0
	}
	return math.Min(1, float64(s.Experience)/float64(s.ExperienceToNext))
}
