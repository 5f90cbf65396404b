package game

import (
	"slices"

	"tycoon/internal/catalog"
)

type AchievementView struct {
	catalog.Achievement
	Unlocked bool    `json:"unlocked"`
	Progress float64 `json:"progress"`
}

func (e *Engine) achievementProgress(s *PlayerState, kind catalog.AchievementKind) float64 {
	switch kind {
	case catalog.KindClicks:
		return float64(s.TotalClicks)
	case catalog.KindCoins:
		return s.Coins
	case catalog.KindCoinsEarned:
		return s.Stats.TotalCoinsEarned
	case catalog.KindLevel:
		return float64(s.Level)
	case catalog.KindBosses:
		return float64(s.Stats.TotalBossesDefeated)
	case catalog.KindPrestiges:
		return float64(s.Stats.TotalPrestiges)
	case catalog.KindUpgrades:
		return float64(s.UpgradeLevelTotal())
	case catalog.KindUpgradeMaxed:
		maxed := 0
		for id, lvl := range s.Upgrades {
			if u, ok := e.cat.Upgrade(id); ok && lvl >= u.MaxLevel {
				maxed++
			}
		}
		return float64(maxed)
	case catalog.KindCriticalHits:
		return float64(s.Stats.CriticalHits)
	case catalog.KindLuckyClicks:
		return float64(s.Stats.LuckyClicks)
	case catalog.KindSkins:
		return float64(len(s.OwnedSkins))
	case catalog.KindCombo:
		return float64(s.Stats.BestCombo)
	case catalog.KindCriticalStreak:
		return float64(s.Stats.BestCriticalStreak)
	case catalog.KindLuckyStreak:
		return float64(s.Stats.BestLuckyStreak)
	}
	return 0
}

// CheckAchievements unlocks every achievement whose threshold is met. Rewards
// can push other counters over their thresholds, so it repeats until nothing
// new unlocks. Already unlocked ids are never granted twice.
func (e *Engine) CheckAchievements(s *PlayerState) []Event {
	var events []Event
	all := e.cat.Achievements()
	for {
		unlocked := false
		for _, a := range all {
			if slices.Contains(s.Achievements, a.ID) {
				continue
			}
			if e.achievementProgress(s, a.Kind) < a.Threshold {
				continue
			}
			s.Achievements, _ = addUnique(s.Achievements, a.ID)
			earnCoins(s, a.RewardCoins)
			earnDiamonds(s, a.RewardDiamonds)
			events = append(events, Event{Type: EventAchievement, Ref: a.ID, Amount: a.RewardCoins, Message: a.Name})
			unlocked = true
		}
		if !unlocked {
			return events
		}
	}
}

func (e *Engine) AchievementBoard(s *PlayerState) []AchievementView {
	all := e.cat.Achievements()
	out := make([]AchievementView, 0, len(all))
	for _, a := range all {
		v := AchievementView{Achievement: a, Unlocked: slices.Contains(s.Achievements, a.ID)}
		if v.Unlocked {
			v.Progress = 1
		} else if a.Threshold > 0 {
			v.Progress = min(1, e.achievementProgress(s, a.Kind)/a.Threshold)
		}
		out = append(out, v)
	}
	return out
}
