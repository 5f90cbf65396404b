package game

import (
	"fmt"
	"time"

	"tycoon/internal/catalog"
)

type DailyClaim struct {
	Streak int                 `json:"streak"`
	Reward catalog.DailyReward `json:"reward"`
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClaimDaily pays the reward for the current streak. Claiming on the next UTC
// day extends the streak; skipping a day starts over at day one.
func (e *Engine) ClaimDaily(s *PlayerState, now time.Time) (DailyClaim, []Event, error) {
	today := utcDay(now)
	if s.LastDailyClaim != nil {
		days := int(today.Sub(utcDay(*s.LastDailyClaim)).Hours() / 24)
		switch {
		case days <= 0:
			return DailyClaim{}, nil, fmt.Errorf("%w: next claim after %s", ErrDailyClaimed, today.Add(24*time.Hour).Format(time.RFC3339))
		case days == 1:
			s.DailyStreak++
		default:
			s.DailyStreak = 1
		}
	} else {
		s.DailyStreak = 1
	}

	reward := e.cat.DailyReward(s.DailyStreak)
	claimed := now.UTC()
	s.LastDailyClaim = &claimed
	earnCoins(s, reward.Coins)
	earnDiamonds(s, reward.Diamonds)

	events := []Event{{Type: EventDailyClaimed, Level: s.DailyStreak, Amount: reward.Coins}}
	events = append(events, levelUpEvents(e.ApplyExperience(s, reward.XP))...)
	return DailyClaim{Streak: s.DailyStreak, Reward: reward}, events, nil
}
