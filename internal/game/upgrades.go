package game

import (
	"fmt"

	"tycoon/internal/catalog"

	"github.com/shopspring/decimal"
)

type Purchase struct {
	UpgradeID string  `json:"upgrade_id"`
	Level     int     `json:"level"`
	Cost      float64 `json:"cost"`
	NextCost  float64 `json:"next_cost"`
	Maxed     bool    `json:"maxed"`
}

// UpgradeCost is floor(baseCost × growth^level), computed in decimal so that
// 100 × 1.15 costs 115 and not 114.
func UpgradeCost(u catalog.Upgrade, level int) float64 {
	growth := decimal.NewFromFloat(u.CostGrowth)
	cost := decimal.NewFromFloat(u.BaseCost)
	for i := 0; i < level; i++ {
		cost = cost.Mul(growth)
	}
	return cost.Floor().InexactFloat64()
}

// Purchase buys one level of an upgrade. On any error the state is untouched.
func (e *Engine) Purchase(s *PlayerState, upgradeID string) (Purchase, []Event, error) {
	u, ok := e.cat.Upgrade(upgradeID)
	if !ok {
		return Purchase{}, nil, fmt.Errorf("%w: %s", ErrUnknownUpgrade, upgradeID)
	}
	level := s.Upgrades[u.ID]
	if level >= u.MaxLevel {
		return Purchase{}, nil, fmt.Errorf("%w: %s is level %d", ErrMaxLevelReached, u.ID, level)
	}
	if u.Requires != "" && s.Upgrades[u.Requires] < 1 {
		return Purchase{}, nil, fmt.Errorf("%w: %s needs %s", ErrUpgradeLocked, u.ID, u.Requires)
	}
	cost := UpgradeCost(u, level)
	if s.Coins < cost {
		return Purchase{}, nil, fmt.Errorf("%w: %s costs %s", ErrInsufficientFunds, u.ID, FormatNumber(cost))
	}

	s.Normalize()
	s.Coins -= cost
	s.Upgrades[u.ID] = level + 1
	applyEffect(s, u)

	out := Purchase{
		UpgradeID: u.ID,
		Level:     level + 1,
		Cost:      cost,
		Maxed:     level+1 >= u.MaxLevel,
	}
	if !out.Maxed {
		out.NextCost = UpgradeCost(u, level+1)
	}
	return out, []Event{{Type: EventUpgradePurchased, Ref: u.ID, Level: out.Level, Amount: cost}}, nil
}

func applyEffect(s *PlayerState, u catalog.Upgrade) {
	switch u.Effect {
	case catalog.EffectClickPower:
		s.ClickPower += u.Magnitude
	case catalog.EffectAutoClick:
		s.ClicksPerSecond += u.Magnitude
	case catalog.EffectClickMultiplier:
		s.Multipliers.Click *= u.Magnitude
	case catalog.EffectGlobalMultiplier:
		s.Multipliers.Global *= u.Magnitude
	case catalog.EffectCoinMultiplier:
		s.Multipliers.Coin *= u.Magnitude
	case catalog.EffectDiamondMultiplier:
		s.Multipliers.Diamond *= u.Magnitude
	case catalog.EffectCriticalChance:
		s.Bonuses.CriticalChance += u.Magnitude
	case catalog.EffectCriticalPower:
		s.Bonuses.CriticalPower += u.Magnitude
	case catalog.EffectLuckyChance:
		s.Bonuses.LuckyChance += u.Magnitude
	case catalog.EffectLuckyPower:
		s.Bonuses.LuckyPower += u.Magnitude
	}
}

type UpgradeView struct {
	catalog.Upgrade
	Level      int     `json:"level"`
	NextCost   float64 `json:"next_cost"`
	Maxed      bool    `json:"maxed"`
	Locked     bool    `json:"locked"`
	Affordable bool    `json:"affordable"`
}

func (e *Engine) Shop(s *PlayerState) []UpgradeView {
	ups := e.cat.Upgrades()
	out := make([]UpgradeView, 0, len(ups))
	for _, u := range ups {
		v := UpgradeView{Upgrade: u, Level: s.Upgrades[u.ID]}
		v.Maxed = v.Level >= u.MaxLevel
		v.Locked = u.Requires != "" && s.Upgrades[u.Requires] < 1
		if !v.Maxed {
			v.NextCost = UpgradeCost(u, v.Level)
			v.Affordable = !v.Locked && s.Coins >= v.NextCost
		}
		out = append(out, v)
	}
	return out
}
