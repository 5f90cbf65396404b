package catalog

import (
	"errors"
	"time"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

type EffectType string

const (
	EffectClickPower        EffectType = "click_power"
	EffectAutoClick         EffectType = "auto_click"
	EffectClickMultiplier   EffectType = "click_multiplier"
	EffectGlobalMultiplier  EffectType = "global_multiplier"
	EffectCoinMultiplier    EffectType = "coin_multiplier"
	EffectDiamondMultiplier EffectType = "diamond_multiplier"
	EffectCriticalChance    EffectType = "critical_chance"
	EffectCriticalPower     EffectType = "critical_power"
	EffectLuckyChance       EffectType = "lucky_chance"
	EffectLuckyPower        EffectType = "lucky_power"
)

// Multiplicative reports whether the effect scales a multiplier instead of adding to a value.
func (e EffectType) Multiplicative() bool {
	switch e {
	case EffectClickMultiplier, EffectGlobalMultiplier, EffectCoinMultiplier, EffectDiamondMultiplier:
		return true
	}
	return false
}

func (e EffectType) valid() bool {
	switch e {
	case EffectClickPower, EffectAutoClick, EffectClickMultiplier, EffectGlobalMultiplier,
		EffectCoinMultiplier, EffectDiamondMultiplier, EffectCriticalChance, EffectCriticalPower,
		EffectLuckyChance, EffectLuckyPower:
		return true
	}
	return false
}

type AchievementKind string

const (
	KindClicks         AchievementKind = "clicks"
	KindCoins          AchievementKind = "coins"
	KindCoinsEarned    AchievementKind = "coins_earned"
	KindLevel          AchievementKind = "level"
	KindBosses         AchievementKind = "bosses"
	KindPrestiges      AchievementKind = "prestiges"
	KindUpgrades       AchievementKind = "upgrades"
	KindUpgradeMaxed   AchievementKind = "upgrade_maxed"
	KindCriticalHits   AchievementKind = "critical_hits"
	KindLuckyClicks    AchievementKind = "lucky_clicks"
	KindSkins          AchievementKind = "skins"
	KindCombo          AchievementKind = "combo"
	KindCriticalStreak AchievementKind = "critical_streak"
	KindLuckyStreak    AchievementKind = "lucky_streak"
)

func (k AchievementKind) valid() bool {
	switch k {
	case KindClicks, KindCoins, KindCoinsEarned, KindLevel, KindBosses, KindPrestiges,
		KindUpgrades, KindUpgradeMaxed, KindCriticalHits, KindLuckyClicks, KindSkins,
		KindCombo, KindCriticalStreak, KindLuckyStreak:
		return true
	}
	return false
}

type Rules struct {
	CriticalChance     float64       `yaml:"critical_chance" json:"critical_chance"`
	CriticalMultiplier float64       `yaml:"critical_multiplier" json:"critical_multiplier"`
	CriticalChanceCap  float64       `yaml:"critical_chance_cap" json:"critical_chance_cap"`
	LuckyChance        float64       `yaml:"lucky_chance" json:"lucky_chance"`
	LuckyMultiplier    float64       `yaml:"lucky_multiplier" json:"lucky_multiplier"`
	LuckyChanceCap     float64       `yaml:"lucky_chance_cap" json:"lucky_chance_cap"`
	DiamondDropChance  float64       `yaml:"diamond_drop_chance" json:"diamond_drop_chance"`
	XPPerClick         int64         `yaml:"xp_per_click" json:"xp_per_click"`
	StartingXPToNext   int64         `yaml:"starting_xp_to_next" json:"starting_xp_to_next"`
	XPGrowth           float64       `yaml:"xp_growth" json:"xp_growth"`
	LevelCoinReward    float64       `yaml:"level_coin_reward" json:"level_coin_reward"`
	LevelDiamondEvery  int           `yaml:"level_diamond_every" json:"level_diamond_every"`
	CostGrowth         float64       `yaml:"cost_growth" json:"cost_growth"`
	PrestigeThreshold  float64       `yaml:"prestige_threshold" json:"prestige_threshold"`
	PrestigeBonusStep  float64       `yaml:"prestige_bonus_step" json:"prestige_bonus_step"`
	AutoClickFactor    float64       `yaml:"auto_click_factor" json:"auto_click_factor"`
	BossAttackEvery    time.Duration `yaml:"boss_attack_every" json:"boss_attack_every"`
	EnragedAttackEvery time.Duration `yaml:"enraged_attack_every" json:"enraged_attack_every"`
	BerserkAttackEvery time.Duration `yaml:"berserk_attack_every" json:"berserk_attack_every"`
	EnragedAt          float64       `yaml:"enraged_at" json:"enraged_at"`
	BerserkAt          float64       `yaml:"berserk_at" json:"berserk_at"`
	EnragedDamage      float64       `yaml:"enraged_damage" json:"enraged_damage"`
	BerserkDamage      float64       `yaml:"berserk_damage" json:"berserk_damage"`
	StartingSkin       string        `yaml:"starting_skin" json:"starting_skin"`

	// Clicks closer together than ComboWindow extend the combo; each combo
	// step past the first adds ComboStep to the damage multiplier.
	ComboWindow time.Duration `yaml:"combo_window" json:"combo_window"`
	ComboStep   float64       `yaml:"combo_step" json:"combo_step"`
	ComboCap    int           `yaml:"combo_cap" json:"combo_cap"`
}

func (r *Rules) ApplyDefaults() {
	if r.CriticalChance == 0 {
		r.CriticalChance = 0.10
	}
	if r.CriticalMultiplier == 0 {
		r.CriticalMultiplier = 2
	}
	if r.CriticalChanceCap == 0 {
		r.CriticalChanceCap = 0.95
	}
	if r.LuckyChance == 0 {
		r.LuckyChance = 0.01
	}
	if r.LuckyMultiplier == 0 {
		r.LuckyMultiplier = 10
	}
	if r.LuckyChanceCap == 0 {
		r.LuckyChanceCap = 0.5
	}
	if r.DiamondDropChance == 0 {
		r.DiamondDropChance = 0.001
	}
	if r.XPPerClick == 0 {
		r.XPPerClick = 1
	}
	if r.StartingXPToNext == 0 {
		r.StartingXPToNext = 100
	}
	if r.XPGrowth == 0 {
		r.XPGrowth = 1.2
	}
	if r.LevelCoinReward == 0 {
		r.LevelCoinReward = 10
	}
	if r.LevelDiamondEvery == 0 {
		r.LevelDiamondEvery = 10
	}
	if r.CostGrowth == 0 {
		r.CostGrowth = 1.15
	}
	if r.PrestigeThreshold == 0 {
		r.PrestigeThreshold = 1_000_000
	}
	if r.PrestigeBonusStep == 0 {
		r.PrestigeBonusStep = 0.1
	}
	if r.AutoClickFactor == 0 {
		r.AutoClickFactor = 0.5
	}
	if r.BossAttackEvery == 0 {
		r.BossAttackEvery = 5 * time.Second
	}
	if r.EnragedAttackEvery == 0 {
		r.EnragedAttackEvery = 3 * time.Second
	}
	if r.BerserkAttackEvery == 0 {
		r.BerserkAttackEvery = 2 * time.Second
	}
	if r.EnragedAt == 0 {
		r.EnragedAt = 0.5
	}
	if r.BerserkAt == 0 {
		r.BerserkAt = 0.25
	}
	if r.EnragedDamage == 0 {
		r.EnragedDamage = 1.5
	}
	if r.BerserkDamage == 0 {
		r.BerserkDamage = 2.5
	}
	if r.StartingSkin == "" {
		r.StartingSkin = "dragon_basic"
	}
	if r.ComboWindow == 0 {
		r.ComboWindow = 500 * time.Millisecond
	}
	if r.ComboStep == 0 {
		r.ComboStep = 0.1
	}
	if r.ComboCap == 0 {
		r.ComboCap = 25
	}
}

type Upgrade struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	BaseCost    float64    `yaml:"base_cost" json:"base_cost"`
	CostGrowth  float64    `yaml:"cost_growth" json:"cost_growth"`
	Effect      EffectType `yaml:"effect" json:"effect"`
	Magnitude   float64    `yaml:"magnitude" json:"magnitude"`
	MaxLevel    int        `yaml:"max_level" json:"max_level"`
	Requires    string     `yaml:"requires" json:"requires,omitempty"`
}

type Boss struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Health         float64 `yaml:"health" json:"health"`
	RewardCoins    float64 `yaml:"reward_coins" json:"reward_coins"`
	RewardXP       int64   `yaml:"reward_xp" json:"reward_xp"`
	RewardDiamonds float64 `yaml:"reward_diamonds" json:"reward_diamonds"`
	UnlockLevel    int     `yaml:"unlock_level" json:"unlock_level"`
	AttackDamage   float64 `yaml:"attack_damage" json:"attack_damage"`
}

type Skin struct {
	ID     string  `yaml:"id" json:"id"`
	Name   string  `yaml:"name" json:"name"`
	Emoji  string  `yaml:"emoji" json:"emoji"`
	Rarity string  `yaml:"rarity" json:"rarity"`
	Cost   float64 `yaml:"cost" json:"cost"`
}

type Achievement struct {
	ID             string          `yaml:"id" json:"id"`
	Name           string          `yaml:"name" json:"name"`
	Description    string          `yaml:"description" json:"description"`
	Kind           AchievementKind `yaml:"kind" json:"kind"`
	Threshold      float64         `yaml:"threshold" json:"threshold"`
	RewardCoins    float64         `yaml:"reward_coins" json:"reward_coins"`
	RewardDiamonds float64         `yaml:"reward_diamonds" json:"reward_diamonds"`
}

type DailyReward struct {
	Day      int     `yaml:"day" json:"day"`
	Coins    float64 `yaml:"coins" json:"coins"`
	XP       int64   `yaml:"xp" json:"xp"`
	Diamonds float64 `yaml:"diamonds" json:"diamonds"`
}

// Catalog is read-only after Parse; accessors hand out copies.
type Catalog struct {
	rules        Rules
	upgrades     []Upgrade
	bosses       []Boss
	skins        []Skin
	achievements []Achievement
	daily        []DailyReward

	upgradeIndex map[string]int
	bossIndex    map[string]int
	skinIndex    map[string]int
}

func (c *Catalog) Rules() Rules {
	return c.rules
}

func (c *Catalog) Upgrade(id string) (Upgrade, bool) {
	i, ok := c.upgradeIndex[id]
	if !ok {
		return Upgrade{}, false
	}
	return c.upgrades[i], true
}

func (c *Catalog) Upgrades() []Upgrade {
	return append([]Upgrade(nil), c.upgrades...)
}

func (c *Catalog) Boss(id string) (Boss, bool) {
	i, ok := c.bossIndex[id]
	if !ok {
		return Boss{}, false
	}
	return c.bosses[i], true
}

func (c *Catalog) Bosses() []Boss {
	return append([]Boss(nil), c.bosses...)
}

func (c *Catalog) Skin(id string) (Skin, bool) {
	i, ok := c.skinIndex[id]
	if !ok {
		return Skin{}, false
	}
	return c.skins[i], true
}

func (c *Catalog) Skins() []Skin {
	return append([]Skin(nil), c.skins...)
}

func (c *Catalog) Achievements() []Achievement {
	return append([]Achievement(nil), c.achievements...)
}

func (c *Catalog) DailyRewards() []DailyReward {
	return append([]DailyReward(nil), c.daily...)
}

// DailyReward returns the reward for a streak, capping at the last table entry.
func (c *Catalog) DailyReward(streak int) DailyReward {
	if len(c.daily) == 0 {
		return DailyReward{}
	}
	if streak < 1 {
		streak = 1
	}
	if streak > len(c.daily) {
		streak = len(c.daily)
	}
	return c.daily[streak-1]
}
