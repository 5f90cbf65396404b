package game

import (
	"encoding/json"
	"time"

	"tycoon/internal/catalog"
)

type Multipliers struct {
	Click   float64 `json:"click"`
	Global  float64 `json:"global"`
	Coin    float64 `json:"coin"`
	Diamond float64 `json:"diamond"`
}

func IdentityMultipliers() Multipliers {
	return Multipliers{Click: 1, Global: 1, Coin: 1, Diamond: 1}
}

// Bonuses are additive modifiers bought through upgrades; the zero value is identity.
type Bonuses struct {
	CriticalChance float64 `json:"criticalChance"`
	CriticalPower  float64 `json:"criticalPower"`
	LuckyChance    float64 `json:"luckyChance"`
	LuckyPower     float64 `json:"luckyPower"`
}

type Stats struct {
	TotalCoinsEarned    float64 `json:"totalCoinsEarned"`
	TotalDiamondsEarned float64 `json:"totalDiamondsEarned"`
	TotalDamageDealt    float64 `json:"totalDamageDealt"`
	TotalBossesDefeated int64   `json:"totalBossesDefeated"`
	TotalPrestiges      int64   `json:"totalPrestiges"`
	CriticalHits        int64   `json:"criticalHits"`
	LuckyClicks         int64   `json:"luckyClicks"`
	PlayTime            int64   `json:"playTime"`
	BestCombo           int64   `json:"bestCombo"`
	BestCriticalStreak  int64   `json:"bestCriticalStreak"`
	BestLuckyStreak     int64   `json:"bestLuckyStreak"`

	Extra map[string]json.RawMessage `json:"-"`
}

type BossPhase string

const (
	PhaseNormal  BossPhase = "normal"
	PhaseEnraged BossPhase = "enraged"
	PhaseBerserk BossPhase = "berserk"
)

type BossEncounter struct {
	BossID        string    `json:"bossId"`
	MaxHealth     float64   `json:"maxHealth"`
	CurrentHealth float64   `json:"currentHealth"`
	RewardCoins   float64   `json:"rewardCoins"`
	Phase         BossPhase `json:"phase"`
	SinceAttackMS int64     `json:"sinceAttackMs"`
	StartedAt     time.Time `json:"startedAt"`
}

func (b *BossEncounter) HealthRatio() float64 {
	if b.MaxHealth <= 0 {
		return 0
	}
	return b.CurrentHealth / b.MaxHealth
}

// PlayerState is the whole saved game. Fields found in a save that this
// version does not know about are kept in Extra and written back unchanged.
type PlayerState struct {
	Coins              float64        `json:"coins"`
	Diamonds           float64        `json:"diamonds"`
	Score              float64        `json:"score"`
	ClickPower         float64        `json:"clickPower"`
	ClicksPerSecond    float64        `json:"clicksPerSecond"`
	TotalClicks        int64          `json:"totalClicks"`
	Level              int            `json:"level"`
	Experience         int64          `json:"experience"`
	ExperienceToNext   int64          `json:"experienceToNext"`
	Upgrades           map[string]int `json:"upgrades"`
	Multipliers        Multipliers    `json:"multipliers"`
	Bonuses            Bonuses        `json:"bonuses"`
	PrestigeLevel      int            `json:"prestigeLevel"`
	PrestigeMultiplier float64        `json:"prestigeMultiplier"`
	CurrentBoss        *BossEncounter `json:"currentBoss"`
	DefeatedBosses     []string       `json:"defeatedBosses"`
	Achievements       []string       `json:"achievements"`
	OwnedSkins         []string       `json:"ownedSkins"`
	EquippedSkin       string         `json:"equippedSkin"`
	DailyStreak        int            `json:"dailyStreak"`
	LastDailyClaim     *time.Time     `json:"lastDailyClaim"`
	Combo              int            `json:"combo"`
	LastClickAt        *time.Time     `json:"lastClickAt"`
	CriticalStreak     int            `json:"criticalStreak"`
	LuckyStreak        int            `json:"luckyStreak"`
	Stats              Stats          `json:"stats"`

	Extra map[string]json.RawMessage `json:"-"`
}

func NewPlayerState(rules catalog.Rules) *PlayerState {
	return &PlayerState{
		ClickPower:         StartingClickPower,
		Level:              1,
		ExperienceToNext:   rules.StartingXPToNext,
		Upgrades:           map[string]int{},
		Multipliers:        IdentityMultipliers(),
		PrestigeMultiplier: 1,
		DefeatedBosses:     []string{},
		Achievements:       []string{},
		OwnedSkins:         []string{rules.StartingSkin},
		EquippedSkin:       rules.StartingSkin,
	}
}

// Normalize fills zero-valued containers so engine code can write to them.
func (s *PlayerState) Normalize() {
	if s.Upgrades == nil {
		s.Upgrades = map[string]int{}
	}
	if s.DefeatedBosses == nil {
		s.DefeatedBosses = []string{}
	}
	if s.Achievements == nil {
		s.Achievements = []string{}
	}
	if s.OwnedSkins == nil {
		s.OwnedSkins = []string{}
	}
	if s.Combo < 0 {
		s.Combo = 0
	}
}

func (s *PlayerState) Clone() *PlayerState {
	raw, err := json.Marshal(s)
	if err != nil {
		cp := *s
		return &cp
	}
	var out PlayerState
	if err := json.Unmarshal(raw, &out); err != nil {
		cp := *s
		return &cp
	}
	return &out
}

func (s *PlayerState) UpgradeLevelTotal() int {
	total := 0
	for _, lvl := range s.Upgrades {
		total += lvl
	}
	return total
}

type playerStateJSON PlayerState

func (s PlayerState) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(playerStateJSON(s), s.Extra)
}

func (s *PlayerState) UnmarshalJSON(b []byte) error {
	var v playerStateJSON
	extra, err := unmarshalWithExtra(b, &v)
	if err != nil {
		return err
	}
	*s = PlayerState(v)
	s.Extra = extra
	return nil
}

type statsJSON Stats

func (s Stats) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(statsJSON(s), s.Extra)
}

func (s *Stats) UnmarshalJSON(b []byte) error {
	var v statsJSON
	extra, err := unmarshalWithExtra(b, &v)
	if err != nil {
		return err
	}
	*s = Stats(v)
	s.Extra = extra
	return nil
}

func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, known := fields[k]; !known {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}

func unmarshalWithExtra(b []byte, v any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(b, v); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	knownRaw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(knownRaw, &known); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, raw := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = map[string]json.RawMessage{}
		}
		extra[k] = raw
	}
	return extra, nil
}
