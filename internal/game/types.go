package game

import "time"

const (
	LoadedMain   = "main"
	LoadedBackup = "backup"
	LoadedFresh  = "fresh"
)

// LoadReport says where a player's state came from. Problem is set when the
// main save was unreadable and a fallback was used.
type LoadReport struct {
	Source      string `json:"source"`
	FromVersion string `json:"from_version,omitempty"`
	Migrated    bool   `json:"migrated"`
	Problem     string `json:"problem,omitempty"`
}

type BossStatus struct {
	BossID        string    `json:"boss_id"`
	Name          string    `json:"name"`
	MaxHealth     float64   `json:"max_health"`
	CurrentHealth float64   `json:"current_health"`
	HealthPct     float64   `json:"health_pct"`
	Phase         BossPhase `json:"phase"`
	RewardCoins   float64   `json:"reward_coins"`
}

type StatsView struct {
	TotalCoinsEarned    float64 `json:"total_coins_earned"`
	TotalDiamondsEarned float64 `json:"total_diamonds_earned"`
	TotalDamageDealt    float64 `json:"total_damage_dealt"`
	TotalBossesDefeated int64   `json:"total_bosses_defeated"`
	TotalPrestiges      int64   `json:"total_prestiges"`
	CriticalHits        int64   `json:"critical_hits"`
	LuckyClicks         int64   `json:"lucky_clicks"`
	PlayTimeSeconds     int64   `json:"play_time_seconds"`
	BestCombo           int64   `json:"best_combo"`
	BestCriticalStreak  int64   `json:"best_critical_streak"`
	BestLuckyStreak     int64   `json:"best_lucky_streak"`
}

type Dashboard struct {
	PlayerID           string      `json:"player_id"`
	Coins              float64     `json:"coins"`
	Diamonds           float64     `json:"diamonds"`
	Score              float64     `json:"score"`
	ClickPower         float64     `json:"click_power"`
	DamagePerClick     float64     `json:"damage_per_click"`
	ClicksPerSecond    float64     `json:"clicks_per_second"`
	TotalClicks        int64       `json:"total_clicks"`
	Level              int         `json:"level"`
	Experience         int64       `json:"experience"`
	ExperienceToNext   int64       `json:"experience_to_next"`
	Multipliers        Multipliers `json:"multipliers"`
	CriticalChance     float64     `json:"critical_chance"`
	CriticalMultiplier float64     `json:"critical_multiplier"`
	LuckyChance        float64     `json:"lucky_chance"`
	PrestigeLevel      int         `json:"prestige_level"`
	PrestigeMultiplier float64     `json:"prestige_multiplier"`
	PrestigeReady      bool        `json:"prestige_ready"`
	CurrentBoss        *BossStatus `json:"current_boss"`
	EquippedSkin       string      `json:"equipped_skin"`
	OwnedSkins         int         `json:"owned_skins"`
	Achievements       int         `json:"achievements"`
	AchievementsTotal  int         `json:"achievements_total"`
	DailyStreak        int         `json:"daily_streak"`
	DailyAvailable     bool        `json:"daily_available"`
	Combo              int         `json:"combo"`
	ComboMultiplier    float64     `json:"combo_multiplier"`
	Stats              StatsView   `json:"stats"`
}

type ClickSummary struct {
	Clicks        int      `json:"clicks"`
	Damage        float64  `json:"damage"`
	CoinsGained   float64  `json:"coins_gained"`
	LuckyBonus    float64  `json:"lucky_bonus"`
	XPGained      int64    `json:"xp_gained"`
	Diamonds      float64  `json:"diamonds_gained"`
	Criticals     int      `json:"criticals"`
	Luckies       int      `json:"luckies"`
	LevelUps      int      `json:"level_ups"`
	Combo         int      `json:"combo"`
	BossesSlain   []string `json:"bosses_slain,omitempty"`
	Achievements  []string `json:"achievements,omitempty"`
	BossRemaining *float64 `json:"boss_remaining,omitempty"`
}

func (e *Engine) Dashboard(playerID string, s *PlayerState, now time.Time) Dashboard {
	d := Dashboard{
		PlayerID:           playerID,
		Coins:              s.Coins,
		Diamonds:           s.Diamonds,
		Score:              s.Score,
		ClickPower:         s.ClickPower,
		DamagePerClick:     floorNonNeg(e.BaseDamage(s)),
		ClicksPerSecond:    s.ClicksPerSecond,
		TotalClicks:        s.TotalClicks,
		Level:              s.Level,
		Experience:         s.Experience,
		ExperienceToNext:   s.ExperienceToNext,
		Multipliers:        s.Multipliers,
		CriticalChance:     e.CriticalChance(s),
		CriticalMultiplier: e.CriticalMultiplier(s),
		LuckyChance:        e.LuckyChance(s),
		PrestigeLevel:      s.PrestigeLevel,
		PrestigeMultiplier: s.PrestigeMultiplier,
		PrestigeReady:      s.Score >= e.rules.PrestigeThreshold,
		EquippedSkin:       s.EquippedSkin,
		OwnedSkins:         len(s.OwnedSkins),
		Achievements:       len(s.Achievements),
		AchievementsTotal:  len(e.cat.Achievements()),
		DailyStreak:        s.DailyStreak,
		DailyAvailable:     s.LastDailyClaim == nil || utcDay(now).After(utcDay(*s.LastDailyClaim)),
		Combo:              e.liveCombo(s, now),
		ComboMultiplier:    e.ComboMultiplier(e.liveCombo(s, now)),
		Stats: StatsView{
			TotalCoinsEarned:    s.Stats.TotalCoinsEarned,
			TotalDiamondsEarned: s.Stats.TotalDiamondsEarned,
			TotalDamageDealt:    s.Stats.TotalDamageDealt,
			TotalBossesDefeated: s.Stats.TotalBossesDefeated,
			TotalPrestiges:      s.Stats.TotalPrestiges,
			CriticalHits:        s.Stats.CriticalHits,
			LuckyClicks:         s.Stats.LuckyClicks,
			PlayTimeSeconds:     s.Stats.PlayTime,
			BestCombo:           s.Stats.BestCombo,
			BestCriticalStreak:  s.Stats.BestCriticalStreak,
			BestLuckyStreak:     s.Stats.BestLuckyStreak,
		},
	}
	if b := s.CurrentBoss; b != nil {
		st := &BossStatus{
			BossID:        b.BossID,
			MaxHealth:     b.MaxHealth,
			CurrentHealth: b.CurrentHealth,
			HealthPct:     b.HealthRatio() * 100,
			Phase:         b.Phase,
			RewardCoins:   b.RewardCoins,
		}
		if def, ok := e.cat.Boss(b.BossID); ok {
			st.Name = def.Name
		}
		d.CurrentBoss = st
	}
	return d
}
