package save

import (
	"fmt"

	"tycoon/internal/game"
)

const legacyVersion = "1.0.0"

// Versions from 3.0.0 on always carry a checksum.
var checksummed = map[string]bool{"3.0.0": true, CurrentVersion: true}

type defaults struct {
	startingSkin     string
	startingXPToNext int64
}

type migration struct {
	from  string
	to    string
	apply func(d defaults, tree map[string]any)
}

// Steps run in order from a save's version up to CurrentVersion. Each one only
// fills fields that are absent; nothing already in the save is removed.
var migrations = []migration{
	{from: "1.0.0", to: "2.0.0", apply: func(_ defaults, tree map[string]any) {
		if count, ok := tree["prestigeCount"]; ok {
			setDefault(tree, "prestigeLevel", count)
		}
		setDefault(tree, "prestigeLevel", 0)
		setDefault(tree, "prestigeMultiplier", 1)
		setDefault(tree, "dailyStreak", 0)
		setDefault(tree, "lastDailyClaim", nil)
	}},
	{from: "2.0.0", to: "2.1.0", apply: func(_ defaults, tree map[string]any) {
		setDefault(tree, "stats", map[string]any{})
		stats := childMap(tree, "stats")
		for _, k := range []string{"totalCoinsEarned", "totalDiamondsEarned", "totalDamageDealt", "totalBossesDefeated", "totalPrestiges", "criticalHits", "luckyClicks", "playTime"} {
			setDefault(stats, k, 0)
		}
	}},
	{from: "2.1.0", to: "3.0.0", apply: func(d defaults, tree map[string]any) {
		setDefault(tree, "multipliers", map[string]any{})
		mult := childMap(tree, "multipliers")
		for _, k := range []string{"click", "global", "coin", "diamond"} {
			setDefault(mult, k, 1)
		}
		setDefault(tree, "bonuses", map[string]any{})
		setDefault(tree, "clicksPerSecond", 0)
		setDefault(tree, "defeatedBosses", []any{})
		setDefault(tree, "achievements", []any{})
		setDefault(tree, "ownedSkins", []any{d.startingSkin})
		setDefault(tree, "equippedSkin", d.startingSkin)
		setDefault(tree, "currentBoss", nil)
		upgradeBoss(tree)
	}},
	{from: "3.0.0", to: "3.1.0", apply: func(_ defaults, tree map[string]any) {
		setDefault(tree, "combo", 0)
		setDefault(tree, "lastClickAt", nil)
		setDefault(tree, "criticalStreak", 0)
		setDefault(tree, "luckyStreak", 0)
		stats := childMap(tree, "stats")
		for _, k := range []string{"bestCombo", "bestCriticalStreak", "bestLuckyStreak"} {
			setDefault(stats, k, 0)
		}
	}},
}

// baseline fills the fields every release has carried. Older clients left
// zero values out of their saves entirely.
func (d defaults) baseline(tree map[string]any) {
	setDefault(tree, "coins", 0)
	setDefault(tree, "diamonds", 0)
	setDefault(tree, "score", 0)
	setDefault(tree, "clickPower", game.StartingClickPower)
	setDefault(tree, "totalClicks", 0)
	setDefault(tree, "level", 1)
	setDefault(tree, "experience", 0)
	setDefault(tree, "experienceToNext", d.startingXPToNext)
	setDefault(tree, "upgrades", map[string]any{})
}

func (d defaults) migrate(tree map[string]any, version string) error {
	if _, ok := findMigration(version); !ok {
		return fmt.Errorf("%w: unsupported save version %q", game.ErrCorruptSave, version)
	}
	d.baseline(tree)
	for version != CurrentVersion {
		step, ok := findMigration(version)
		if !ok {
			return fmt.Errorf("%w: unsupported save version %q", game.ErrCorruptSave, version)
		}
		step.apply(d, tree)
		version = step.to
	}
	return nil
}

func findMigration(from string) (migration, bool) {
	for _, m := range migrations {
		if m.from == from {
			return m, true
		}
	}
	return migration{}, false
}

func setDefault(tree map[string]any, key string, value any) {
	if _, ok := tree[key]; !ok {
		tree[key] = value
	}
}

func childMap(tree map[string]any, key string) map[string]any {
	m, ok := tree[key].(map[string]any)
	if !ok {
		m = map[string]any{}
		tree[key] = m
	}
	return m
}

// upgradeBoss rewrites a boss stored in the old {id, health, maxHealth, reward}
// shape into the current encounter layout.
func upgradeBoss(tree map[string]any) {
	boss, ok := tree["currentBoss"].(map[string]any)
	if !ok {
		return
	}
	if _, current := boss["bossId"]; current {
		return
	}
	if id, ok := boss["id"]; ok {
		setDefault(boss, "bossId", id)
	}
	if hp, ok := boss["health"]; ok {
		setDefault(boss, "currentHealth", hp)
	}
	if reward, ok := boss["reward"]; ok {
		setDefault(boss, "rewardCoins", reward)
	}
	setDefault(boss, "phase", string(game.PhaseNormal))
	setDefault(boss, "sinceAttackMs", 0)
}
