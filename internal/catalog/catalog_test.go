package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()
	if len(c.Upgrades()) == 0 || len(c.Bosses()) == 0 || len(c.Skins()) == 0 {
		t.Fatalf("default catalog is missing sections")
	}
	r := c.Rules()
	if r.PrestigeThreshold != 1_000_000 {
		t.Fatalf("prestige threshold=%v", r.PrestigeThreshold)
	}
	if r.BossAttackEvery != 5*time.Second || r.BerserkAttackEvery != 2*time.Second {
		t.Fatalf("boss timers not decoded: %v %v", r.BossAttackEvery, r.BerserkAttackEvery)
	}
	u, ok := c.Upgrade("dragon_fury")
	if !ok || u.Requires != "sharp_claws" {
		t.Fatalf("dragon_fury lookup failed: %+v ok=%v", u, ok)
	}
	if u.CostGrowth != 1.15 {
		t.Fatalf("cost growth default not applied: %v", u.CostGrowth)
	}
	if got := c.DailyReward(12).Day; got != 7 {
		t.Fatalf("daily reward should cap at day 7, got %d", got)
	}
	if got := c.DailyReward(0).Day; got != 1 {
		t.Fatalf("daily reward floor should be day 1, got %d", got)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := Default()
	ups := c.Upgrades()
	ups[0].BaseCost = -1
	if c.Upgrades()[0].BaseCost == -1 {
		t.Fatalf("catalog mutated through accessor")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"duplicate upgrade", `
skins: [{id: dragon_basic}]
upgrades:
  - {id: a, base_cost: 1, effect: click_power, magnitude: 1, max_level: 1}
  - {id: a, base_cost: 1, effect: click_power, magnitude: 1, max_level: 1}`},
		{"unknown effect", `
skins: [{id: dragon_basic}]
upgrades: [{id: a, base_cost: 1, effect: teleport, magnitude: 1, max_level: 1}]`},
		{"zero max level", `
skins: [{id: dragon_basic}]
upgrades: [{id: a, base_cost: 1, effect: click_power, magnitude: 1, max_level: 0}]`},
		{"multiplier not above one", `
skins: [{id: dragon_basic}]
upgrades: [{id: a, base_cost: 1, effect: coin_multiplier, magnitude: 1, max_level: 1}]`},
		{"missing prerequisite", `
skins: [{id: dragon_basic}]
upgrades: [{id: a, base_cost: 1, effect: click_power, magnitude: 1, max_level: 1, requires: b}]`},
		{"boss without health", `
skins: [{id: dragon_basic}]
bosses: [{id: x, health: 0}]`},
		{"missing starting skin", `
skins: [{id: other}]`},
		{"daily gap", `
skins: [{id: dragon_basic}]
daily_rewards: [{day: 1}, {day: 3}]`},
		{"unknown achievement kind", `
skins: [{id: dragon_basic}]
achievements: [{id: a, kind: vibes, threshold: 1}]`},
		{"negative prestige step", `
rules: {prestige_bonus_step: -0.1}
skins: [{id: dragon_basic}]`},
		{"negative prestige threshold", `
rules: {prestige_threshold: -5}
skins: [{id: dragon_basic}]`},
		{"negative combo cap", `
rules: {combo_cap: -1}
skins: [{id: dragon_basic}]`},
		{"not yaml", `upgrades: [{id: a`},
	}
	for _, tc := range tests {
		_, err := Parse([]byte(tc.yaml))
		if !errors.Is(err, ErrInvalidCatalog) {
			t.Fatalf("%s: expected ErrInvalidCatalog, got %v", tc.name, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `
rules:
  critical_chance: 0.2
skins: [{id: dragon_basic, name: Basic}]
upgrades: [{id: a, base_cost: 10, effect: click_power, magnitude: 1, max_level: 3}]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Rules().CriticalChance != 0.2 {
		t.Fatalf("critical chance=%v", c.Rules().CriticalChance)
	}
	if c.Rules().LuckyMultiplier != 10 {
		t.Fatalf("defaults not applied: %v", c.Rules().LuckyMultiplier)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
