package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Rules        Rules         `yaml:"rules"`
	Upgrades     []Upgrade     `yaml:"upgrades"`
	Bosses       []Boss        `yaml:"bosses"`
	Skins        []Skin        `yaml:"skins"`
	Achievements []Achievement `yaml:"achievements"`
	DailyRewards []DailyReward `yaml:"daily_rewards"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultYAML)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	f.Rules.ApplyDefaults()
	for i := range f.Upgrades {
		if f.Upgrades[i].CostGrowth == 0 {
			f.Upgrades[i].CostGrowth = f.Rules.CostGrowth
		}
	}
	sort.SliceStable(f.DailyRewards, func(i, j int) bool {
		return f.DailyRewards[i].Day < f.DailyRewards[j].Day
	})

	c := &Catalog{
		rules:        f.Rules,
		upgrades:     f.Upgrades,
		bosses:       f.Bosses,
		skins:        f.Skins,
		achievements: f.Achievements,
		daily:        f.DailyRewards,
		upgradeIndex: make(map[string]int, len(f.Upgrades)),
		bossIndex:    make(map[string]int, len(f.Bosses)),
		skinIndex:    make(map[string]int, len(f.Skins)),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) index() error {
	for i, u := range c.upgrades {
		if _, dup := c.upgradeIndex[u.ID]; dup {
			return fmt.Errorf("%w: duplicate upgrade %q", ErrInvalidCatalog, u.ID)
		}
		c.upgradeIndex[u.ID] = i
	}
	for i, b := range c.bosses {
		if _, dup := c.bossIndex[b.ID]; dup {
			return fmt.Errorf("%w: duplicate boss %q", ErrInvalidCatalog, b.ID)
		}
		c.bossIndex[b.ID] = i
	}
	for i, s := range c.skins {
		if _, dup := c.skinIndex[s.ID]; dup {
			return fmt.Errorf("%w: duplicate skin %q", ErrInvalidCatalog, s.ID)
		}
		c.skinIndex[s.ID] = i
	}
	return nil
}

func (c *Catalog) validate() error {
	for _, u := range c.upgrades {
		switch {
		case strings.TrimSpace(u.ID) == "":
			return fmt.Errorf("%w: upgrade without id", ErrInvalidCatalog)
		case u.BaseCost <= 0:
			return fmt.Errorf("%w: upgrade %q base_cost must be > 0", ErrInvalidCatalog, u.ID)
		case u.CostGrowth < 1:
			return fmt.Errorf("%w: upgrade %q cost_growth must be >= 1", ErrInvalidCatalog, u.ID)
		case u.MaxLevel < 1:
			return fmt.Errorf("%w: upgrade %q max_level must be >= 1", ErrInvalidCatalog, u.ID)
		case !u.Effect.valid():
			return fmt.Errorf("%w: upgrade %q has unknown effect %q", ErrInvalidCatalog, u.ID, u.Effect)
		case u.Magnitude <= 0:
			return fmt.Errorf("%w: upgrade %q magnitude must be > 0", ErrInvalidCatalog, u.ID)
		case u.Effect.Multiplicative() && u.Magnitude <= 1:
			return fmt.Errorf("%w: upgrade %q multiplier must be > 1", ErrInvalidCatalog, u.ID)
		}
		if u.Requires != "" {
			if _, ok := c.upgradeIndex[u.Requires]; !ok || u.Requires == u.ID {
				return fmt.Errorf("%w: upgrade %q requires unknown upgrade %q", ErrInvalidCatalog, u.ID, u.Requires)
			}
		}
	}
	for _, b := range c.bosses {
		switch {
		case strings.TrimSpace(b.ID) == "":
			return fmt.Errorf("%w: boss without id", ErrInvalidCatalog)
		case b.Health <= 0:
			return fmt.Errorf("%w: boss %q health must be > 0", ErrInvalidCatalog, b.ID)
		case b.RewardCoins < 0 || b.RewardDiamonds < 0 || b.RewardXP < 0 || b.AttackDamage < 0:
			return fmt.Errorf("%w: boss %q has negative rewards", ErrInvalidCatalog, b.ID)
		}
	}
	for _, s := range c.skins {
		if strings.TrimSpace(s.ID) == "" || s.Cost < 0 {
			return fmt.Errorf("%w: skin %q is malformed", ErrInvalidCatalog, s.ID)
		}
	}
	if _, ok := c.skinIndex[c.rules.StartingSkin]; !ok {
		return fmt.Errorf("%w: starting skin %q not in catalog", ErrInvalidCatalog, c.rules.StartingSkin)
	}
	seen := map[string]struct{}{}
	for _, a := range c.achievements {
		if _, dup := seen[a.ID]; dup || strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("%w: duplicate or empty achievement %q", ErrInvalidCatalog, a.ID)
		}
		seen[a.ID] = struct{}{}
		if !a.Kind.valid() {
			return fmt.Errorf("%w: achievement %q has unknown kind %q", ErrInvalidCatalog, a.ID, a.Kind)
		}
		if a.Threshold <= 0 {
			return fmt.Errorf("%w: achievement %q threshold must be > 0", ErrInvalidCatalog, a.ID)
		}
	}
	for i, d := range c.daily {
		if d.Day != i+1 {
			return fmt.Errorf("%w: daily rewards must cover days 1..%d without gaps", ErrInvalidCatalog, len(c.daily))
		}
	}
	r := c.rules
	if r.CriticalChance > r.CriticalChanceCap || r.LuckyChance > r.LuckyChanceCap || r.CriticalChanceCap > 1 || r.LuckyChanceCap > 1 {
		return fmt.Errorf("%w: chances must not exceed their caps", ErrInvalidCatalog)
	}
	if r.XPGrowth < 1 || r.CostGrowth < 1 {
		return fmt.Errorf("%w: growth factors must be >= 1", ErrInvalidCatalog)
	}
	if r.BerserkAt > r.EnragedAt {
		return fmt.Errorf("%w: berserk_at must be <= enraged_at", ErrInvalidCatalog)
	}
	if r.PrestigeThreshold <= 0 || r.PrestigeBonusStep <= 0 {
		return fmt.Errorf("%w: prestige_threshold and prestige_bonus_step must be > 0", ErrInvalidCatalog)
	}
	if r.ComboWindow < 0 || r.ComboStep < 0 || r.ComboCap < 1 {
		return fmt.Errorf("%w: combo_window and combo_step must be >= 0, combo_cap >= 1", ErrInvalidCatalog)
	}
	return nil
}
