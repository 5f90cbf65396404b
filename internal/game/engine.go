package game

import (
	"math"
	mathrand "math/rand"
	"sync"
	"time"

	"tycoon/internal/catalog"
)

// Roller is the engine's source of randomness. *math/rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Engine applies the economy rules to a PlayerState passed in by the caller.
// It holds no player data; callers serialize access to each state.
type Engine struct {
	cat   *catalog.Catalog
	rules catalog.Rules

	mu   sync.Mutex
	rand Roller
}

func NewEngine(cat *catalog.Catalog, roll Roller) *Engine {
	if cat == nil {
		cat = catalog.Default()
	}
	if roll == nil {
		roll = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cat: cat, rules: cat.Rules(), rand: roll}
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

func (e *Engine) NewPlayerState() *PlayerState {
	return NewPlayerState(e.rules)
}

func (e *Engine) nextFloat() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rand.Float64()
}

func (e *Engine) BaseDamage(s *PlayerState) float64 {
	return s.ClickPower * s.Multipliers.Click * s.Multipliers.Global * s.PrestigeMultiplier
}

func (e *Engine) CriticalChance(s *PlayerState) float64 {
	return math.Min(e.rules.CriticalChance+s.Bonuses.CriticalChance, e.rules.CriticalChanceCap)
}

func (e *Engine) CriticalMultiplier(s *PlayerState) float64 {
	return e.rules.CriticalMultiplier + s.Bonuses.CriticalPower
}

func (e *Engine) LuckyChance(s *PlayerState) float64 {
	return math.Min(e.rules.LuckyChance+s.Bonuses.LuckyChance, e.rules.LuckyChanceCap)
}

func (e *Engine) LuckyMultiplier(s *PlayerState) float64 {
	return e.rules.LuckyMultiplier + s.Bonuses.LuckyPower
}

func earnCoins(s *PlayerState, amount float64) {
	if amount <= 0 {
		return
	}
	s.Coins += amount
	s.Stats.TotalCoinsEarned += amount
}

func earnDiamonds(s *PlayerState, amount float64) {
	if amount <= 0 {
		return
	}
	s.Diamonds += amount
	s.Stats.TotalDiamondsEarned += amount
}
