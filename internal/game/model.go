package game

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StartingClickPower = 1.0

	MaxClicksPerRequest = 500
	maxReplayActions    = 1000
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrMaxLevelReached      = errors.New("upgrade already at max level")
	ErrUnknownUpgrade       = errors.New("unknown upgrade")
	ErrUpgradeLocked        = errors.New("upgrade locked: prerequisite not owned")
	ErrBelowThreshold       = errors.New("score below prestige threshold")
	ErrCorruptSave          = errors.New("corrupt save")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrUnknownBoss          = errors.New("unknown boss")
	ErrBossLocked           = errors.New("boss locked: level too low")
	ErrBossActive           = errors.New("a boss fight is already in progress")
	ErrBossDefeated         = errors.New("boss already defeated")
	ErrNoActiveBoss         = errors.New("no active boss")
	ErrUnknownSkin          = errors.New("unknown skin")
	ErrSkinOwned            = errors.New("skin already owned")
	ErrSkinNotOwned         = errors.New("skin not owned")
	ErrDailyClaimed         = errors.New("daily reward already claimed today")
	ErrInvalidPlayerID      = errors.New("player id must be a uuid")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrUnknownAction        = errors.New("unknown action")
	ErrTooManyActions       = errors.New("too many actions in one replay")
)

func ValidatePlayerID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlayerID, id)
	}
	return parsed.String(), nil
}

var numberSuffixes = []string{"", "K", "M", "B", "T", "Qa", "Qi"}

// FormatNumber renders a counter the way the game displays it: floored, then
// shortened with a suffix and one decimal once it reaches a thousand.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	d := decimal.NewFromFloat(math.Floor(v))
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	thousand := decimal.NewFromInt(1000)
	i := 0
	for d.GreaterThanOrEqual(thousand) && i < len(numberSuffixes)-1 {
		d = d.Div(thousand)
		i++
	}
	if i == 0 {
		return sign + d.String()
	}
	return sign + d.StringFixed(1) + numberSuffixes[i]
}

// addPrestigeBonus keeps the multiplier on exact tenths across many prestiges.
func addPrestigeBonus(current float64, bonus int64, step float64) float64 {
	sum := decimal.NewFromFloat(current).Add(decimal.NewFromInt(bonus).Mul(decimal.NewFromFloat(step)))
	return sum.Round(6).InexactFloat64()
}

func floorNonNeg(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Floor(v)
}

func addUnique(list []string, id string) ([]string, bool) {
	if slices.Contains(list, id) {
		return list, false
	}
	return append(list, id), true
}
