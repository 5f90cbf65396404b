package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"tycoon/internal/game"
	"tycoon/internal/save"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	gold        = color.New(color.FgYellow)
	violet      = color.New(color.FgMagenta)
)

type upgradesPayload struct {
	Upgrades []game.UpgradeView `json:"upgrades"`
}

type bossesPayload struct {
	Bosses []game.BossView `json:"bosses"`
}

type skinsPayload struct {
	Skins []game.SkinView `json:"skins"`
}

type achievementsPayload struct {
	Achievements []game.AchievementView `json:"achievements"`
}

type replayPayload struct {
	Results []game.ReplayResult `json:"results"`
}

type savePayload struct {
	LoadedFrom *game.LoadReport `json:"loaded_from"`
	Slots      save.Info        `json:"slots"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func renderDashboard(raw map[string]any) error {
	d, err := decodeInto[game.Dashboard](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== DRAGON (Level %d, Prestige %d) ==\n", d.Level, d.PrestigeLevel)
	fmt.Printf("Coins:          %s\n", gold.Sprint(game.FormatNumber(d.Coins)))
	fmt.Printf("Diamonds:       %s\n", violet.Sprint(game.FormatNumber(d.Diamonds)))
	fmt.Printf("Score:          %s\n", game.FormatNumber(d.Score))
	fmt.Printf("XP:             %d / %d  %s\n", d.Experience, d.ExperienceToNext, bar(float64(d.Experience), float64(d.ExperienceToNext), 20))
	fmt.Printf("Damage/click:   %s (power %s)\n", game.FormatNumber(d.DamagePerClick), game.FormatNumber(d.ClickPower))
	fmt.Printf("Auto clicks/s:  %.1f\n", d.ClicksPerSecond)
	fmt.Printf("Critical:       %.1f%% x%.2f\n", d.CriticalChance*100, d.CriticalMultiplier)
	fmt.Printf("Lucky:          %.1f%%\n", d.LuckyChance*100)
	fmt.Printf("Prestige mult:  x%.2f\n", d.PrestigeMultiplier)
	fmt.Printf("Skin:           %s (%d owned)\n", d.EquippedSkin, d.OwnedSkins)
	fmt.Printf("Achievements:   %d / %d\n", d.Achievements, d.AchievementsTotal)
	daily := neutral.Sprint("claimed")
	if d.DailyAvailable {
		daily = success.Sprint("available")
	}
	fmt.Printf("Daily reward:   %s (streak %d)\n", daily, d.DailyStreak)
	if d.PrestigeReady {
		printSuccess("Prestige is ready. Run `tyc prestige`.")
	}

	if b := d.CurrentBoss; b != nil {
		fmt.Println()
		accent.Printf("Boss: %s [%s]\n", b.Name, phaseColor(b.Phase).Sprint(strings.ToUpper(string(b.Phase))))
		fmt.Printf("HP %s / %s  %s\n", game.FormatNumber(b.CurrentHealth), game.FormatNumber(b.MaxHealth), bar(b.CurrentHealth, b.MaxHealth, 20))
	}

	fmt.Println()
	accent.Println("Lifetime")
	fmt.Printf("Clicks %d, coins earned %s, damage %s, bosses %d, crits %d, lucky %d, played %s\n",
		d.TotalClicks,
		game.FormatNumber(d.Stats.TotalCoinsEarned),
		game.FormatNumber(d.Stats.TotalDamageDealt),
		d.Stats.TotalBossesDefeated,
		d.Stats.CriticalHits,
		d.Stats.LuckyClicks,
		(time.Duration(d.Stats.PlayTimeSeconds) * time.Second).String(),
	)
	fmt.Println()
	return nil
}

func renderClick(raw map[string]any) error {
	out, err := decodeInto[game.ClickSummary](raw)
	if err != nil {
		return err
	}
	fmt.Printf("%d clicks: %s damage, +%s coins, +%d XP\n", out.Clicks, game.FormatNumber(out.Damage), gold.Sprint(game.FormatNumber(out.CoinsGained)), out.XPGained)
	if out.Combo > 1 {
		accent.Printf("  %dx combo\n", out.Combo)
	}
	if out.Criticals > 0 {
		warn.Printf("  %d critical hits\n", out.Criticals)
	}
	if out.Luckies > 0 {
		success.Printf("  %d lucky clicks (+%s bonus)\n", out.Luckies, game.FormatNumber(out.LuckyBonus))
	}
	if out.Diamonds > 0 {
		violet.Printf("  +%s diamonds\n", game.FormatNumber(out.Diamonds))
	}
	if out.LevelUps > 0 {
		success.Printf("  Level up x%d\n", out.LevelUps)
	}
	if out.BossRemaining != nil {
		fmt.Printf("  Boss HP left: %s\n", game.FormatNumber(*out.BossRemaining))
	}
	for _, id := range out.BossesSlain {
		success.Printf("  Boss defeated: %s\n", id)
	}
	for _, id := range out.Achievements {
		accent.Printf("  Achievement unlocked: %s\n", id)
	}
	return nil
}

func renderShop(raw map[string]any) error {
	payload, err := decodeInto[upgradesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== UPGRADES ==")
	fmt.Printf("%-16s %-20s %7s %12s %-8s\n", "ID", "NAME", "LEVEL", "NEXT COST", "STATUS")
	for _, u := range payload.Upgrades {
		status := neutral.Sprint("-")
		switch {
		case u.Maxed:
			status = violet.Sprint("maxed")
		case u.Locked:
			status = danger.Sprint("locked")
		case u.Affordable:
			status = success.Sprint("buy")
		}
		cost := game.FormatNumber(u.NextCost)
		if u.Maxed {
			cost = "-"
		}
		fmt.Printf("%-16s %-20s %3d/%-3d %12s %-8s\n", u.ID, truncate(u.Name, 20), u.Level, u.MaxLevel, cost, status)
	}
	fmt.Println()
	return nil
}

func renderPurchase(raw map[string]any) error {
	p, err := decodeInto[game.Purchase](raw)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Bought %s level %d for %s coins.", p.UpgradeID, p.Level, game.FormatNumber(p.Cost))
	if p.Maxed {
		msg += " Max level reached."
	} else {
		msg += fmt.Sprintf(" Next level costs %s.", game.FormatNumber(p.NextCost))
	}
	printSuccess(msg)
	return nil
}

func renderBosses(raw map[string]any) error {
	payload, err := decodeInto[bossesPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== BOSSES ==")
	fmt.Printf("%-16s %-20s %10s %10s %6s %-9s\n", "ID", "NAME", "HEALTH", "REWARD", "LEVEL", "STATUS")
	for _, b := range payload.Bosses {
		status := neutral.Sprint("ready")
		switch {
		case b.Engaged:
			status = warn.Sprint("fighting")
		case !b.Unlocked:
			status = danger.Sprint("locked")
		case b.Defeated:
			status = success.Sprint("defeated")
		}
		fmt.Printf("%-16s %-20s %10s %10s %6d %-9s\n", b.ID, truncate(b.Name, 20), game.FormatNumber(b.Health), game.FormatNumber(b.RewardCoins), b.UnlockLevel, status)
	}
	fmt.Println()
	return nil
}

func renderPrestigePreview(p game.PrestigePreview) {
	accent.Println("\n== PRESTIGE ==")
	fmt.Printf("Score:       %s / %s\n", game.FormatNumber(p.Score), game.FormatNumber(p.Threshold))
	fmt.Printf("Multiplier:  x%.2f -> x%.2f\n", p.CurrentMultiplier, p.NextMultiplier)
	if !p.Eligible {
		printWarn("Not enough score to prestige yet.")
		return
	}
	fmt.Printf("Bonus:       +%d\n", p.Bonus)
	printWarn("Prestige resets coins, upgrades, level and bosses.")
}

func renderSkins(raw map[string]any) error {
	payload, err := decodeInto[skinsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== SKINS ==")
	fmt.Printf("%-3s %-18s %-20s %-10s %10s %-8s\n", "", "ID", "NAME", "RARITY", "DIAMONDS", "STATUS")
	for _, s := range payload.Skins {
		status := ""
		switch {
		case s.Equipped:
			status = success.Sprint("equipped")
		case s.Owned:
			status = neutral.Sprint("owned")
		}
		fmt.Printf("%-3s %-18s %-20s %-10s %10s %-8s\n", s.Emoji, s.ID, truncate(s.Name, 20), s.Rarity, game.FormatNumber(s.Cost), status)
	}
	fmt.Println()
	return nil
}

func renderAchievements(raw map[string]any) error {
	payload, err := decodeInto[achievementsPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== ACHIEVEMENTS ==")
	for _, a := range payload.Achievements {
		mark := neutral.Sprint("[ ]")
		if a.Unlocked {
			mark = success.Sprint("[x]")
		}
		fmt.Printf("%s %-24s %s %s/%s\n", mark, truncate(a.Name, 24), bar(a.Progress, a.Threshold, 12), game.FormatNumber(a.Progress), game.FormatNumber(a.Threshold))
	}
	fmt.Println()
	return nil
}

func renderSaveInfo(raw map[string]any) error {
	payload, err := decodeInto[savePayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== SAVE %s ==\n", payload.Slots.PlayerID)
	if r := payload.LoadedFrom; r != nil {
		fmt.Printf("Loaded from: %s", r.Source)
		if r.Migrated {
			fmt.Printf(" (migrated from %s)", r.FromVersion)
		}
		fmt.Println()
		if r.Problem != "" {
			printWarn("Problem: " + r.Problem)
		}
	}
	renderSlot("Main", payload.Slots.Main)
	renderSlot("Backup", payload.Slots.Backup)
	fmt.Println()
	return nil
}

func renderSlot(name string, s save.Slot) {
	switch {
	case !s.Exists:
		fmt.Printf("%-7s %s\n", name+":", neutral.Sprint("empty"))
	case !s.Valid:
		fmt.Printf("%-7s %s %s\n", name+":", danger.Sprint("corrupt"), s.Problem)
	default:
		fmt.Printf("%-7s %s v%s, %d bytes, saved %s, level %d, %s coins, checksum %s\n",
			name+":",
			success.Sprint("ok"),
			s.Version,
			s.Size,
			s.SavedAt.Local().Format("2006-01-02 15:04:05"),
			s.Level,
			game.FormatNumber(s.Coins),
			s.Checksum,
		)
	}
}

func phaseColor(p game.BossPhase) *color.Color {
	switch p {
	case game.PhaseBerserk:
		return danger
	case game.PhaseEnraged:
		return warn
	default:
		return neutral
	}
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func bar(v, max float64, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	filled := int(v / max * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
