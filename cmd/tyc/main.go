package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tycoon/internal/cli"
	"tycoon/internal/config"
	"tycoon/internal/game"
	"tycoon/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "tyc",
		Short:        "Tycoon terminal client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newNewCmd(&apiBase),
		newForgetCmd(),
		newDashCmd(&apiBase),
		newClickCmd(&apiBase),
		newSyncCmd(&apiBase),
		newShopCmd(&apiBase),
		newBuyCmd(&apiBase),
		newBossesCmd(&apiBase),
		newFightCmd(&apiBase),
		newFleeCmd(&apiBase),
		newPrestigeCmd(&apiBase),
		newSkinsCmd(&apiBase),
		newDailyCmd(&apiBase),
		newAchievementsCmd(&apiBase),
		newSaveCmd(&apiBase),
		newPlayCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cli.Client {
	return cli.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadPlayer() (cli.Session, error) {
	sess, err := cli.LoadSession()
	if err != nil {
		return cli.Session{}, fmt.Errorf("no player yet, run `tyc new`: %w", err)
	}
	return sess, nil
}

func newNewCmd(apiBase *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sess, err := cli.LoadSession(); err == nil && !force {
				printWarn(fmt.Sprintf("Already playing as %s. Use --force to start over.", sess.PlayerID))
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.CreatePlayer(ctx)
			if err != nil {
				return err
			}
			d, err := decodeInto[game.Dashboard](out)
			if err != nil {
				return err
			}
			if err := cli.SaveSession(cli.Session{
				PlayerID:   d.PlayerID,
				APIBaseURL: client.BaseURL,
				CreatedAt:  time.Now().UTC(),
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("New game started. Player %s saved locally.", d.PlayerID))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace the local player")
	return cmd
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Forget the local player (the server save is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.ClearSession(); err != nil {
				return err
			}
			printSuccess("Local player forgotten.")
			return nil
		},
	}
}

func newDashCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Show your dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Dashboard(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderDashboard(out)
		},
	}
}

func newClickCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "click [count]",
		Short: "Click the dragon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			count := 1
			if len(args) > 0 {
				count, err = strconv.Atoi(strings.TrimSpace(args[0]))
				if err != nil || count < 1 || count > game.MaxClicksPerRequest {
					return fmt.Errorf("count must be between 1 and %d", game.MaxClicksPerRequest)
				}
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Click(ctx, sess.PlayerID, count, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionClick,
					Count:          count,
					IdempotencyKey: idem,
				})
			}
			return renderClick(out)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay actions queued while the server was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			mine, rest := syncq.Split(queue, sess.PlayerID)
			if len(mine) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SyncReplay(ctx, sess.PlayerID, syncq.Actions(mine))
			if err != nil {
				return fmt.Errorf("sync failed, %d actions kept: %w", len(mine), err)
			}
			payload, err := decodeInto[replayPayload](out)
			if err != nil {
				return err
			}
			counts := map[string]int{}
			for _, r := range payload.Results {
				counts[r.Status]++
				if r.Status == game.ReplayRejected {
					printError(fmt.Sprintf("Rejected %s: %s", r.Action, r.Error))
				}
			}
			if err := syncq.Save(rest); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: applied=%d duplicate=%d rejected=%d",
				counts[game.ReplayApplied], counts[game.ReplayDuplicate], counts[game.ReplayRejected]))
			return nil
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "shop",
		Short:   "List upgrades and their next cost",
		Aliases: []string{"upgrades"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Upgrades(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderShop(out)
		},
	}
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy [upgrade_id]",
		Short: "Buy one level of an upgrade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			id, err := idFromArgsOrPrompt(args, "Upgrade ID")
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).BuyUpgrade(ctx, sess.PlayerID, id, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionBuyUpgrade,
					Ref:            id,
					IdempotencyKey: idem,
				})
			}
			return renderPurchase(out)
		},
	}
}

func newBossesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bosses",
		Short: "List bosses",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Bosses(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderBosses(out)
		},
	}
}

func newFightCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fight [boss_id]",
		Short: "Engage a boss",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			id, err := idFromArgsOrPrompt(args, "Boss ID")
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).EngageBoss(ctx, sess.PlayerID, id, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionEngageBoss,
					Ref:            id,
					IdempotencyKey: idem,
				})
			}
			enc, err := decodeInto[game.BossEncounter](out)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Engaged %s: %s HP, reward %s coins.", enc.BossID, game.FormatNumber(enc.CurrentHealth), game.FormatNumber(enc.RewardCoins)))
			return nil
		},
	}
}

func newFleeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flee",
		Short: "Abandon the current boss fight",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).FleeBoss(ctx, sess.PlayerID, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionFleeBoss,
					IdempotencyKey: idem,
				})
			}
			printWarn(fmt.Sprintf("Fled from %v.", out["fled"]))
			return nil
		},
	}
}

func newPrestigeCmd(apiBase *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "prestige",
		Short: "Reset progress for a permanent multiplier",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			raw, err := client.PrestigePreview(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			preview, err := decodeInto[game.PrestigePreview](raw)
			if err != nil {
				return err
			}
			renderPrestigePreview(preview)
			if !preview.Eligible {
				return nil
			}
			if !yes {
				choice, err := promptChoice("Prestige now", []string{"yes", "no"}, "no")
				if err != nil {
					return err
				}
				if choice != "yes" {
					printInfo("Prestige cancelled.")
					return nil
				}
			}
			idem := uuid.NewString()
			out, err := client.Prestige(ctx, sess.PlayerID, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionPrestige,
					IdempotencyKey: idem,
				})
			}
			res, err := decodeInto[game.PrestigeResult](out)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Prestige %d reached. Multiplier is now x%.2f.", res.PrestigeLevel, res.Multiplier))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newSkinsCmd(apiBase *string) *cobra.Command {
	skins := &cobra.Command{
		Use:   "skins",
		Short: "List, buy and equip dragon skins",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Skins(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderSkins(out)
		},
	}
	skins.AddCommand(newSkinActionCmd(apiBase, "buy", "Buy a skin with diamonds", game.ActionBuySkin))
	skins.AddCommand(newSkinActionCmd(apiBase, "equip", "Equip an owned skin", game.ActionEquipSkin))
	return skins
}

func newSkinActionCmd(apiBase *string, use, short, kind string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [skin_id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			id, err := idFromArgsOrPrompt(args, "Skin ID")
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			if kind == game.ActionBuySkin {
				_, err = client.BuySkin(ctx, sess.PlayerID, id, idem)
			} else {
				_, err = client.EquipSkin(ctx, sess.PlayerID, id, idem)
			}
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           kind,
					Ref:            id,
					IdempotencyKey: idem,
				})
			}
			if kind == game.ActionBuySkin {
				printSuccess(fmt.Sprintf("Bought skin %s.", id))
			} else {
				printSuccess(fmt.Sprintf("Equipped skin %s.", id))
			}
			return nil
		},
	}
}

func newDailyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Claim today's reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ClaimDaily(ctx, sess.PlayerID, idem)
			if err != nil {
				return queueOnNetworkError(err, sess.PlayerID, game.Action{
					Kind:           game.ActionClaimDaily,
					IdempotencyKey: idem,
				})
			}
			claim, err := decodeInto[game.DailyClaim](out)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Day %d streak: +%s coins, +%d XP, +%s diamonds.",
				claim.Streak, game.FormatNumber(claim.Reward.Coins), claim.Reward.XP, game.FormatNumber(claim.Reward.Diamonds)))
			return nil
		},
	}
}

func newAchievementsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "achievements",
		Short:   "Show achievement progress",
		Aliases: []string{"ach"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Achievements(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderAchievements(out)
		},
	}
}

func newSaveCmd(apiBase *string) *cobra.Command {
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Write the game to storage now",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SaveNow(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			printSuccess("Game saved.")
			return renderSaveInfo(out)
		},
	}
	saveCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Inspect the stored save slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SaveInfo(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return renderSaveInfo(out)
		},
	})
	return saveCmd
}

// queueOnNetworkError keeps an action for `tyc sync` when the server could not
// be reached. Errors the API answered with are returned unchanged.
func queueOnNetworkError(err error, playerID string, action game.Action) error {
	if err == nil {
		return nil
	}
	if isAPIStructuredError(err) || errors.Is(err, context.Canceled) {
		return err
	}
	if qerr := syncq.Push(syncq.Command{PlayerID: playerID, Action: action}); qerr != nil {
		return fmt.Errorf("request failed (%v) and queueing failed: %w", err, qerr)
	}
	printWarn(fmt.Sprintf("Server unreachable, queued %s for `tyc sync`.", action.Kind))
	return nil
}

func isAPIStructuredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "api status")
}

func idFromArgsOrPrompt(args []string, label string) (string, error) {
	if len(args) > 0 {
		id := strings.ToLower(strings.TrimSpace(args[0]))
		if id == "" {
			return "", fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return id, nil
	}
	id, err := promptRequired(label)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id), nil
}
