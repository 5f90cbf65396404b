package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tycoon/internal/cli"
	"tycoon/internal/events"
	"tycoon/internal/game"
	"tycoon/internal/syncq"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const (
	flushEvery = 400 * time.Millisecond
	logLines   = 8
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	coinStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	gemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	bossStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("160")).Padding(0, 1)
	phaseStyles = map[game.BossPhase]lipgloss.Style{
		game.PhaseNormal:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		game.PhaseEnraged: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		game.PhaseBerserk: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func newPlayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Interactive mode: tap space to click",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadPlayer()
			if err != nil {
				return err
			}
			client := newClient(apiBase)

			dialCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, client.EventsURL(sess.PlayerID), nil)
			cancel()
			if err != nil {
				conn = nil
			}
			if conn != nil {
				defer conn.Close()
			}

			m := newPlayModel(cmd.Context(), client, sess.PlayerID, conn)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

type dashMsg game.Dashboard
type shopMsg []game.UpgradeView
type clickMsg game.ClickSummary
type eventMsg events.Message
type noticeMsg string
type errMsg struct{ err error }
type flushMsg struct{}
type streamClosedMsg struct{}

type playModel struct {
	ctx      context.Context
	client   *cli.Client
	playerID string
	conn     *websocket.Conn

	dash    *game.Dashboard
	shop    []game.UpgradeView
	pending int
	inTap   bool
	log     []string
	lastErr string
	width   int

	xpBar   progress.Model
	bossBar progress.Model
}

func newPlayModel(ctx context.Context, client *cli.Client, playerID string, conn *websocket.Conn) playModel {
	return playModel{
		ctx:      ctx,
		client:   client,
		playerID: playerID,
		conn:     conn,
		xpBar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(36)),
		bossBar:  progress.New(progress.WithGradient("#FF5F87", "#AF0000"), progress.WithWidth(36)),
	}
}

func (m playModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchDashboard(), m.fetchShop(), flushTick()}
	if m.conn != nil {
		cmds = append(cmds, listen(m.conn))
	} else {
		cmds = append(cmds, notice("Live events unavailable, dashboard refreshes after each action."))
	}
	return tea.Batch(cmds...)
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.pending > 0 {
				return m, tea.Sequence(m.sendClicks(m.pending), tea.Quit)
			}
			return m, tea.Quit
		case " ", "enter":
			if m.pending < game.MaxClicksPerRequest {
				m.pending++
			}
			return m, nil
		case "f":
			return m, m.act(game.Action{Kind: game.ActionFleeBoss})
		case "d":
			return m, m.act(game.Action{Kind: game.ActionClaimDaily})
		case "b":
			return m, m.engageNext()
		case "r":
			return m, tea.Batch(m.fetchDashboard(), m.fetchShop())
		}
		if k := msg.String(); len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
			idx := int(k[0] - '1')
			if idx < len(m.shop) {
				return m, m.act(game.Action{Kind: game.ActionBuyUpgrade, Ref: m.shop[idx].ID})
			}
		}
		return m, nil

	case flushMsg:
		var cmd tea.Cmd
		if m.pending > 0 && !m.inTap {
			cmd = m.sendClicks(m.pending)
			m.pending = 0
			m.inTap = true
		}
		return m, tea.Batch(cmd, flushTick())

	case clickMsg:
		m.inTap = false
		m.lastErr = ""
		if msg.Criticals > 0 {
			m.push(fmt.Sprintf("%d critical hits", msg.Criticals))
		}
		if msg.Luckies > 0 {
			m.push(fmt.Sprintf("Lucky! +%s coins", game.FormatNumber(msg.LuckyBonus)))
		}
		return m, m.fetchDashboard()

	case dashMsg:
		d := game.Dashboard(msg)
		m.dash = &d
		return m, nil

	case shopMsg:
		m.shop = msg
		return m, nil

	case eventMsg:
		for _, ev := range msg.Events {
			if line := describeEvent(ev); line != "" {
				m.push(line)
			}
		}
		return m, tea.Batch(listen(m.conn), m.fetchDashboard())

	case streamClosedMsg:
		m.conn = nil
		m.push("Event stream closed.")
		return m, nil

	case noticeMsg:
		m.lastErr = ""
		m.push(string(msg))
		return m, tea.Batch(m.fetchDashboard(), m.fetchShop())

	case errMsg:
		m.inTap = false
		m.lastErr = msg.err.Error()
		return m, nil
	}
	return m, nil
}

func (m playModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TYCOON") + dimStyle.Render("  player "+m.playerID) + "\n\n")

	if m.dash == nil {
		b.WriteString(dimStyle.Render("Loading...") + "\n")
		return b.String()
	}
	d := m.dash

	stats := fmt.Sprintf("%s coins   %s diamonds   score %s\n",
		coinStyle.Render(game.FormatNumber(d.Coins)),
		gemStyle.Render(game.FormatNumber(d.Diamonds)),
		game.FormatNumber(d.Score),
	)
	stats += fmt.Sprintf("Level %d  %s %d/%d XP\n", d.Level, m.xpBar.ViewAs(ratio(float64(d.Experience), float64(d.ExperienceToNext))), d.Experience, d.ExperienceToNext)
	stats += fmt.Sprintf("Damage %s/click  auto %.1f/s  crit %.0f%%  prestige x%.2f",
		game.FormatNumber(d.DamagePerClick), d.ClicksPerSecond, d.CriticalChance*100, d.PrestigeMultiplier)
	if m.pending > 0 {
		stats += dimStyle.Render(fmt.Sprintf("  (+%d taps)", m.pending))
	}
	b.WriteString(panelStyle.Render(stats) + "\n")

	if boss := d.CurrentBoss; boss != nil {
		phase := phaseStyles[boss.Phase].Render(strings.ToUpper(string(boss.Phase)))
		body := fmt.Sprintf("%s  %s\n%s %s/%s HP", boss.Name, phase,
			m.bossBar.ViewAs(ratio(boss.CurrentHealth, boss.MaxHealth)),
			game.FormatNumber(boss.CurrentHealth), game.FormatNumber(boss.MaxHealth))
		b.WriteString(bossStyle.Render(body) + "\n")
	}

	var shop strings.Builder
	for i, u := range m.shop {
		if i >= 9 {
			break
		}
		line := fmt.Sprintf("%d %-18s lv %2d  ", i+1, truncate(u.Name, 18), u.Level)
		switch {
		case u.Maxed:
			line += dimStyle.Render("maxed")
		case u.Locked:
			line += dimStyle.Render("locked")
		case d.Coins >= u.NextCost:
			line += coinStyle.Render(game.FormatNumber(u.NextCost))
		default:
			line += game.FormatNumber(u.NextCost)
		}
		shop.WriteString(line + "\n")
	}
	b.WriteString(panelStyle.Render(strings.TrimRight(shop.String(), "\n")) + "\n")

	for _, line := range m.log {
		b.WriteString(dimStyle.Render("> ") + line + "\n")
	}
	if m.lastErr != "" {
		b.WriteString(errStyle.Render(m.lastErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("space click  1-9 buy  b boss  f flee  d daily  r refresh  q quit") + "\n")
	return b.String()
}

func (m *playModel) push(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

// engageNext fights the first unlocked boss not yet defeated, falling back to
// any unlocked one.
func (m playModel) engageNext() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		raw, err := m.client.Bosses(ctx, m.playerID)
		cancel()
		if err != nil {
			return errMsg{err}
		}
		payload, err := decodeInto[bossesPayload](raw)
		if err != nil {
			return errMsg{err}
		}
		pick := ""
		for _, b := range payload.Bosses {
			if !b.Unlocked {
				continue
			}
			if !b.Defeated {
				pick = b.ID
				break
			}
			if pick == "" {
				pick = b.ID
			}
		}
		if pick == "" {
			return noticeMsg("No boss available to fight.")
		}
		return m.perform(game.Action{Kind: game.ActionEngageBoss, Ref: pick})
	}
}

func (m playModel) fetchDashboard() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		raw, err := m.client.Dashboard(ctx, m.playerID)
		if err != nil {
			return errMsg{err}
		}
		d, err := decodeInto[game.Dashboard](raw)
		if err != nil {
			return errMsg{err}
		}
		return dashMsg(d)
	}
}

func (m playModel) fetchShop() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		raw, err := m.client.Upgrades(ctx, m.playerID)
		if err != nil {
			return errMsg{err}
		}
		payload, err := decodeInto[upgradesPayload](raw)
		if err != nil {
			return errMsg{err}
		}
		return shopMsg(payload.Upgrades)
	}
}

func (m playModel) sendClicks(n int) tea.Cmd {
	return func() tea.Msg {
		idem := uuid.NewString()
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		raw, err := m.client.Click(ctx, m.playerID, n, idem)
		if err != nil {
			return m.offline(err, game.Action{Kind: game.ActionClick, Count: n, IdempotencyKey: idem})
		}
		out, err := decodeInto[game.ClickSummary](raw)
		if err != nil {
			return errMsg{err}
		}
		return clickMsg(out)
	}
}

// act sends one non-click action and reports the outcome as a notice.
func (m playModel) act(a game.Action) tea.Cmd {
	return func() tea.Msg { return m.perform(a) }
}

func (m playModel) perform(a game.Action) tea.Msg {
	a.IdempotencyKey = uuid.NewString()
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	var err error
	switch a.Kind {
	case game.ActionBuyUpgrade:
		_, err = m.client.BuyUpgrade(ctx, m.playerID, a.Ref, a.IdempotencyKey)
	case game.ActionEngageBoss:
		_, err = m.client.EngageBoss(ctx, m.playerID, a.Ref, a.IdempotencyKey)
	case game.ActionFleeBoss:
		_, err = m.client.FleeBoss(ctx, m.playerID, a.IdempotencyKey)
	case game.ActionClaimDaily:
		_, err = m.client.ClaimDaily(ctx, m.playerID, a.IdempotencyKey)
	}
	if err != nil {
		return m.offline(err, a)
	}
	return noticeMsg(describeAction(a))
}

func (m playModel) offline(err error, a game.Action) tea.Msg {
	if isAPIStructuredError(err) {
		return errMsg{err}
	}
	if qerr := syncq.Push(syncq.Command{PlayerID: m.playerID, Action: a}); qerr != nil {
		return errMsg{qerr}
	}
	return noticeMsg(fmt.Sprintf("Offline: queued %s for `tyc sync`.", a.Kind))
}

func listen(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		if conn == nil {
			return streamClosedMsg{}
		}
		var msg events.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return streamClosedMsg{}
		}
		return eventMsg(msg)
	}
}

func flushTick() tea.Cmd {
	return tea.Tick(flushEvery, func(time.Time) tea.Msg { return flushMsg{} })
}

func notice(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg(text) }
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	r := v / max
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func describeAction(a game.Action) string {
	switch a.Kind {
	case game.ActionBuyUpgrade:
		return "Bought " + a.Ref
	case game.ActionEngageBoss:
		return "Engaged " + a.Ref
	case game.ActionFleeBoss:
		return "Fled the fight"
	case game.ActionClaimDaily:
		return "Daily reward claimed"
	}
	return a.Kind
}

func describeEvent(ev game.Event) string {
	switch ev.Type {
	case game.EventLevelUp:
		return fmt.Sprintf("Level %d! +%s coins", ev.Level, game.FormatNumber(ev.Amount))
	case game.EventDiamondDrop:
		return fmt.Sprintf("Diamond drop +%s", game.FormatNumber(ev.Amount))
	case game.EventBossPhase:
		return fmt.Sprintf("%s is now %s", ev.Ref, ev.Message)
	case game.EventBossAttack:
		return fmt.Sprintf("%s attacks for %s", ev.Ref, game.FormatNumber(ev.Amount))
	case game.EventBossDefeated:
		return fmt.Sprintf("%s defeated! +%s coins", ev.Ref, game.FormatNumber(ev.Amount))
	case game.EventAchievement:
		return "Achievement unlocked: " + ev.Message
	case game.EventPrestige:
		return fmt.Sprintf("Prestige %d", ev.Level)
	case game.EventAutoClick:
		return ""
	case game.EventSaveFailed:
		return "Save failed: " + ev.Message
	case game.EventSaveRecovered:
		return "Save recovered: " + ev.Message
	}
	return ""
}
