package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/betbot/botdash/internal/state"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field int

const (
	fieldStrategy field = iota
	fieldDecorator
)

type updateMsg struct {
	snapshot state.Snapshot
}

type tickMsg time.Time

var (
	accent       = lipgloss.Color("39")
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	liveStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	offlineStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	buyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	sellStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	focusStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

type model struct {
	ctx     context.Context
	src     Source
	act     Actions
	opts    Options
	snap    state.Snapshot
	focus   field
	pending bool
	now     time.Time
	width   int
	height  int
}

func newModel(ctx context.Context, src Source, act Actions, opts Options) model {
	return model{
		ctx:  ctx,
		src:  src,
		act:  act,
		opts: opts,
		snap: src.Snapshot(),
		now:  time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case updateMsg:
		if msg.snapshot.Notice != nil && (m.snap.Notice == nil || msg.snapshot.Notice.At.After(m.snap.Notice.At)) {
			m.pending = false
		}
		m.snap = msg.snapshot
		return m, m.waitForUpdate()
	case tickMsg:
		m.now = time.Time(msg)
		return m, m.tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab", "shift+tab":
		if m.focus == fieldStrategy {
			m.focus = fieldDecorator
		} else {
			m.focus = fieldStrategy
		}
	case "left", "h":
		m.cycle(-1)
	case "right", "l":
		m.cycle(1)
	case "up", "k":
		m.cycleDecorator(-1)
	case "down", "j":
		m.cycleDecorator(1)
	case "enter":
		m.pending = true
		m.act.Submit(m.snap.Selection)
	}
	return m, nil
}

func (m *model) cycle(step int) {
	if m.focus == fieldDecorator {
		m.cycleDecorator(step)
		return
	}
	sel := m.snap.Selection
	sel.Strategy = domain.Strategies[next(indexOf(domain.Strategies, sel.Strategy), step, len(domain.Strategies))]
	m.setSelection(sel)
}

func (m *model) cycleDecorator(step int) {
	sel := m.snap.Selection
	sel.Decorator = domain.Decorators[next(indexOf(domain.Decorators, sel.Decorator), step, len(domain.Decorators))]
	m.setSelection(sel)
}

// 本地先更新以便立即重绘，引擎写入后会随快照回来
func (m *model) setSelection(sel domain.Selection) {
	m.snap.Selection = sel
	m.act.SetSelection(sel)
}

func indexOf[T comparable](items []T, v T) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return 0
}

func next(i, step, n int) int {
	return ((i+step)%n + n) % n
}

func (m model) View() string {
	width := m.width
	if width < 80 {
		width = 80
	}
	half := width/2 - 2

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Width(half).Render(m.renderPortfolio()),
		" ",
		panelStyle.Width(half).Render(m.renderChart(half-4)),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		top,
		panelStyle.Width(width-2).Render(m.renderTrades()),
		panelStyle.Width(width-2).Render(m.renderForm()),
		m.renderFooter(),
	)
}

func (m model) renderHeader() string {
	badge := liveStyle.Render("● LIVE")
	if !m.snap.Connected {
		badge = offlineStyle.Render("● OFFLINE")
	}
	return titleStyle.Padding(0, 1).Render(m.opts.Title) +
		fmt.Sprintf(" %s | Strategy: %s | %s", badge, m.snap.StrategyName, m.now.Format("15:04:05"))
}

func (m model) renderPortfolio() string {
	lines := []string{titleStyle.Render("Portfolio")}
	if !m.snap.HasPortfolio {
		return strings.Join(append(lines, dimStyle.Render("waiting for trades...")), "\n")
	}
	p := m.snap.Portfolio
	lines = append(lines,
		fmt.Sprintf("USDT   %s", p.USDTBalance.StringFixed(2)),
		fmt.Sprintf("BTC    %s", p.BTCBalance.StringFixed(6)),
		fmt.Sprintf("Price  %s", p.Price.StringFixed(2)),
		fmt.Sprintf("Value  %s", p.PortfolioValue.StringFixed(2)),
	)
	if !m.snap.LastTradeSync.IsZero() {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("synced %s ago", formatDuration(m.now.Sub(m.snap.LastTradeSync)))))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderChart(width int) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("Price (last %d)", len(m.snap.Chart)))}
	if len(m.snap.Chart) == 0 {
		return strings.Join(append(lines, dimStyle.Render("no data")), "\n")
	}
	lines = append(lines, Sparkline(m.snap.Chart.Values(), width))
	first, last := m.snap.Chart[0], m.snap.Chart[len(m.snap.Chart)-1]
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%s … %s  last %s", first.Label, last.Label, formatPrice(last.Value))))
	return strings.Join(lines, "\n")
}

func (m model) renderTrades() string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Trades (%d shown, %d records)", len(m.snap.Trades), m.snap.TotalRecords)),
		fmt.Sprintf("%-14s %-8s %-4s %10s %10s %10s %9s", "Time", "Symbol", "Side", "Qty", "Price", "USDT", "BTC"),
	}
	rows := m.opts.TradeRows
	if m.height > 0 {
		if fit := m.height - 22; fit < rows {
			rows = fit
		}
	}
	if rows < 1 {
		rows = 1
	}
	for i, t := range m.snap.Trades {
		if i >= rows {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("... and %d more", len(m.snap.Trades)-rows)))
			break
		}
		side := string(t.Side)
		switch t.Side {
		case domain.SideBuy:
			side = buyStyle.Render(fmt.Sprintf("%-4s", side))
		case domain.SideSell:
			side = sellStyle.Render(fmt.Sprintf("%-4s", side))
		}
		lines = append(lines, fmt.Sprintf("%-14s %-8s %s %10s %10s %10s %9s",
			tradeTime(t), truncate(t.Symbol, 8), side, t.Quantity.String(),
			formatPrice(t.Price), formatPrice(t.USDT), formatOptional(t.BTC, 6)))
	}
	if len(m.snap.Trades) == 0 {
		lines = append(lines, dimStyle.Render("no trades"))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderForm() string {
	strategy := fmt.Sprintf("Strategy: ‹ %s ›", m.snap.Selection.Strategy)
	decorator := fmt.Sprintf("Decorator: ‹ %s ›", m.snap.Selection.Decorator)
	if m.focus == fieldStrategy {
		strategy = focusStyle.Render(strategy)
	} else {
		decorator = focusStyle.Render(decorator)
	}
	status := ""
	if m.pending {
		status = dimStyle.Render("  submitting...")
	}
	return titleStyle.Render("Configuration") + "\n" + strategy + "   " + decorator + status
}

func (m model) renderFooter() string {
	help := dimStyle.Render("tab: field  ←/→: change  ↑/↓: decorator  enter: apply  q: quit")
	n := m.snap.Notice
	if n == nil {
		return help
	}
	style := dimStyle
	switch n.Level {
	case state.NoticeSuccess:
		style = buyStyle
	case state.NoticeError:
		style = sellStyle
	}
	return style.Render(fmt.Sprintf("[%s] %s", n.At.Format("15:04:05"), n.Text)) + "\n" + help
}

func (m model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.src.Changed():
			return updateMsg{snapshot: m.src.Snapshot()}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func tradeTime(t domain.TradeRecord) string {
	if t.Time.IsZero() {
		return truncate(t.RawTimestamp, 14)
	}
	return t.Time.Format("01-02 15:04:05")
}

func formatPrice(v *float64) string {
	return formatOptional(v, 2)
}

func formatOptional(v *float64, places int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", places, *v)
}

// formatDuration 格式化时长
func formatDuration(dur time.Duration) string {
	if dur < time.Second {
		return fmt.Sprintf("%dms", dur.Milliseconds())
	}
	if dur < time.Minute {
		return fmt.Sprintf("%.1fs", dur.Seconds())
	}
	minutes := int(dur.Minutes())
	seconds := int(dur.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// truncate 按字符截断
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
