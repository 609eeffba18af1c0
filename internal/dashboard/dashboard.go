// Package dashboard 终端展示层：bubbletea 界面，或在没有终端时退化为日志输出。
// 它只读 state.Store 的快照，所有修改都通过 Actions 交给引擎。
package dashboard

import (
	"context"
	"fmt"
	"os"

	"github.com/betbot/botdash/internal/domain"
	"github.com/betbot/botdash/internal/state"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var log = logrus.WithField("module", "dashboard")

// Source 只读状态来源（*state.Store）
type Source interface {
	Snapshot() state.Snapshot
	Changed() <-chan struct{}
}

// Actions 操作员动作（*engine.Engine）
type Actions interface {
	Submit(sel domain.Selection)
	SetSelection(sel domain.Selection)
}

// Options 界面参数
type Options struct {
	Title     string
	Headless  bool
	TradeRows int // 成交表最多显示的行数，<=0 为 15
}

// Dashboard 展示层
type Dashboard struct {
	src  Source
	act  Actions
	opts Options
}

// New 创建展示层
func New(src Source, act Actions, opts Options) *Dashboard {
	if opts.Title == "" {
		opts.Title = "AI Trading Bot Dashboard"
	}
	if opts.TradeRows <= 0 {
		opts.TradeRows = 15
	}
	return &Dashboard{src: src, act: act, opts: opts}
}

// IsTerminal stdout 是否为终端
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run 阻塞运行直到 ctx 结束或用户退出（q / ctrl+c）。用户退出时返回 nil。
func (d *Dashboard) Run(ctx context.Context) error {
	if d.opts.Headless {
		return d.runHeadless(ctx)
	}

	m := newModel(ctx, d.src, d.act, d.opts)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard UI 运行错误: %w", err)
	}
	log.Info("界面已退出")
	return nil
}

// runHeadless 没有终端时，每次状态变化输出一行摘要
func (d *Dashboard) runHeadless(ctx context.Context) error {
	log.Info("无终端，使用日志模式")
	var h headlessLog
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.src.Changed():
		}

		line, notice := h.observe(d.src.Snapshot())
		if line != "" {
			log.Info(line)
		}
		if notice != nil {
			log.WithField("level", notice.Level.String()).Info(notice.Text)
		}
	}
}

// headlessLog 去重：每轮轮询都会推进 Version/LastTradeSync，摘要不变时不重复输出
type headlessLog struct {
	lastLine   string
	lastNotice *state.Notice
}

// observe 返回需要输出的摘要（无变化为空）和新出现的提示
func (h *headlessLog) observe(snap state.Snapshot) (string, *state.Notice) {
	var line string
	if s := Summary(snap); s != h.lastLine {
		h.lastLine = s
		line = s
	}
	var notice *state.Notice
	if snap.Notice != nil && (h.lastNotice == nil || snap.Notice.At.After(h.lastNotice.At)) {
		h.lastNotice = snap.Notice
		notice = snap.Notice
	}
	return line, notice
}

// Summary 单行状态摘要
func Summary(snap state.Snapshot) string {
	status := "LIVE"
	if !snap.Connected {
		status = "OFFLINE"
	}
	portfolio := "-"
	if snap.HasPortfolio {
		p := snap.Portfolio
		portfolio = fmt.Sprintf("usdt=%s btc=%s price=%s value=%s",
			p.USDTBalance.StringFixed(2), p.BTCBalance.StringFixed(6),
			p.Price.StringFixed(2), p.PortfolioValue.StringFixed(2))
	}
	return fmt.Sprintf("[%s] strategy=%q selected=%s/%s trades=%d/%d chart=%d %s",
		status, snap.StrategyName, snap.Selection.Strategy, snap.Selection.Decorator,
		len(snap.Trades), snap.TotalRecords, len(snap.Chart), portfolio)
}
