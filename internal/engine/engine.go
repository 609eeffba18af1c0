// Package engine 轮询调度 + 配置提交。
//
// 所有对 state.Store 的写入都发生在 Run 的主循环里：请求在独立 goroutine 中
// 发出，结果通过 channel 回到主循环再应用。轮询端点同一时间最多一个请求，
// 每个端点各自带单调序号，早于该端点最后一次已应用响应的直接丢弃。
// 提交成功的策略名总会写入；提交在途时发出的、或早于某次提交发出的策略查询可能
// 带回提交前的名字，这类响应不覆盖策略名。
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/betbot/botdash/internal/history"
	"github.com/betbot/botdash/internal/metrics"
	"github.com/betbot/botdash/internal/portfolio"
	"github.com/betbot/botdash/internal/resolver"
	"github.com/betbot/botdash/internal/state"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "engine")

const (
	DefaultTradeInterval    = 2 * time.Second
	DefaultStrategyInterval = 5 * time.Second
)

// TradingService 远端交易服务（tradeapi.Client / tradeapi.MockClient）
type TradingService interface {
	ListTrades(ctx context.Context) ([]domain.TradeRecord, error)
	GetStrategy(ctx context.Context) (domain.StrategyDescriptor, error)
	SetStrategy(ctx context.Context, sel domain.Selection) (domain.StrategyDescriptor, error)
}

// Config 轮询周期；<=0 使用默认值
type Config struct {
	TradeInterval    time.Duration
	StrategyInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.TradeInterval <= 0 {
		c.TradeInterval = DefaultTradeInterval
	}
	if c.StrategyInterval <= 0 {
		c.StrategyInterval = DefaultStrategyInterval
	}
}

type resultKind int

const (
	resultTrades resultKind = iota
	resultStrategy
	resultSubmit
)

type result struct {
	kind   resultKind
	seq    uint64
	// 仅策略查询：发出时的提交序号，以及当时是否有提交在途
	submitMark uint64
	overlap    bool
	trades []domain.TradeRecord
	desc   domain.StrategyDescriptor
	sel    domain.Selection
	err    error
}

// Engine 状态协调引擎
type Engine struct {
	svc     TradingService
	store   *state.Store
	deriver *portfolio.Deriver
	window  *history.Window
	cfg     Config
	now     func() time.Time

	cmds    chan func()
	results chan result
	done    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	mu        sync.Mutex
	cancel    context.CancelFunc

	// 以下字段只在主循环中读写
	runCtx           context.Context
	tradeInflight    bool
	strategyInflight bool
	tradeSeq         uint64
	appliedTradeSeq  uint64
	getSeq           uint64
	appliedGetSeq    uint64
	submitSeq        uint64
	appliedSubmitSeq uint64
	submitsInflight  int
}

// New 创建引擎。deriver/window 为 nil 时使用默认参数。
func New(svc TradingService, store *state.Store, deriver *portfolio.Deriver, window *history.Window, cfg Config) *Engine {
	cfg.applyDefaults()
	if deriver == nil {
		deriver = portfolio.NewDeriver(portfolio.DefaultUSDTBalance)
	}
	if window == nil {
		window = history.NewWindow(history.DefaultWindow)
	}
	return &Engine{
		svc:     svc,
		store:   store,
		deriver: deriver,
		window:  window,
		cfg:     cfg,
		now:     time.Now,
		cmds:    make(chan func(), 16),
		results: make(chan result, 4),
		done:    make(chan struct{}),
	}
}

// Store 引擎写入的状态容器
func (e *Engine) Store() *state.Store {
	return e.store
}

// Start 在后台运行 Run，只生效一次
func (e *Engine) Start(parent context.Context) {
	e.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		e.mu.Lock()
		e.cancel = cancel
		e.mu.Unlock()
		go func() {
			_ = e.Run(ctx)
		}()
	})
}

// Stop 停止 Start 启动的循环，并等待所有在途请求退出
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-e.done
}

// Done Run 退出后关闭
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run 阻塞运行主循环直到 ctx 结束。两个轮询都会在启动时立即触发一次。
// 返回前停止两个 ticker、取消在途请求并等待其 goroutine 退出。
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	defer func() {
		cancel()
		e.wg.Wait()
	}()

	tradeTicker := time.NewTicker(e.cfg.TradeInterval)
	defer tradeTicker.Stop()
	strategyTicker := time.NewTicker(e.cfg.StrategyInterval)
	defer strategyTicker.Stop()

	log.WithFields(logrus.Fields{
		"trade_interval":    e.cfg.TradeInterval,
		"strategy_interval": e.cfg.StrategyInterval,
	}).Info("轮询已启动")

	e.tickTrades()
	e.tickStrategy()

	for {
		select {
		case <-runCtx.Done():
			log.Info("轮询已停止")
			return nil
		case <-tradeTicker.C:
			e.tickTrades()
		case <-strategyTicker.C:
			e.tickStrategy()
		case r := <-e.results:
			e.apply(r)
		case cmd := <-e.cmds:
			cmd()
		}
	}
}

// Submit 提交一次策略配置（非阻塞），结果以 Notice 的形式出现在状态里
func (e *Engine) Submit(sel domain.Selection) {
	e.enqueue(func() { e.submit(sel) })
}

// SetSelection 操作员修改表单选择
func (e *Engine) SetSelection(sel domain.Selection) {
	e.enqueue(func() { e.store.SetSelection(sel) })
}

func (e *Engine) enqueue(cmd func()) {
	select {
	case e.cmds <- cmd:
	case <-e.done:
	}
}

func (e *Engine) tickTrades() {
	if e.tradeInflight {
		metrics.TicksSkippedInflight.Add(1)
		log.Debug("成交请求仍在途，跳过本轮")
		return
	}
	e.tradeInflight = true
	e.tradeSeq++
	seq := e.tradeSeq
	metrics.TradePolls.Add(1)

	e.spawn(func(ctx context.Context) result {
		trades, err := e.svc.ListTrades(ctx)
		return result{kind: resultTrades, seq: seq, trades: trades, err: err}
	})
}

func (e *Engine) tickStrategy() {
	if !e.store.Connected() {
		metrics.StrategyPollsSkipped.Add(1)
		log.Debug("离线，跳过策略轮询")
		return
	}
	if e.strategyInflight {
		metrics.TicksSkippedInflight.Add(1)
		log.Debug("策略请求仍在途，跳过本轮")
		return
	}
	e.strategyInflight = true
	e.getSeq++
	seq, mark, overlap := e.getSeq, e.submitSeq, e.submitsInflight > 0
	metrics.StrategyPolls.Add(1)

	e.spawn(func(ctx context.Context) result {
		desc, err := e.svc.GetStrategy(ctx)
		return result{kind: resultStrategy, seq: seq, submitMark: mark, overlap: overlap, desc: desc, err: err}
	})
}

func (e *Engine) submit(sel domain.Selection) {
	e.submitSeq++
	e.submitsInflight++
	seq := e.submitSeq
	metrics.ConfigSubmits.Add(1)
	log.WithFields(logrus.Fields{"strategy": sel.Strategy, "decorator": sel.Decorator, "seq": seq}).Info("提交策略配置")

	e.spawn(func(ctx context.Context) result {
		desc, err := e.svc.SetStrategy(ctx, sel)
		return result{kind: resultSubmit, seq: seq, desc: desc, sel: sel, err: err}
	})
}

func (e *Engine) spawn(fn func(ctx context.Context) result) {
	ctx := e.runCtx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		r := fn(ctx)
		select {
		case e.results <- r:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) apply(r result) {
	switch r.kind {
	case resultTrades:
		e.tradeInflight = false
		e.applyTrades(r)
	case resultStrategy:
		e.strategyInflight = false
		e.applyStrategy(r)
	case resultSubmit:
		e.applySubmit(r)
	}
}

func (e *Engine) applyTrades(r result) {
	if r.seq < e.appliedTradeSeq {
		metrics.StaleResponsesDiscarded.Add(1)
		return
	}
	e.appliedTradeSeq = r.seq

	if r.err != nil {
		metrics.TradePollErrors.Add(1)
		metrics.Connected.Set(0)
		if e.store.Connected() {
			log.WithField("seq", r.seq).Warnf("拉取成交失败，标记为离线: %v", r.err)
		} else {
			log.WithField("seq", r.seq).Debugf("拉取成交失败: %v", r.err)
		}
		e.store.SetConnected(false)
		return
	}

	u := state.TradeUpdate{
		Chart:        e.window.Build(r.trades),
		Trades:       history.VisibleTrades(r.trades),
		TotalRecords: len(r.trades),
		At:           e.now(),
	}
	if snap, ok := e.deriver.FromTrades(r.trades); ok {
		u.Portfolio = &snap
	}
	if !e.store.Connected() {
		log.WithField("seq", r.seq).Info("成交拉取恢复，标记为在线")
	}
	e.store.ApplyTrades(u)
	metrics.Connected.Set(1)
	metrics.LastTradeCount.Set(int64(len(r.trades)))
}

func (e *Engine) applyStrategy(r result) {
	if r.err != nil {
		metrics.StrategyPollErrors.Add(1)
		log.WithField("seq", r.seq).Warnf("拉取策略失败: %v", r.err)
		return
	}
	if r.seq < e.appliedGetSeq {
		metrics.StaleResponsesDiscarded.Add(1)
		log.WithFields(logrus.Fields{"seq": r.seq, "applied": e.appliedGetSeq}).Debug("丢弃过期的策略响应")
		return
	}
	e.appliedGetSeq = r.seq
	if r.overlap || r.submitMark != e.submitSeq {
		metrics.StaleResponsesDiscarded.Add(1)
		log.WithFields(logrus.Fields{"seq": r.seq, "submit_seq": e.submitSeq}).Debug("策略查询与提交交叠，丢弃")
		return
	}

	sel := resolver.Apply(e.store.Selection(), r.desc.Name)
	e.store.SetStrategy(r.desc.Name, &sel, e.now())
}

func (e *Engine) applySubmit(r result) {
	e.submitsInflight--
	if r.err != nil {
		metrics.ConfigSubmitErrors.Add(1)
		log.WithField("seq", r.seq).Errorf("提交策略失败: %v", r.err)
		e.store.SetNotice(state.Notice{
			Level: state.NoticeError,
			Text:  fmt.Sprintf("Failed to update strategy: %v", r.err),
			At:    e.now(),
		})
		return
	}

	// 多次提交时只有更早的提交晚到才不覆盖
	if r.seq < e.appliedSubmitSeq {
		metrics.StaleResponsesDiscarded.Add(1)
		log.WithFields(logrus.Fields{"seq": r.seq, "applied": e.appliedSubmitSeq}).Debug("提交响应已过期，不覆盖策略名")
	} else {
		e.appliedSubmitSeq = r.seq
		e.store.SetStrategy(r.desc.Name, nil, e.now())
	}
	e.store.SetNotice(state.Notice{
		Level: state.NoticeSuccess,
		Text:  fmt.Sprintf("Strategy updated: %s", r.desc.Name),
		At:    e.now(),
	})
}
