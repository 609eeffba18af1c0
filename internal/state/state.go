// Package state 展示层状态容器。
//
// 单写者：只有 engine 的主循环会调用写方法；渲染层通过 Snapshot() 拿到
// 深拷贝后的只读视图，并通过 Changed() 得知何时需要重绘。
package state

import (
	"sync"
	"time"

	"github.com/betbot/botdash/internal/domain"
)

// InitialStrategyLabel 首次拉取策略前显示的占位文本
const InitialStrategyLabel = "Loading..."

// NoticeLevel 提示级别
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice 面向操作员的一次性提示（配置提交成功/失败）
type Notice struct {
	Level NoticeLevel
	Text  string
	At    time.Time
}

// Snapshot 展示状态的只读副本
type Snapshot struct {
	// 成交列表：已去掉 HOLD，最新在前
	Trades []domain.TradeRecord
	// 最近一次成功拉取的原始记录条数（含 HOLD）
	TotalRecords int

	Portfolio    domain.PortfolioSnapshot
	HasPortfolio bool

	Chart domain.ChartSeries

	Connected    bool
	StrategyName string
	Selection    domain.Selection
	Notice       *Notice

	LastTradeSync    time.Time
	LastStrategySync time.Time

	// 每次写入递增，便于读者判断是否有变化
	Version uint64
}

// TradeUpdate 一轮成功的成交拉取产生的整体更新。
// Portfolio 为 nil 表示本轮序列为空，保留旧指标。
type TradeUpdate struct {
	Portfolio    *domain.PortfolioSnapshot
	Chart        domain.ChartSeries
	Trades       []domain.TradeRecord
	TotalRecords int
	At           time.Time
}

// Store 状态容器
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
}

// NewStore 创建容器：初始连接状态为 true，策略名为占位文本
func NewStore() *Store {
	return &Store{
		snap: Snapshot{
			Trades:       []domain.TradeRecord{},
			Chart:        domain.ChartSeries{},
			Connected:    true,
			StrategyName: InitialStrategyLabel,
			Selection:    domain.DefaultSelection(),
		},
		changed: make(chan struct{}, 1),
	}
}

// Snapshot 返回深拷贝
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.Trades = append([]domain.TradeRecord(nil), s.snap.Trades...)
	out.Chart = append(domain.ChartSeries(nil), s.snap.Chart...)
	if s.snap.Notice != nil {
		n := *s.snap.Notice
		out.Notice = &n
	}
	return out
}

// Changed 状态变化信号（非阻塞合并，多次写入可能只触发一次）
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

// ApplyTrades 应用一轮成交拉取结果。
// 固定顺序：余额 -> 图表 -> 成交列表 -> 连接状态。
func (s *Store) ApplyTrades(u TradeUpdate) {
	s.mu.Lock()
	if u.Portfolio != nil {
		s.snap.Portfolio = *u.Portfolio
		s.snap.HasPortfolio = true
	}
	s.snap.Chart = append(domain.ChartSeries(nil), u.Chart...)
	s.snap.Trades = append([]domain.TradeRecord(nil), u.Trades...)
	s.snap.TotalRecords = u.TotalRecords
	s.snap.Connected = true
	s.snap.LastTradeSync = u.At
	s.snap.Version++
	s.mu.Unlock()
	s.emit()
}

// SetConnected 更新连接状态；值未变化时不产生版本号
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	if s.snap.Connected == connected {
		s.mu.Unlock()
		return
	}
	s.snap.Connected = connected
	s.snap.Version++
	s.mu.Unlock()
	s.emit()
}

// Connected 当前连接状态
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Connected
}

// SetStrategy 覆盖显示的策略名，并可选地替换表单选择
func (s *Store) SetStrategy(name string, sel *domain.Selection, at time.Time) {
	s.mu.Lock()
	s.snap.StrategyName = name
	if sel != nil {
		s.snap.Selection = *sel
	}
	s.snap.LastStrategySync = at
	s.snap.Version++
	s.mu.Unlock()
	s.emit()
}

// SetSelection 操作员修改表单
func (s *Store) SetSelection(sel domain.Selection) {
	s.mu.Lock()
	s.snap.Selection = sel
	s.snap.Version++
	s.mu.Unlock()
	s.emit()
}

// Selection 当前表单选择
func (s *Store) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Selection
}

// SetNotice 设置提示
func (s *Store) SetNotice(n Notice) {
	s.mu.Lock()
	s.snap.Notice = &n
	s.snap.Version++
	s.mu.Unlock()
	s.emit()
}

func (s *Store) emit() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
