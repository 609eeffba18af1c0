// Package simulator 模拟远端交易服务：内存中的成交流水 + 可切换的策略/装饰器。
// 用于本地联调（cmd/trading-sim）和客户端契约测试。
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/betbot/botdash/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "simulator")

// TimestampLayout 与原交易机器人写入 trades.csv 的格式一致（无时区本地时间）
const TimestampLayout = "2006-01-02T15:04:05.000000"

// 基础策略的展示名
var baseNames = map[domain.StrategyID]string{
	domain.StrategySmaCrossover:   "SmaCrossover (5, 10)",
	domain.StrategyTrendFollowing: "TrendFollowing",
	domain.StrategyRSI:            "RSI Strategy (14)",
	domain.StrategyMACD:           "MACD (12, 26, 9)",
	domain.StrategyADX:            "ADX Strategy (Simplified)",
	domain.StrategyDefault:        "Default (Hold)",
}

// DisplayName 组合策略展示名：装饰器非 None 时为 "<base> + <Decorator>"
func DisplayName(sel domain.Selection) string {
	base, ok := baseNames[sel.Strategy]
	if !ok {
		base = baseNames[domain.StrategySmaCrossover]
	}
	if sel.Decorator == "" || sel.Decorator == domain.DecoratorNone {
		return base
	}
	return base + " + " + string(sel.Decorator)
}

// Row 一条成交流水（线上格式）。数值字段为 nil 时在 JSON 中输出 null。
type Row struct {
	Timestamp string   `json:"timestamp"`
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Quantity  string   `json:"quantity"`
	Price     *float64 `json:"price"`
	USDT      *float64 `json:"usdt"`
	BTC       *float64 `json:"btc"`
}

// Config 模拟器参数
type Config struct {
	Symbol     string
	StartPrice float64
	StartUSDT  float64
	MaxRows    int   // 流水上限，超出后丢弃最旧的记录
	Seed       int64 // 随机种子，0 表示使用当前时间
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.StartPrice <= 0 {
		c.StartPrice = 60000
	}
	if c.StartUSDT <= 0 {
		c.StartUSDT = 1000
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 500
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Simulator 模拟的交易服务状态
type Simulator struct {
	cfg Config

	mu      sync.RWMutex
	rows    []Row
	sel     domain.Selection
	offline bool
	rng     *rand.Rand
	price   float64
	usdt    float64
	btc     float64
}

// New 创建模拟器
func New(cfg Config) *Simulator {
	cfg.applyDefaults()
	return &Simulator{
		cfg:   cfg,
		rows:  make([]Row, 0, cfg.MaxRows),
		sel:   domain.DefaultSelection(),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		price: cfg.StartPrice,
		usdt:  cfg.StartUSDT,
	}
}

// Rows 当前流水副本（旧 -> 新）
func (s *Simulator) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Row(nil), s.rows...)
}

// Append 追加一条流水，并同步内部余额/价格
func (s *Simulator) Append(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(row)
}

func (s *Simulator) appendLocked(row Row) {
	s.rows = append(s.rows, row)
	if over := len(s.rows) - s.cfg.MaxRows; over > 0 {
		s.rows = append(s.rows[:0:0], s.rows[over:]...)
	}
	if row.Price != nil && *row.Price > 0 {
		s.price = *row.Price
	}
	if row.USDT != nil {
		s.usdt = *row.USDT
	}
	if row.BTC != nil {
		s.btc = *row.BTC
	}
}

// Selection 当前生效的策略选择
func (s *Simulator) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// StrategyName 当前策略展示名
func (s *Simulator) StrategyName() string {
	return DisplayName(s.Selection())
}

// Configure 切换策略。未知策略回退为 SmaCrossover，未知装饰器视为 None。
func (s *Simulator) Configure(strategy, decorator string) string {
	sid, ok := domain.ParseStrategyID(strategy)
	if !ok {
		sid = domain.StrategySmaCrossover
	}
	did, ok := domain.ParseDecoratorID(decorator)
	if !ok {
		did = domain.DecoratorNone
	}

	s.mu.Lock()
	s.sel = domain.Selection{Strategy: sid, Decorator: did}
	s.mu.Unlock()

	name := DisplayName(domain.Selection{Strategy: sid, Decorator: did})
	log.WithFields(logrus.Fields{"strategy": sid, "decorator": did}).Infof("策略已切换: %s", name)
	return name
}

// SetOffline 模拟服务不可用（所有 /api 请求返回 503）
func (s *Simulator) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// Offline 是否处于模拟故障状态
func (s *Simulator) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

// Step 生成下一条流水：价格随机游走，按概率 BUY/SELL/HOLD
func (s *Simulator) Step(now time.Time) Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.price *= 1 + s.rng.NormFloat64()*0.002
	if s.price < 1 {
		s.price = 1
	}

	side := domain.SideHold
	qty := 0.0
	switch r := s.rng.Float64(); {
	case r < 0.2 && s.usdt > 10:
		side = domain.SideBuy
		spend := s.usdt * 0.1
		qty = spend / s.price
		s.usdt -= spend
		s.btc += qty
	case r < 0.4 && s.btc > 0:
		side = domain.SideSell
		qty = s.btc * 0.5
		s.btc -= qty
		s.usdt += qty * s.price
	}

	row := Row{
		Timestamp: now.Format(TimestampLayout),
		Symbol:    s.cfg.Symbol,
		Side:      string(side),
		Quantity:  fmt.Sprintf("%.6f", qty),
		Price:     domain.Float(round(s.price, 2)),
		USDT:      domain.Float(round(s.usdt, 2)),
		BTC:       domain.Float(round(s.btc, 6)),
	}
	s.appendLocked(row)
	return row
}

// Run 按 interval 持续生成流水，直到 ctx 结束
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			row := s.Step(now)
			log.Debugf("tick %s %s qty=%s price=%.2f", row.Side, row.Symbol, row.Quantity, *row.Price)
		}
	}
}

func round(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
