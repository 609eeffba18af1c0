// Package portfolio 根据最新成交记录推导余额与组合估值。
package portfolio

import (
	"github.com/betbot/botdash/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultUSDTBalance 最新记录缺少 usdt 字段时使用的计价币余额
const DefaultUSDTBalance = 1000

// Deriver 纯函数式的指标推导器，无内部状态
type Deriver struct {
	defaultUSDT decimal.Decimal
}

// NewDeriver 创建推导器；defaultUSDT <= 0 时回退为 DefaultUSDTBalance
func NewDeriver(defaultUSDT float64) *Deriver {
	if defaultUSDT <= 0 {
		defaultUSDT = DefaultUSDTBalance
	}
	return &Deriver{defaultUSDT: decimal.NewFromFloat(defaultUSDT)}
}

// Derive 由单条记录计算快照：
//   - usdt 缺失或为 0 -> 默认余额
//   - btc 缺失或为 0 -> 0
//   - price 缺失或为 0 -> 0
func (d *Deriver) Derive(latest domain.TradeRecord) domain.PortfolioSnapshot {
	usdt := valueOr(latest.USDT, d.defaultUSDT)
	btc := valueOr(latest.BTC, decimal.Zero)
	price := valueOr(latest.Price, decimal.Zero)

	return domain.PortfolioSnapshot{
		USDTBalance:    usdt,
		BTCBalance:     btc,
		Price:          price,
		PortfolioValue: usdt.Add(btc.Mul(price)),
	}
}

// FromTrades 取序列最后一条记录推导快照。
// 空序列不产生快照（ok=false），调用方应保留上一次的值。
func (d *Deriver) FromTrades(trades []domain.TradeRecord) (snap domain.PortfolioSnapshot, ok bool) {
	latest, ok := domain.Latest(trades)
	if !ok {
		return domain.PortfolioSnapshot{}, false
	}
	return d.Derive(latest), true
}

func valueOr(v *float64, def decimal.Decimal) decimal.Decimal {
	if !domain.Truthy(v) {
		return def
	}
	return decimal.NewFromFloat(*v)
}
