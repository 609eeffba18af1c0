package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot 由最新一条成交记录推导出的账户指标（不传输、不持久化）。
// PortfolioValue = USDTBalance + BTCBalance * Price
type PortfolioSnapshot struct {
	USDTBalance    decimal.Decimal
	BTCBalance     decimal.Decimal
	Price          decimal.Decimal
	PortfolioValue decimal.Decimal
}

// IsZero 是否还未产生过快照
func (p PortfolioSnapshot) IsZero() bool {
	return p.USDTBalance.IsZero() && p.BTCBalance.IsZero() && p.PortfolioValue.IsZero()
}

// ChartPoint 图表上的一个点。Value 为 nil 表示该记录缺少价格（绘制为空）。
type ChartPoint struct {
	Label string
	Time  time.Time
	Value *float64
}

// ChartSeries 有界的价格序列（旧 -> 新）
type ChartSeries []ChartPoint

// Values 返回所有点的值（缺失值保持 nil）
func (s ChartSeries) Values() []*float64 {
	out := make([]*float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
