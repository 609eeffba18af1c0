package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Side 成交记录方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD" // 本次决策未下单，但余额快照仍然有效
)

// IsHold 是否为 HOLD 记录（区分大小写，与服务端输出保持一致）
func (s Side) IsHold() bool {
	return s == SideHold
}

// TradeRecord 远端交易服务返回的一条执行/HOLD 记录。
// 收到后不可变；每次轮询拿到的是完整的新序列（旧 -> 新），整体替换上一轮。
//
// Price/USDT/BTC 可能缺失，用指针区分「缺失」与「0」：
// 估值计算会做默认值替换，图表则保持缺失。
type TradeRecord struct {
	Time         time.Time       // 解析后的时间；解析失败时为零值
	RawTimestamp string          // 服务端原始时间文本
	Symbol       string          // 交易对，例如 BTCUSDT
	Side         Side            // BUY / SELL / HOLD
	Quantity     decimal.Decimal // 数量（服务端以十进制字符串传输）
	Price        *float64        // 成交价（计价币/单位）
	USDT         *float64        // 事件后的计价币余额
	BTC          *float64        // 事件后的基础币余额
}

// Truthy 判断可选数值是否「有效」：存在、非 0、非 NaN。
func Truthy(v *float64) bool {
	return v != nil && *v != 0 && !math.IsNaN(*v)
}

// Float 返回一个指向 v 的指针（构造测试数据/解码时使用）
func Float(v float64) *float64 {
	return &v
}

// Latest 返回序列中最新的一条记录（最后一个元素，即使是 HOLD）
func Latest(trades []TradeRecord) (TradeRecord, bool) {
	if len(trades) == 0 {
		return TradeRecord{}, false
	}
	return trades[len(trades)-1], true
}
