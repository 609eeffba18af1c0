package history

import "github.com/betbot/botdash/internal/domain"

// VisibleTrades 成交列表投影：去掉 HOLD，按最新在前排列。
// 返回新切片，不修改入参。
func VisibleTrades(trades []domain.TradeRecord) []domain.TradeRecord {
	out := make([]domain.TradeRecord, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Side.IsHold() {
			continue
		}
		out = append(out, trades[i])
	}
	return out
}
