// Package resolver 把远端返回的自由格式策略名映射回表单里的规范选择器。
//
// 这是对服务端拼接命名规则的一种「尽力而为」的逆推：按固定顺序做子串匹配，
// 第一条命中的规则生效；都不命中时保持原选择不变。规则顺序本身就是语义，
// 例如 "MACD_Trend" 命中 MACD 而不是 TrendFollowing。
package resolver

import (
	"strings"

	"github.com/betbot/botdash/internal/domain"
)

// Rule 一条匹配规则：名称包含任一 Tokens（区分大小写）即映射到 Strategy
type Rule struct {
	Tokens   []string
	Strategy domain.StrategyID
}

// Rules 有序规则表
var Rules = []Rule{
	{Tokens: []string{"ADX"}, Strategy: domain.StrategyADX},
	{Tokens: []string{"MACD"}, Strategy: domain.StrategyMACD},
	{Tokens: []string{"RSI"}, Strategy: domain.StrategyRSI},
	{Tokens: []string{"SMA", "Sma"}, Strategy: domain.StrategySmaCrossover},
	{Tokens: []string{"Trend"}, Strategy: domain.StrategyTrendFollowing},
	{Tokens: []string{"Risk", "Default"}, Strategy: domain.StrategyDefault},
}

// Match 返回第一条命中规则对应的选择器；无命中时 ok=false
func Match(name string) (id domain.StrategyID, ok bool) {
	for _, r := range Rules {
		for _, tok := range r.Tokens {
			if strings.Contains(name, tok) {
				return r.Strategy, true
			}
		}
	}
	return "", false
}

// Resolve 解析 name；无命中时返回 previous（保持原选择）
func Resolve(name string, previous domain.StrategyID) domain.StrategyID {
	if id, ok := Match(name); ok {
		return id
	}
	return previous
}

// Apply 只替换 Selection 的策略字段，装饰器保持不变
func Apply(sel domain.Selection, name string) domain.Selection {
	sel.Strategy = Resolve(name, sel.Strategy)
	return sel
}
