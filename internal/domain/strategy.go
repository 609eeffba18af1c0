package domain

// StrategyID 配置表单中的策略选项（规范选择器）
type StrategyID string

const (
	StrategySmaCrossover   StrategyID = "SmaCrossover"
	StrategyTrendFollowing StrategyID = "TrendFollowing"
	StrategyRSI            StrategyID = "RSI"
	StrategyMACD           StrategyID = "MACD"
	StrategyADX            StrategyID = "ADX"
	StrategyDefault        StrategyID = "Default"
)

// Strategies 按表单展示顺序排列的全部策略选项
var Strategies = []StrategyID{
	StrategySmaCrossover,
	StrategyTrendFollowing,
	StrategyRSI,
	StrategyMACD,
	StrategyADX,
	StrategyDefault,
}

// DecoratorID 风险装饰器选项（与基础策略独立选择）
type DecoratorID string

const (
	DecoratorNone            DecoratorID = "None"
	DecoratorCrashProtection DecoratorID = "CrashProtection"
	DecoratorHighRisk        DecoratorID = "HighRisk"
	DecoratorLowRisk         DecoratorID = "LowRisk"
)

// Decorators 按表单展示顺序排列的全部装饰器选项
var Decorators = []DecoratorID{
	DecoratorNone,
	DecoratorCrashProtection,
	DecoratorHighRisk,
	DecoratorLowRisk,
}

// ParseStrategyID 严格匹配策略选项
func ParseStrategyID(s string) (StrategyID, bool) {
	for _, id := range Strategies {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// ParseDecoratorID 严格匹配装饰器选项
func ParseDecoratorID(s string) (DecoratorID, bool) {
	for _, id := range Decorators {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// Selection 当前配置表单的选择（SelectedConfig）。
// 只会被操作员输入或「成功解析远端策略名」修改。
type Selection struct {
	Strategy  StrategyID
	Decorator DecoratorID
}

// DefaultSelection 表单初始值
func DefaultSelection() Selection {
	return Selection{Strategy: StrategySmaCrossover, Decorator: DecoratorNone}
}

// StrategyDescriptor 远端返回的当前策略描述，Name 为自由格式的展示名
// （可能包含装饰器/参数信息，例如 "MACD (12, 26, 9) + HighRisk"）。
type StrategyDescriptor struct {
	Name string `json:"name"`
}
