// Package history 负责图表窗口与成交列表两种展示投影。
// 两者每轮都从最新一次拉取的完整序列整体重算，不做增量追加。
package history

import (
	"github.com/betbot/botdash/internal/domain"
)

// DefaultWindow 图表最多展示的点数
const DefaultWindow = 50

// LabelFunc 生成图表横轴标签
type LabelFunc func(rec domain.TradeRecord) string

// TimeOfDay 默认标签：时:分:秒；时间无法解析时退回原始文本
func TimeOfDay(rec domain.TradeRecord) string {
	if rec.Time.IsZero() {
		return rec.RawTimestamp
	}
	return rec.Time.Format("15:04:05")
}

// Window 有界的价格窗口
type Window struct {
	size  int
	label LabelFunc
}

// NewWindow 创建窗口；size <= 0 时使用 DefaultWindow
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{size: size, label: TimeOfDay}
}

// WithLabel 替换标签函数（nil 忽略）
func (w *Window) WithLabel(fn LabelFunc) *Window {
	if fn != nil {
		w.label = fn
	}
	return w
}

// Size 窗口容量
func (w *Window) Size() int {
	return w.size
}

// Build 取序列最后 size 条（不足则全部）生成图表序列。
// 值直接取 price，不做默认值替换：缺失价格的点 Value 为 nil。
func (w *Window) Build(trades []domain.TradeRecord) domain.ChartSeries {
	start := 0
	if len(trades) > w.size {
		start = len(trades) - w.size
	}

	series := make(domain.ChartSeries, 0, len(trades)-start)
	for _, rec := range trades[start:] {
		var value *float64
		if rec.Price != nil {
			v := *rec.Price
			value = &v
		}
		series = append(series, domain.ChartPoint{
			Label: w.label(rec),
			Time:  rec.Time,
			Value: value,
		})
	}
	return series
}
