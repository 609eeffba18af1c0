package dashboard

import "strings"

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline 把价格序列渲染成一行字符图；缺失值显示为空格。
// 序列长于 width 时只画最后 width 个点。
func Sparkline(values []*float64, width int) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi, seen := 0.0, 0.0, false
	for _, v := range values {
		if v == nil {
			continue
		}
		if !seen || *v < lo {
			lo = *v
		}
		if !seen || *v > hi {
			hi = *v
		}
		seen = true
	}

	var b strings.Builder
	for _, v := range values {
		if v == nil {
			b.WriteRune(' ')
			continue
		}
		idx := len(sparkLevels) / 2
		if hi > lo {
			idx = int((*v - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
