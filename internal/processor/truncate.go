package processor

import "github.com/LJTian/HotBoard/internal/config"

const ellipsis = "…"

// Truncate 按 rune 截断到 budget，只有真的截掉了内容才追加省略号。budget<=0 时使用默认 40。
func Truncate(s string, budget int) string {
	if budget <= 0 {
		budget = config.DefaultTruncateBudget
	}
	rs := []rune(s)
	if len(rs) <= budget {
		return s
	}
	return string(rs[:budget]) + ellipsis
}
