package processor

import (
	"time"

	"github.com/LJTian/HotBoard/internal/collector"
)

// Label 相对日期分档，用于前端展示"今天/明天/N 天后"等
type Label string

const (
	LabelToday     Label = "today"
	LabelTomorrow  Label = "tomorrow"
	LabelYesterday Label = "yesterday"
	LabelUpcoming  Label = "upcoming" // 2~3 天后
	LabelFuture    Label = "future"   // 3 天以后
	LabelPast      Label = "past"     // 前天及更早
	LabelUnknown   Label = "unknown"
)

// upcomingDays upcoming 与 future 的分界
const upcomingDays = 3

// Classify 纯函数：只依赖 target 与 now，按 now 所在时区的自然日分档。
// 第二个返回值为天数差（未来为正），unknown 时为 0。
func Classify(target, now time.Time) (Label, int) {
	if target.IsZero() {
		return LabelUnknown, 0
	}
	n := DayOffset(target, now)
	switch {
	case n == 0:
		return LabelToday, n
	case n == 1:
		return LabelTomorrow, n
	case n == -1:
		return LabelYesterday, n
	case n > 1 && n <= upcomingDays:
		return LabelUpcoming, n
	case n > upcomingDays:
		return LabelFuture, n
	default:
		return LabelPast, n
	}
}

// Relabel 按新的 now 重新计算带窗口条目的 dateLabel/dayOffset，
// 快照可能是几个小时前写的，跨天后标签需要更新。返回新切片，不修改入参。
func Relabel(items []collector.Item, field string, now time.Time) []collector.Item {
	out := make([]collector.Item, len(items))
	for i, it := range items {
		if at, ok := FieldDate(it, field, now.Location()); ok {
			label, n := Classify(at, now)
			it.Extra = cloneExtra(it.Extra)
			it.Extra[ExtraDateLabel] = string(label)
			it.Extra[ExtraDayOffset] = n
		}
		out[i] = it
	}
	return out
}
