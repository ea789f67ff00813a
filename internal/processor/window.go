package processor

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/LJTian/HotBoard/internal/collector"
)

// 写入 Extra 的派生字段
const (
	ExtraDateLabel = "dateLabel"
	ExtraDayOffset = "dayOffset"
)

// FilterWindow 只保留 field 日期落在 [today-days, today+days] 的条目（按 loc 的自然日比较），
// 缺少该字段或无法解析的条目直接丢弃。结果按该日期降序，并带上 dateLabel/dayOffset。
func FilterWindow(items []collector.Item, field string, days int, now time.Time, loc *time.Location) []collector.Item {
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)

	type dated struct {
		item collector.Item
		at   time.Time
	}
	kept := make([]dated, 0, len(items))
	for _, it := range items {
		at, ok := FieldDate(it, field, loc)
		if !ok {
			continue
		}
		offset := DayOffset(at, now)
		if offset < -days || offset > days {
			continue
		}

		label, _ := Classify(at, now)
		it.Extra = cloneExtra(it.Extra)
		it.Extra[ExtraDateLabel] = string(label)
		it.Extra[ExtraDayOffset] = offset
		kept = append(kept, dated{item: it, at: at})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].at.After(kept[j].at)
	})

	out := make([]collector.Item, len(kept))
	for i, d := range kept {
		out[i] = d.item
	}
	return out
}

// FieldDate 取条目上的日期字段：pubDate/timestamp 对应基础字段，其余从 Extra 中读取
func FieldDate(it collector.Item, field string, loc *time.Location) (time.Time, bool) {
	switch field {
	case "pubDate", "timestamp":
		if !it.PublishedAt.IsZero() {
			return it.PublishedAt, true
		}
		return collector.ParseDate(it.PubDate, loc)
	}

	switch v := it.Extra[field].(type) {
	case string:
		return collector.ParseDate(v, loc)
	case time.Time:
		return v, !v.IsZero()
	case json.Number:
		ms, err := v.Int64()
		if err != nil || ms <= 0 {
			return time.Time{}, false
		}
		if ms < 1e11 {
			ms *= 1000
		}
		return time.UnixMilli(ms), true
	default:
		return time.Time{}, false
	}
}

// DayOffset target 相对 now 的自然日差值（now 所在时区），正数表示未来
func DayOffset(target, now time.Time) int {
	loc := now.Location()
	t := target.In(loc)
	a := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

func cloneExtra(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
