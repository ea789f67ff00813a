package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/config"
)

// Processor 在归一化之后、写快照之前按数据源规则做后处理：
// UTF-8 清洗、去重、日期窗口、字段截断、条数上限。
type Processor struct {
	loc *time.Location
}

// NewProcessor loc 为日期窗口按自然日比较所用的时区，nil 时使用 UTC
func NewProcessor(loc *time.Location) *Processor {
	if loc == nil {
		loc = time.UTC
	}
	return &Processor{loc: loc}
}

func (p *Processor) Process(src config.Source, items []collector.Item, now time.Time) []collector.Item {
	out := make([]collector.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		it = sanitize(it)
		if !it.Valid() {
			continue
		}

		id := dedupeKey(src, it)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		out = append(out, it)
	}

	if src.Window != nil {
		out = FilterWindow(out, src.Window.Field, src.Window.Days, now.In(p.loc), p.loc)
	}

	for field, budget := range src.Truncate {
		for i := range out {
			out[i] = truncateField(out[i], field, budget)
		}
	}

	if src.MaxItems > 0 && len(out) > src.MaxItems {
		out = out[:src.MaxItems]
	}
	return out
}

// sanitize 去掉首尾空白，非法 UTF-8 替换为 U+FFFD，避免写出的 JSON 无法被前端解析
func sanitize(it collector.Item) collector.Item {
	it.Title = validUTF8(strings.TrimSpace(it.Title))
	it.Link = validUTF8(strings.TrimSpace(it.Link))
	it.Description = validUTF8(it.Description)
	it.PubDate = validUTF8(it.PubDate)
	if len(it.Extra) > 0 {
		extra := make(map[string]any, len(it.Extra))
		for k, v := range it.Extra {
			if s, ok := v.(string); ok {
				v = validUTF8(s)
			}
			extra[k] = v
		}
		it.Extra = extra
	}
	return it
}

func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

func truncateField(it collector.Item, field string, budget int) collector.Item {
	switch field {
	case "title":
		it.Title = Truncate(it.Title, budget)
	case "description":
		it.Description = Truncate(it.Description, budget)
	default:
		if s, ok := it.Extra[field].(string); ok {
			it.Extra[field] = Truncate(s, budget)
		}
	}
	return it
}

// dedupeKey 默认按链接去重；共用 default_link 的条目（如 60s 新闻行）链接都相同，改为链接加标题
func dedupeKey(src config.Source, it collector.Item) string {
	if src.DefaultLink != "" && it.Link == src.DefaultLink {
		return hashURL(it.Link + "\n" + it.Title)
	}
	return hashURL(it.Link)
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
