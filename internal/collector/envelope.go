package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
)

// successCode 状态信封约定的成功码
const successCode = 200

// EnvelopeNormalizer 处理 JSON API 的两种信封：
//   - RSS 风格 {items:[…]}：逐条映射 title/link(url)/description/pubDate
//   - 状态信封 {code,message,data}：code 非 200 时返回 *UpstreamError，否则透传 data
type EnvelopeNormalizer struct {
	Location *time.Location
}

func (n *EnvelopeNormalizer) Normalize(body []byte, src config.Source, now time.Time) ([]Item, error) {
	items, _, err := n.NormalizeEnvelope(body, src, now)
	return items, err
}

// NormalizeEnvelope 同 Normalize，另外返回 data 对象中 items_path 以外的字段
// （如 60s 的 date、day_of_week），由编排层写进快照头部。
func (n *EnvelopeNormalizer) NormalizeEnvelope(body []byte, src config.Source, now time.Time) ([]Item, map[string]any, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, &ParseError{Format: "json", Err: err}
	}
	if env == nil {
		return nil, nil, &ParseError{Format: "json", Err: errors.New("response is not an object")}
	}

	rawCode, hasCode := env["code"]
	if hasCode {
		code, err := parseCode(rawCode)
		if err != nil {
			return nil, nil, &ParseError{Format: "envelope", Err: err}
		}
		if code != successCode {
			var msg string
			_ = json.Unmarshal(env["message"], &msg)
			return nil, nil, &UpstreamError{Code: code, Message: msg}
		}
	}

	var (
		items []Item
		extra map[string]any
		err   error
	)
	switch {
	case env["data"] != nil:
		items, extra, err = n.passthrough(env["data"], src)
	case env["items"] != nil:
		items, err = n.rssStyle(env["items"])
	case hasCode:
		// 成功状态但没有负载：按空结果处理，照常写出空快照
		return []Item{}, nil, nil
	default:
		return nil, nil, &ParseError{Format: "envelope", Err: errors.New("neither code, data nor items present")}
	}
	if err != nil {
		return nil, nil, err
	}

	items, _ = keepValid(items)
	return items, extra, nil
}

// parseCode 接受数字或数字字符串
func parseCode(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := strconv.Atoi(n.String()); err == nil {
			return v, nil
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid code %s", string(raw))
}

// rssStyle 本地/远端 RSS 快照风格：{items:[{title,link,description,pubDate}]}
func (n *EnvelopeNormalizer) rssStyle(raw json.RawMessage) ([]Item, error) {
	var entries []Item
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &ParseError{Format: "items", Err: err}
	}
	for i := range entries {
		it := &entries[i]
		it.Title = sanitizeText(it.Title)
		it.Link = decodeText(it.Link)
		it.Description = sanitizeText(it.Description)
		if it.PublishedAt.IsZero() {
			if t, ok := ParseDate(it.PubDate, n.Location); ok {
				it.PublishedAt = t
			}
		}
	}
	return entries, nil
}

// passthrough data 视为上游已归一化：数组逐条保留全部字段；
// 对象则按 items_path 取列表，其余字段原样返回；纯字符串条目（如 60s 新闻行）转成只有标题的条目。
func (n *EnvelopeNormalizer) passthrough(raw json.RawMessage, src config.Source) ([]Item, map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return []Item{}, nil, nil
	}

	var extra map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if src.ItemsPath == "" {
			return nil, nil, &ParseError{Format: "envelope", Err: errors.New("data is an object and items_path is not set")}
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, nil, &ParseError{Format: "data", Err: err}
		}
		list, ok := obj[src.ItemsPath]
		if !ok {
			return nil, nil, &ParseError{Format: "data", Err: fmt.Errorf("key %q not found", src.ItemsPath)}
		}
		raw = list
		extra = siblingFields(obj, src.ItemsPath)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, &ParseError{Format: "data", Err: err}
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		var line string
		if err := json.Unmarshal(e, &line); err == nil {
			items = append(items, Item{Title: decodeText(line), Link: src.DefaultLink})
			continue
		}

		var it Item
		if err := json.Unmarshal(e, &it); err != nil {
			// 非对象条目（数字、嵌套数组）无法作为条目，直接丢弃
			continue
		}
		it.Title = decodeText(it.Title)
		it.Link = decodeText(it.Link)
		it.Description = decodeText(it.Description)
		if it.PublishedAt.IsZero() {
			if t, ok := ParseDate(it.PubDate, n.Location); ok {
				it.PublishedAt = t
			}
		}
		items = append(items, it)
	}
	return items, extra, nil
}

// siblingFields data 对象里除列表外的字段，数字保持 json.Number 不丢精度
func siblingFields(obj map[string]json.RawMessage, skip string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == skip {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var val any
		if err := dec.Decode(&val); err != nil {
			continue
		}
		out[k] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
