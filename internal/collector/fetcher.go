package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
)

// Item 统一采集后的基础结构（所有数据源都归一化成这一种形状）
type Item struct {
	Title string
	// Link 原文链接；上游字段 url 与 link 同时存在时以 url 为准
	Link        string
	Description string
	// PubDate 保留上游原始日期字符串，PublishedAt 为解析结果（零值表示缺失）
	PubDate     string
	PublishedAt time.Time
	// Extra 各数据源特有的字段（热度、股票代码、申购日期等），序列化时与基础字段平铺
	Extra map[string]any
}

// 基础字段名，Extra 中不会再出现这些键
const (
	fieldTitle       = "title"
	fieldLink        = "link"
	fieldURL         = "url"
	fieldDescription = "description"
	fieldPubDate     = "pubDate"
	fieldTimestamp   = "timestamp"
)

// Valid title 与 link 均非空才算有效条目
func (it Item) Valid() bool {
	return strings.TrimSpace(it.Title) != "" && strings.TrimSpace(it.Link) != ""
}

func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Extra)+5)
	for k, v := range it.Extra {
		out[k] = v
	}
	out[fieldTitle] = it.Title
	out[fieldLink] = it.Link
	if it.Description != "" {
		out[fieldDescription] = it.Description
	}
	if it.PubDate != "" {
		out[fieldPubDate] = it.PubDate
	}
	if !it.PublishedAt.IsZero() {
		out[fieldTimestamp] = it.PublishedAt.UnixMilli()
	}
	return json.Marshal(out)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	// 保留数字原样（热度值可能超过 float64 精度）
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*it = Item{}
	it.Title = stringValue(raw[fieldTitle])
	it.Link = stringValue(raw[fieldLink])
	if u := stringValue(raw[fieldURL]); u != "" {
		it.Link = u
	}
	it.Description = stringValue(raw[fieldDescription])
	it.PubDate = stringValue(raw[fieldPubDate])
	if n, ok := raw[fieldTimestamp].(json.Number); ok {
		if ts, err := n.Int64(); err == nil && ts > 0 {
			// 秒级时间戳也接受（毫秒时间戳在 1973 年之后都大于 1e11）
			if ts < 1e11 {
				ts *= 1000
			}
			it.PublishedAt = time.UnixMilli(ts)
		}
	}

	for k, v := range raw {
		switch k {
		case fieldTitle, fieldLink, fieldDescription, fieldPubDate, fieldTimestamp:
			continue
		}
		if it.Extra == nil {
			it.Extra = make(map[string]any, len(raw))
		}
		it.Extra[k] = v
	}
	return nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

// Fetcher 抓取一个数据源的原始字节，失败时返回 *NetworkError
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) ([]byte, error)
}

// Normalizer 把原始字节解析为统一条目，无效条目（缺 title/link）在此阶段丢弃
type Normalizer interface {
	Normalize(body []byte, src config.Source, now time.Time) ([]Item, error)
}

// EnvelopeFieldsNormalizer 可选接口：除条目外还能给出信封级字段，写入快照头部的 extra
type EnvelopeFieldsNormalizer interface {
	NormalizeEnvelope(body []byte, src config.Source, now time.Time) ([]Item, map[string]any, error)
}

// keepValid 丢弃缺少 title 或 link 的条目，返回被丢弃的数量
func keepValid(items []Item) ([]Item, int) {
	out := items[:0]
	for _, it := range items {
		if it.Valid() {
			out = append(out, it)
		}
	}
	return out, len(items) - len(out)
}
