package collector

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
	"github.com/PuerkitoBio/goquery"
)

// HTMLNormalizer 按数据源配置的 CSS 选择器解析热榜页面。
// 页面结构可能调整，此处基于当前的 DOM 结构做"尽力而为"的解析。
type HTMLNormalizer struct{}

func (h *HTMLNormalizer) Normalize(body []byte, src config.Source, now time.Time) ([]Item, error) {
	sel := src.Selectors
	if sel == nil || sel.Item == "" || sel.Title == "" {
		return nil, &ParseError{Format: "html", Err: errors.New("selectors.item and selectors.title are required")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Format: "html", Err: err}
	}
	base, _ := url.Parse(src.URL)

	items := make([]Item, 0, 32)
	doc.Find(sel.Item).Each(func(i int, s *goquery.Selection) {
		titleSel := s.Find(sel.Title).First()
		title := collapseSpace(titleSel.Text())

		linkSel := titleSel
		if sel.Link != "" {
			linkSel = s.Find(sel.Link).First()
		}
		href, _ := linkSel.Attr("href")
		link := resolveLink(base, href)
		if link == "" {
			// 没有可用链接时回退到页面本身，保证条目可点击
			link = src.URL
		}

		var desc string
		if sel.Description != "" {
			desc = collapseSpace(s.Find(sel.Description).First().Text())
		}

		extra := map[string]any{"rank": i + 1}
		for name, q := range sel.Extra {
			if v := collapseSpace(s.Find(q).First().Text()); v != "" {
				extra[name] = v
			}
		}

		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: desc,
			PublishedAt: now,
			Extra:       extra,
		})
	})

	items, _ = keepValid(items)
	return items, nil
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// resolveLink 将相对地址（/owner/repo）补全为绝对地址
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
