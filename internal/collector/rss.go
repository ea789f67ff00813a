package collector

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
)

// 容错 RSS 解析器（best-effort）。
//
// 用正则逐个定位 <item>…</item>，再取 title/link/description/pubDate，
// CDATA 与纯文本两种写法都接受。已知限制：
//   - 不支持命名空间（dc:date、content:encoded 等会被忽略）
//   - 不读属性，因此 Atom 的 <link href="…"/> 取不到链接
//   - 实体只做 HTML 标准解码，不展开 DTD 自定义实体
//
// 需要严格解析时把数据源的 parser 设为 feed（gofeed），两者输出约定一致。

var (
	rssItemRe = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?>(.*?)</item>`)
	cdataRe   = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

	rssFieldRe = map[string]*regexp.Regexp{
		"title":       rssTagRe("title"),
		"link":        rssTagRe("link"),
		"description": rssTagRe("description"),
		"pubDate":     rssTagRe("pubDate"),
	}
)

func rssTagRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)<` + name + `(?:\s[^>]*)?>(.*?)</` + name + `>`)
}

// RSSOptions 截断与条数上限，零值使用默认（200 字符 / 20 条）
type RSSOptions struct {
	DescriptionLimit int
	MaxItems         int
	Location         *time.Location
}

func (o RSSOptions) withDefaults() RSSOptions {
	if o.DescriptionLimit <= 0 {
		o.DescriptionLimit = config.DefaultDescriptionLimit
	}
	if o.MaxItems <= 0 {
		o.MaxItems = config.DefaultRSSMaxItems
	}
	return o
}

// ParseRSS 解析 RSS 文本；没有任何 <item> 时返回空切片而不是错误。
// 日期无法解析的条目按 now 处理，结果按时间倒序并截取前 MaxItems 条。
func ParseRSS(text string, now time.Time, opts RSSOptions) []Item {
	opts = opts.withDefaults()

	blocks := rssItemRe.FindAllStringSubmatch(text, -1)
	items := make([]Item, 0, len(blocks))
	for _, b := range blocks {
		block := b[1]

		title := cleanText(rssField(block, "title"))
		link := decodeText(rssField(block, "link"))
		if title == "" || link == "" {
			continue
		}

		pubDate := strings.TrimSpace(rssField(block, "pubDate"))
		published, ok := ParseDate(pubDate, opts.Location)
		if !ok {
			published = now
		}

		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: truncateRunes(cleanText(rssField(block, "description")), opts.DescriptionLimit),
			PubDate:     pubDate,
			PublishedAt: published,
		})
	}

	return newestFirst(items, opts.MaxItems)
}

func rssField(block, name string) string {
	m := rssFieldRe[name].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return cdataRe.ReplaceAllString(m[1], "$1")
}

// newestFirst 按 PublishedAt 倒序（稳定排序）并截断
func newestFirst(items []Item, limit int) []Item {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// RSSNormalizer 按数据源的 parser 选择容错解析或 gofeed 严格解析
type RSSNormalizer struct {
	Location *time.Location
}

func (n *RSSNormalizer) Normalize(body []byte, src config.Source, now time.Time) ([]Item, error) {
	opts := RSSOptions{
		DescriptionLimit: src.DescriptionLimit,
		MaxItems:         src.MaxItems,
		Location:         n.Location,
	}
	if src.Parser == config.ParserFeed {
		return ParseFeed(body, now, opts)
	}
	return ParseRSS(string(body), now, opts), nil
}
