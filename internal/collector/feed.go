package collector

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ParseFeed 使用 gofeed 严格解析 RSS/Atom/RSS1.0；与 ParseRSS 输出约定一致，
// 区别是 XML 非法时返回 *ParseError。
func ParseFeed(body []byte, now time.Time, opts RSSOptions) ([]Item, error) {
	opts = opts.withDefaults()

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Format: "feed", Err: err}
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		if fi == nil {
			continue
		}
		title := cleanText(fi.Title)
		link := strings.TrimSpace(fi.Link)
		if title == "" || link == "" {
			continue
		}

		raw := fi.Published
		published := now
		switch {
		case fi.PublishedParsed != nil:
			published = *fi.PublishedParsed
		case fi.UpdatedParsed != nil:
			published = *fi.UpdatedParsed
			raw = fi.Updated
		}

		desc := fi.Description
		if desc == "" {
			desc = fi.Content
		}

		items = append(items, Item{
			Title:       title,
			Link:        link,
			Description: truncateRunes(cleanText(desc), opts.DescriptionLimit),
			PubDate:     raw,
			PublishedAt: published,
		})
	}

	return newestFirst(items, opts.MaxItems), nil
}
