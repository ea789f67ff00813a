package collector

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	// bluemonday 的 Policy 构建后可并发使用
	stripTagsPolicy = bluemonday.StripTagsPolicy()
)

// cleanText 去标签 + 实体解码 + 空白折叠。
// 先去标签再解码，然后再去一次，以处理 &lt;p&gt; 这类被转义过的标记。
func cleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = htmlTagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// sanitizeText 用于 JSON 信封中的描述：实体解码后交给 bluemonday 去掉全部标签，
// bluemonday 输出会重新转义实体，所以最后再解码一次
func sanitizeText(s string) string {
	s = stripTagsPolicy.Sanitize(html.UnescapeString(s))
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// decodeText 只做实体解码，不动其它内容（透传数据使用）
func decodeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

// truncateRunes 按 rune 截断，不加省略号（入库前的预截断）
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit]))
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseDate 尽力解析上游日期字符串；先试常见 RSS 格式，再交给 dateparse 兜底。
// 无时区信息的日期按 loc 解释。
func ParseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
