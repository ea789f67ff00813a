package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind 数据源类型，决定使用哪一套抓取/解析策略
type Kind string

const (
	KindRSS     Kind = "rss"
	KindJSONAPI Kind = "json_api"
	KindHTML    Kind = "html"
)

const (
	ParserTolerant = "tolerant"
	ParserFeed     = "feed"

	LayoutItems    = "items"
	LayoutEnvelope = "envelope"
)

const (
	DefaultRSSMaxItems      = 20
	DefaultDescriptionLimit = 200
	DefaultTruncateBudget   = 40
)

var sourceIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidID id 同时用作快照文件名，只允许小写字母、数字、下划线和短横线
func ValidID(id string) bool {
	return sourceIDRe.MatchString(id)
}

// Source 描述一个上游数据源，进程启动时加载，之后只读
type Source struct {
	ID          string `koanf:"id" json:"id"`
	URL         string `koanf:"url" json:"url"`
	Kind        Kind   `koanf:"kind" json:"kind"`
	Name        string `koanf:"name" json:"name"`
	Description string `koanf:"description" json:"description"`

	// Parser 仅 RSS 使用：tolerant（正则容错解析，默认）/ feed（gofeed 严格解析）
	Parser           string `koanf:"parser" json:"-"`
	MaxItems         int    `koanf:"max_items" json:"-"`
	DescriptionLimit int    `koanf:"description_limit" json:"-"`

	// Window 日期窗口过滤，例如新股日历只保留前后 7 天
	Window *Window `koanf:"window" json:"window,omitempty"`
	// Truncate 字段名 -> 截断长度（按 rune），0 表示使用默认 40
	Truncate map[string]int `koanf:"truncate" json:"-"`

	// ItemsPath 状态信封中 data 为对象时，列表所在的键（例如 60s 新闻的 news）
	ItemsPath string `koanf:"items_path" json:"-"`
	// DefaultLink 条目缺少链接时的兜底链接（例如纯文本新闻行）
	DefaultLink string `koanf:"default_link" json:"-"`
	Layout      string `koanf:"layout" json:"-"`

	Selectors *Selectors        `koanf:"selectors" json:"-"`
	Headers   map[string]string `koanf:"headers" json:"-"`
}

// Window 按某个日期字段做 [today-Days, today+Days] 的过滤
type Window struct {
	Field string `koanf:"field" json:"field"`
	Days  int    `koanf:"days" json:"days"`
}

// Selectors HTML 页面的 CSS 选择器，Title/Link/Description 相对于 Item
type Selectors struct {
	Item        string            `koanf:"item"`
	Title       string            `koanf:"title"`
	Link        string            `koanf:"link"`
	Description string            `koanf:"description"`
	Extra       map[string]string `koanf:"extra"`
}

func (s *Source) applyDefaults() {
	switch s.Kind {
	case KindRSS:
		if s.Parser == "" {
			s.Parser = ParserTolerant
		}
		if s.MaxItems == 0 {
			s.MaxItems = DefaultRSSMaxItems
		}
		if s.DescriptionLimit == 0 {
			s.DescriptionLimit = DefaultDescriptionLimit
		}
	}
	if s.Layout == "" {
		s.Layout = LayoutItems
	}
	for field, budget := range s.Truncate {
		if budget == 0 {
			s.Truncate[field] = DefaultTruncateBudget
		}
	}
}

func (s Source) validate() []string {
	var problems []string
	prefix := fmt.Sprintf("source %q", s.ID)

	if !sourceIDRe.MatchString(s.ID) {
		problems = append(problems, prefix+": id must match "+sourceIDRe.String())
	}
	if u, err := url.Parse(s.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, prefix+": url must be an absolute http(s) URL")
	}
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, prefix+": name is required")
	}

	switch s.Kind {
	case KindRSS:
		if s.Parser != ParserTolerant && s.Parser != ParserFeed {
			problems = append(problems, prefix+": parser must be tolerant or feed")
		}
	case KindJSONAPI:
	case KindHTML:
		if s.Selectors == nil || s.Selectors.Item == "" || s.Selectors.Title == "" {
			problems = append(problems, prefix+": html sources need selectors.item and selectors.title")
		}
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown kind %q", prefix, s.Kind))
	}

	if s.MaxItems < 0 || s.DescriptionLimit < 0 {
		problems = append(problems, prefix+": max_items and description_limit must not be negative")
	}
	if s.Layout != LayoutItems && s.Layout != LayoutEnvelope {
		problems = append(problems, prefix+": layout must be items or envelope")
	}
	if s.Window != nil && (s.Window.Field == "" || s.Window.Days <= 0) {
		problems = append(problems, prefix+": window needs a field and positive days")
	}
	for field, budget := range s.Truncate {
		if budget < 0 {
			problems = append(problems, fmt.Sprintf("%s: truncate budget for %q must be positive", prefix, field))
		}
	}
	return problems
}

// Validate 校验整份配置，所有问题汇总到一个 ConfigError 中
func (c *Config) Validate() error {
	var problems []string
	if len(c.Sources) == 0 {
		problems = append(problems, "no sources configured")
	}
	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	if c.RunTimeout < 0 || c.FetchTimeout < 0 || c.CacheTTL < 0 {
		problems = append(problems, "timeouts and cache_ttl must not be negative")
	}
	if c.Concurrency < 0 {
		problems = append(problems, "concurrency must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		problems = append(problems, s.validate()...)
		if _, ok := seen[s.ID]; ok {
			problems = append(problems, fmt.Sprintf("source %q: duplicate id", s.ID))
		}
		seen[s.ID] = struct{}{}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// ConfigError 配置本身有误，属于进程级致命错误
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}
