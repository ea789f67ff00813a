package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix 环境变量前缀，例如 HOTBOARD_APP_PORT -> app_port
const envPrefix = "HOTBOARD_"

const (
	DefaultAppPort      = "9000"
	DefaultDataDir      = "data"
	DefaultCronSpec     = "*/30 * * * *"
	DefaultRunTimeout   = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultCacheTTL     = 5 * time.Minute
	DefaultUserAgent    = "Mozilla/5.0 (compatible; HotBoard/1.0)"
	DefaultTimezone     = "Asia/Shanghai"
	DefaultStartupDelay = 15 * time.Second
)

type Config struct {
	AppPort string `koanf:"app_port"`
	// DataDir 快照 JSON 的输出目录，每个数据源一个 <id>.json
	DataDir  string `koanf:"data_dir"`
	CronSpec string `koanf:"cron_spec"`

	// RunTimeout 单轮采集的整体超时；FetchTimeout 单次 HTTP 请求超时
	RunTimeout   time.Duration `koanf:"run_timeout"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
	// Concurrency 同时处理的数据源数量，0 表示不限制
	Concurrency  int           `koanf:"concurrency"`
	StartupDelay time.Duration `koanf:"startup_delay"`

	CacheTTL  time.Duration `koanf:"cache_ttl"`
	RedisAddr string        `koanf:"redis_addr"`

	UserAgent string `koanf:"user_agent"`
	Timezone  string `koanf:"timezone"`

	BasicAuthUser string `koanf:"basic_auth_user"`
	BasicAuthPass string `koanf:"basic_auth_pass"`
	WebRoot       string `koanf:"web_root"`

	Sources []Source `koanf:"sources"`
}

// Defaults 返回全部使用默认值的配置（不含数据源列表）
func Defaults() *Config {
	return &Config{
		AppPort:      DefaultAppPort,
		DataDir:      DefaultDataDir,
		CronSpec:     DefaultCronSpec,
		RunTimeout:   DefaultRunTimeout,
		FetchTimeout: DefaultFetchTimeout,
		StartupDelay: DefaultStartupDelay,
		CacheTTL:     DefaultCacheTTL,
		UserAgent:    DefaultUserAgent,
		Timezone:     DefaultTimezone,
	}
}

// Load 按 默认值 < YAML 文件 < 环境变量 的顺序加载配置。
// path 为空时跳过文件；文件中未配置 sources 时使用内置数据源列表。
// 返回的错误均为 *ConfigError，调用方应在开始采集前直接退出。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &ConfigError{Problems: []string{fmt.Sprintf("read %s: %v", path, err)}}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("read env: %v", err)}}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("decode config: %v", err)}}
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	for i := range cfg.Sources {
		cfg.Sources[i].applyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("config loaded: port=%s cron=%s sources=%d data=%s", cfg.AppPort, cfg.CronSpec, len(cfg.Sources), cfg.DataDir)
	return cfg, nil
}

// Location 返回用于日期分桶的时区，加载失败时回退到固定 UTC+8
func (c *Config) Location() *time.Location {
	tz := c.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// Source 按 id 查找数据源
func (c *Config) Source(id string) (Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
