package collector

import (
	"sync"
	"time"

	"github.com/LJTian/HotBoard/internal/config"
)

// Strategy 一种数据源类型的抓取 + 解析组合
type Strategy struct {
	Fetcher    Fetcher
	Normalizer Normalizer
}

// Registry 数据源类型 -> 策略。新增数据源只需追加描述，不需要改编排代码；
// 新增类型则注册一个新的 Strategy。
type Registry struct {
	mu         sync.RWMutex
	strategies map[config.Kind]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[config.Kind]Strategy)}
}

func (r *Registry) Register(kind config.Kind, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[kind] = s
}

func (r *Registry) Lookup(kind config.Kind) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[kind]
	return s, ok
}

// DefaultRegistry 注册内置的三种策略：RSS、JSON API、HTML 页面
func DefaultRegistry(timeout time.Duration, userAgent string, loc *time.Location) *Registry {
	transport := NewTransport(timeout, userAgent)

	r := NewRegistry()
	r.Register(config.KindRSS, Strategy{
		Fetcher:    transport,
		Normalizer: &RSSNormalizer{Location: loc},
	})
	r.Register(config.KindJSONAPI, Strategy{
		Fetcher:    transport,
		Normalizer: &EnvelopeNormalizer{Location: loc},
	})
	r.Register(config.KindHTML, Strategy{
		Fetcher:    NewPageFetcher(timeout, userAgent),
		Normalizer: &HTMLNormalizer{},
	})
	return r
}
