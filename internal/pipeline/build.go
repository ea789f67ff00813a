package pipeline

import (
	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/storage"
)

// FromConfig 按配置组装快照目录、策略注册表和编排器，cmd/collect 与 cmd/api 共用
func FromConfig(cfg *config.Config, c cache.Store, m *Metrics) (*Orchestrator, *storage.Store, error) {
	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	loc := cfg.Location()
	reg := collector.DefaultRegistry(cfg.FetchTimeout, cfg.UserAgent, loc)
	o := New(cfg.Sources, reg, store, Options{
		Concurrency: cfg.Concurrency,
		RunTimeout:  cfg.RunTimeout,
		Cache:       c,
		CacheTTL:    cfg.CacheTTL,
		Location:    loc,
		Metrics:     m,
	})
	return o, store, nil
}
