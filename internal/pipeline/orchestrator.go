package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/processor"
	"github.com/LJTian/HotBoard/internal/storage"
	"golang.org/x/sync/errgroup"
)

// SnapshotWriter 写快照；*storage.Store 实现了它
type SnapshotWriter interface {
	Write(ctx context.Context, id string, items []collector.Item, meta storage.SourceMeta) (*storage.Snapshot, error)
}

// Options 编排参数
type Options struct {
	// Concurrency 同时处理的数据源上限，<=0 表示不限制
	Concurrency int
	// RunTimeout 整轮采集的截止时间，到点后未完成的数据源记为超时失败，<=0 表示不限制
	RunTimeout time.Duration
	// Cache 可选；配置后写入成功的快照会放进缓存，新鲜的缓存会跳过本轮抓取
	Cache    cache.Store
	CacheTTL time.Duration
	Location *time.Location
	Metrics  *Metrics
}

// RunOptions 单次运行的参数
type RunOptions struct {
	// Only 只跑这些数据源，空表示全部
	Only []string
	// Force 忽略缓存新鲜度
	Force bool
}

// Orchestrator 并发执行每个数据源的 抓取 → 解析 → 后处理 → 写快照。
// 数据源之间互不影响：一个失败只记录到汇总里，不会中断其它数据源。
type Orchestrator struct {
	sources   []config.Source
	registry  *collector.Registry
	processor *processor.Processor
	writer    SnapshotWriter
	opts      Options
	now       func() time.Time
}

func New(sources []config.Source, registry *collector.Registry, writer SnapshotWriter, opts Options) *Orchestrator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Orchestrator{
		sources:   sources,
		registry:  registry,
		processor: processor.NewProcessor(opts.Location),
		writer:    writer,
		opts:      opts,
		now:       time.Now,
	}
}

// Sources 返回配置的数据源（只读）
func (o *Orchestrator) Sources() []config.Source {
	return o.sources
}

// Run 执行一轮采集。只有 Only 中出现未知 id 时返回 *config.ConfigError；
// 所有数据源都失败仍然算一次正常结束的运行。
func (o *Orchestrator) Run(ctx context.Context, ro RunOptions) (*Summary, error) {
	sources, err := o.selectSources(ro.Only)
	if err != nil {
		return nil, err
	}

	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	sum := newSummary(ids, o.now())
	log.Printf("pipeline: run %s started, %d sources", sum.RunID, len(sources))

	var g errgroup.Group
	if o.opts.Concurrency > 0 {
		g.SetLimit(o.opts.Concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			o.runSource(ctx, i, src, ro.Force, sum)
			return nil
		})
	}
	_ = g.Wait()

	sum.FinishedAt = o.now()
	o.opts.Metrics.observe(sum)
	log.Printf("pipeline: run %s done in %s, written=%d cached=%d failed=%d",
		sum.RunID, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond), sum.Written(), sum.Cached(), sum.Failed())
	return sum, nil
}

func (o *Orchestrator) selectSources(only []string) ([]config.Source, error) {
	if len(only) == 0 {
		return o.sources, nil
	}
	byID := make(map[string]config.Source, len(o.sources))
	for _, s := range o.sources {
		byID[s.ID] = s
	}

	var (
		out     []config.Source
		unknown []string
		seen    = make(map[string]struct{}, len(only))
	)
	for _, id := range only {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s, ok := byID[id]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("unknown source %q", id))
			continue
		}
		out = append(out, s)
	}
	if len(unknown) > 0 {
		return nil, &config.ConfigError{Problems: unknown}
	}
	return out, nil
}

// runSource 单个数据源的状态机。panic 也只影响当前数据源。
func (o *Orchestrator) runSource(ctx context.Context, i int, src config.Source, force bool, sum *Summary) {
	res := &sum.Results[i]
	started := o.now()
	defer func() {
		res.Duration = o.now().Sub(started)
	}()

	stage := StagePending
	fail := func(err error) {
		err = o.classify(err)
		log.Printf("pipeline: %s failed at %s: %v", src.ID, stage, err)
		sum.fail(i, stage, err)
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if !force && o.fresh(ctx, src.ID, res) {
		return
	}

	strategy, ok := o.registry.Lookup(src.Kind)
	if !ok {
		fail(fmt.Errorf("no strategy registered for kind %q", src.Kind))
		return
	}

	stage = StageFetching
	res.Stage = stage
	body, err := strategy.Fetcher.Fetch(ctx, src)
	if err != nil {
		fail(err)
		return
	}

	stage = StageNormalizing
	res.Stage = stage
	now := o.now().In(o.opts.Location)
	meta := storage.MetaFor(src)
	var items []collector.Item
	if en, ok := strategy.Normalizer.(collector.EnvelopeFieldsNormalizer); ok {
		items, meta.Extra, err = en.NormalizeEnvelope(body, src, now)
	} else {
		items, err = strategy.Normalizer.Normalize(body, src, now)
	}
	if err != nil {
		fail(err)
		return
	}

	stage = StagePostprocessing
	res.Stage = stage
	items = o.processor.Process(src, items, now)
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	stage = StageWriting
	res.Stage = stage
	snap, err := o.writer.Write(ctx, src.ID, items, meta)
	if err != nil {
		fail(err)
		return
	}

	res.Stage = StageWritten
	res.Items = snap.Total
	if o.opts.Cache != nil {
		entry := cache.Entry{Snapshot: snap, StoredAt: snap.Source.LastUpdate}
		if err := o.opts.Cache.Put(context.WithoutCancel(ctx), src.ID, entry); err != nil {
			log.Printf("pipeline: %s cache put: %v", src.ID, err)
		}
	}
	log.Printf("pipeline: %s written, items=%d", src.ID, snap.Total)
}

// fresh 缓存仍新鲜时把结果记为 cached，本轮跳过该数据源
func (o *Orchestrator) fresh(ctx context.Context, id string, res *Result) bool {
	if o.opts.Cache == nil || o.opts.CacheTTL <= 0 {
		return false
	}
	entry, ok, err := o.opts.Cache.Get(ctx, id)
	if err != nil {
		log.Printf("pipeline: %s cache get: %v", id, err)
		return false
	}
	if !ok || !cache.IsFresh(entry, o.now(), o.opts.CacheTTL) {
		return false
	}
	res.Stage = StageCached
	res.Items = entry.Snapshot.Total
	return true
}

// classify 整轮超时导致的 context 错误统一表示为超时
func (o *Orchestrator) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !collector.IsTimeout(err) {
		return &collector.TimeoutError{After: o.opts.RunTimeout, Err: err}
	}
	return err
}
