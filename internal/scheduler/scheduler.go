package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LJTian/HotBoard/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Runner 执行一轮采集，*pipeline.Orchestrator 实现了它
type Runner interface {
	Run(ctx context.Context, ro pipeline.RunOptions) (*pipeline.Summary, error)
}

// Scheduler 按 cron 表达式定时触发采集；失败的数据源在下一次触发时自然重试
type Scheduler struct {
	cron         *cron.Cron
	runner       Runner
	startupDelay time.Duration

	// runMu 保证定时任务与手动刷新不会同时跑
	runMu sync.Mutex

	mu   sync.RWMutex
	last *pipeline.Summary

	// startup 延迟首轮的定时器，startupWG 让 Stop 能等到它跑完
	startup   *time.Timer
	startupWG sync.WaitGroup
}

func New(spec string, runner Runner, startupDelay time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	s := &Scheduler{
		cron:         c,
		runner:       runner,
		startupDelay: startupDelay,
	}

	_, err := c.AddFunc(spec, s.runScheduled)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与用户首次打开页面的请求争抢资源，首屏加载更快
	if s.startupDelay >= 0 {
		s.startupWG.Add(1)
		s.startup = time.AfterFunc(s.startupDelay, func() {
			defer s.startupWG.Done()
			s.runScheduled()
		})
	}
}

// Stop 停止调度并等待正在执行的任务（含延迟首轮）结束，或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) {
	// 首轮还没触发时直接取消
	if s.startup != nil && s.startup.Stop() {
		s.startupWG.Done()
	}

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.startupWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("scheduler: stop timed out, a run is still in progress")
	}
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce(ctx context.Context, ro pipeline.RunOptions) (*pipeline.Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	sum, err := s.runner.Run(ctx, ro)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()
	return sum, nil
}

// LastSummary 最近一次完成的运行汇总，还没跑过时为 nil
func (s *Scheduler) LastSummary() *pipeline.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) runScheduled() {
	log.Println("scheduler: start collect job...")
	sum, err := s.RunOnce(context.Background(), pipeline.RunOptions{})
	if err != nil {
		log.Printf("scheduler: collect job error: %v", err)
		return
	}
	log.Printf("scheduler: collect job done: %s", sum)
}
