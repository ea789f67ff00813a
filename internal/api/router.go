package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/pipeline"
	"github.com/LJTian/HotBoard/internal/processor"
	"github.com/LJTian/HotBoard/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresher 手动触发采集，*scheduler.Scheduler 实现了它
type Refresher interface {
	RunOnce(ctx context.Context, ro pipeline.RunOptions) (*pipeline.Summary, error)
	LastSummary() *pipeline.Summary
}

type Server struct {
	sources   []config.Source
	store     *storage.Store
	cache     cache.Store
	ttl       time.Duration
	loc       *time.Location
	refresher Refresher
	now       func() time.Time
}

// NewServer c 为 nil 时不缓存，每次都读快照文件
func NewServer(cfg *config.Config, store *storage.Store, c cache.Store, refresher Refresher) *Server {
	return &Server{
		sources:   cfg.Sources,
		store:     store,
		cache:     c,
		ttl:       cfg.CacheTTL,
		loc:       cfg.Location(),
		refresher: refresher,
		now:       config.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.GET("/snapshots", s.listSnapshots)
		v1.GET("/snapshots/:id", s.getSnapshot)
		v1.POST("/refresh", s.refresh)
		v1.GET("/runs/last", s.lastRun)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) listSources(c *gin.Context) {
	ok(c, s.sources)
}

type snapshotView struct {
	ID string `json:"id"`
	*storage.Snapshot
}

func (s *Server) listSnapshots(c *gin.Context) {
	ids, err := s.store.List()
	if err != nil {
		log.Printf("api: list snapshots: %v", err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	out := make([]snapshotView, 0, len(ids))
	for _, id := range ids {
		snap, err := s.snapshot(c.Request.Context(), id)
		if err != nil {
			// 单个文件损坏不影响其它数据源展示
			log.Printf("api: read snapshot %s: %v", id, err)
			continue
		}
		out = append(out, snapshotView{ID: id, Snapshot: snap})
	}
	ok(c, out)
}

func (s *Server) getSnapshot(c *gin.Context) {
	id := c.Param("id")
	snap, err := s.snapshot(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "not_found", "snapshot not found")
		return
	}
	if err != nil {
		log.Printf("api: read snapshot %s: %v", id, err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, snapshotView{ID: id, Snapshot: snap})
}

// snapshot 先查缓存，过期或未命中再读文件，快照本身仍新鲜时回写缓存；
// 带日期窗口的数据源按当前时间重新计算 dateLabel（快照可能是昨天写的）
func (s *Server) snapshot(ctx context.Context, id string) (*storage.Snapshot, error) {
	now := s.now().In(s.loc)

	var snap *storage.Snapshot
	if s.cache != nil {
		if e, hit, err := s.cache.Get(ctx, id); err != nil {
			log.Printf("api: cache get %s: %v", id, err)
		} else if hit && cache.IsFresh(e, now, s.ttl) {
			snap = e.Snapshot
		}
	}

	if snap == nil {
		var err error
		snap, err = s.store.Read(id)
		if err != nil {
			return nil, err
		}
		// StoredAt 取快照写入时刻而非读取时刻，编排层共用这份缓存判断是否跳过抓取
		entry := cache.Entry{Snapshot: snap, StoredAt: snap.Source.LastUpdate}
		if s.cache != nil && cache.IsFresh(entry, now, s.ttl) {
			if err := s.cache.Put(ctx, id, entry); err != nil {
				log.Printf("api: cache put %s: %v", id, err)
			}
		}
	}

	if src, known := s.source(id); known && src.Window != nil {
		relabeled := *snap
		relabeled.Items = processor.Relabel(snap.Items, src.Window.Field, now)
		snap = &relabeled
	}
	return snap, nil
}

func (s *Server) source(id string) (config.Source, bool) {
	for _, src := range s.sources {
		if src.ID == id {
			return src, true
		}
	}
	return config.Source{}, false
}

// refresh 对应页面上的刷新按钮：清空缓存后立即采集。
// 查询参数：only=a,b 只刷新部分数据源。
func (s *Server) refresh(c *gin.Context) {
	if s.refresher == nil {
		fail(c, http.StatusServiceUnavailable, "unavailable", "refresh is not enabled")
		return
	}

	var only []string
	if raw := strings.TrimSpace(c.Query("only")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				only = append(only, id)
			}
		}
	}
	force := true
	if raw := c.Query("force"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			force = v
		}
	}

	if force && s.cache != nil {
		if err := s.clearCache(c.Request.Context(), only); err != nil {
			log.Printf("api: clear cache: %v", err)
		}
	}

	// 客户端断开不应中断已经开始的采集，整轮超时由编排层控制
	sum, err := s.refresher.RunOnce(context.WithoutCancel(c.Request.Context()), pipeline.RunOptions{Only: only, Force: force})
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		fail(c, http.StatusBadRequest, "bad_request", ce.Error())
		return
	}
	if err != nil {
		log.Printf("api: refresh: %v", err)
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, sum)
}

func (s *Server) clearCache(ctx context.Context, only []string) error {
	if len(only) == 0 {
		return s.cache.Clear(ctx)
	}
	for _, id := range only {
		if err := s.cache.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) lastRun(c *gin.Context) {
	if s.refresher == nil {
		ok(c, nil)
		return
	}
	ok(c, s.refresher.LastSummary())
}
