package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/HotBoard/internal/api"
	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/pipeline"
	"github.com/LJTian/HotBoard/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", os.Getenv("HOTBOARD_CONFIG"), "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// 配置了 Redis 时多实例共享快照缓存，否则使用进程内缓存
	var c cache.Store = cache.NewMemory()
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		defer r.Close()
		c = r
	}

	metrics := pipeline.NewMetrics(nil)
	o, store, err := pipeline.FromConfig(cfg, c, metrics)
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	s, err := scheduler.New(cfg.CronSpec, o, cfg.StartupDelay)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(cfg, store, c, s)
	apiServer.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback
	if cfg.WebRoot != "" {
		api.ServeSPA(r, cfg.WebRoot)
	}

	addr := ":" + cfg.AppPort
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		log.Printf("starting api server at %s ...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("shutting down ...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	s.Stop(ctx)
}
