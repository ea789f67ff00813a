// collect 执行一轮采集后退出，适合手动触发或交给外部 cron / CI 定时运行。
//
// Usage:
//
//	collect [--config=config.yaml] [--only=weibo,zhihu] [--timeout=60s] [--force]
//	collect sources [--config=config.yaml]
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var flags struct {
	configPath  string
	dataDir     string
	only        []string
	timeout     time.Duration
	concurrency int
	force       bool
}

var rootCmd = &cobra.Command{
	Use:          "collect",
	Short:        "Fetch every configured source once and write JSON snapshots",
	SilenceUsage: true,
	RunE:         runCollect,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE:  runSources,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file (optional, env HOTBOARD_* overrides it)")

	f := rootCmd.Flags()
	f.StringVar(&flags.dataDir, "data-dir", "", "snapshot output directory (overrides config)")
	f.StringSliceVar(&flags.only, "only", nil, "only run these source ids, comma separated")
	f.DurationVar(&flags.timeout, "timeout", 0, "run-level timeout (overrides config)")
	f.IntVar(&flags.concurrency, "concurrency", -1, "max sources in flight, 0 = unbounded (overrides config)")
	f.BoolVar(&flags.force, "force", false, "ignore cache freshness and refetch everything")

	rootCmd.AddCommand(sourcesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.timeout > 0 {
		cfg.RunTimeout = flags.timeout
	}
	if flags.concurrency >= 0 {
		cfg.Concurrency = flags.concurrency
	}
	return cfg, nil
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 单次运行只有配置了 Redis 时缓存才有意义（跨进程共享新鲜度）
	var c cache.Store
	if cfg.RedisAddr != "" {
		r := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		defer r.Close()
		c = r
	}

	o, store, err := pipeline.FromConfig(cfg, c, nil)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	log.Printf("collect: writing snapshots to %s", store.Dir())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := o.Run(ctx, pipeline.RunOptions{Only: trimIDs(flags.only), Force: flags.force})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum.Table())
	return nil
}

func runSources(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"id", "kind", "name", "url"})
	for _, s := range cfg.Sources {
		w.AppendRow(table.Row{s.ID, s.Kind, s.Name, s.URL})
	}
	fmt.Fprintln(cmd.OutOrStdout(), w.Render())
	return nil
}

func trimIDs(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
