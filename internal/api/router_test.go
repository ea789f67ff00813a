package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/HotBoard/internal/cache"
	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/LJTian/HotBoard/internal/pipeline"
	"github.com/LJTian/HotBoard/internal/processor"
	"github.com/LJTian/HotBoard/internal/storage"
	"github.com/gin-gonic/gin"
)

type fakeRefresher struct {
	calls int
	last  pipeline.RunOptions
	err   error
}

func (f *fakeRefresher) RunOnce(_ context.Context, ro pipeline.RunOptions) (*pipeline.Summary, error) {
	f.calls++
	f.last = ro
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Summary{RunID: "r1", Results: []pipeline.Result{{Source: "zhihu", Stage: pipeline.StageWritten}}}, nil
}

func (f *fakeRefresher) LastSummary() *pipeline.Summary { return nil }

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*gin.Engine, *storage.Store, *cache.Memory, *fakeRefresher, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := config.Defaults()
	cfg.Sources = []config.Source{
		{ID: "zhihu", Name: "知乎热榜", URL: "https://example.com/zhihu", Kind: config.KindJSONAPI},
		{ID: "ipo", Name: "新股日历", URL: "https://example.com/ipo", Kind: config.KindJSONAPI,
			Window: &config.Window{Field: "applyDate", Days: 7}},
	}
	cfg.Timezone = "UTC"

	mem := cache.NewMemory()
	ref := &fakeRefresher{}
	srv := NewServer(cfg, store, mem, ref)

	r := gin.New()
	srv.RegisterRoutes(r)
	return r, store, mem, ref, srv
}

func do(t *testing.T, r http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	r, _, _, _, _ := newTestServer(t)
	w, _ := do(t, r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetSnapshot(t *testing.T) {
	r, store, mem, _, _ := newTestServer(t)
	items := []collector.Item{{Title: "热点", Link: "https://example.com/1"}}
	if _, err := store.Write(context.Background(), "zhihu", items, storage.SourceMeta{Name: "知乎热榜"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	w, env := do(t, r, http.MethodGet, "/api/v1/snapshots/zhihu")
	if w.Code != http.StatusOK || env.Code != "ok" {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var snap struct {
		ID     string           `json:"id"`
		Items  []collector.Item `json:"items"`
		Total  int              `json:"total"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.ID != "zhihu" || snap.Total != 1 || snap.Items[0].Title != "热点" || snap.Source.Name != "知乎热榜" {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, hit, _ := mem.Get(context.Background(), "zhihu"); !hit {
		t.Fatalf("snapshot should be cached after first read")
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	r, _, _, _, _ := newTestServer(t)
	for _, path := range []string{"/api/v1/snapshots/weibo", "/api/v1/snapshots/Bad.ID"} {
		w, env := do(t, r, http.MethodGet, path)
		if w.Code != http.StatusNotFound || env.Code != "not_found" {
			t.Fatalf("%s: status = %d body = %s", path, w.Code, w.Body.String())
		}
	}
}

func TestGetSnapshotServesFreshCache(t *testing.T) {
	r, _, mem, _, srv := newTestServer(t)
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }

	cached := &storage.Snapshot{Items: []collector.Item{{Title: "cached", Link: "https://e/c"}}, Total: 1}
	_ = mem.Put(context.Background(), "zhihu", cache.Entry{Snapshot: cached, StoredAt: now.Add(-time.Minute)})

	w, env := do(t, r, http.MethodGet, "/api/v1/snapshots/zhihu")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var snap storage.Snapshot
	_ = json.Unmarshal(env.Data, &snap)
	if snap.Total != 1 || snap.Items[0].Title != "cached" {
		t.Fatalf("expected cached snapshot, got %+v", snap)
	}

	// 过期后回源读文件，文件不存在则 404
	srv.now = func() time.Time { return now.Add(10 * time.Minute) }
	if w, _ := do(t, r, http.MethodGet, "/api/v1/snapshots/zhihu"); w.Code != http.StatusNotFound {
		t.Fatalf("stale cache should fall through to disk, status = %d", w.Code)
	}
}

type countingFetcher struct {
	body  string
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(context.Context, config.Source) ([]byte, error) {
	f.calls.Add(1)
	return []byte(f.body), nil
}

// API 与编排器共用一份缓存（cmd/api 的接法）：读一次旧快照不应让下一轮采集跳过该数据源
func TestSnapshotReadDoesNotSkipNextRun(t *testing.T) {
	r, store, mem, _, srv := newTestServer(t)
	ctx := context.Background()

	old := `{"source":{"name":"知乎热榜","lastUpdate":"2020-01-01T00:00:00Z"},"items":[{"title":"old","link":"https://example.com/old"}],"total":1}`
	if err := os.WriteFile(filepath.Join(store.Dir(), "zhihu.json"), []byte(old), 0o644); err != nil {
		t.Fatalf("write old snapshot: %v", err)
	}

	if w, _ := do(t, r, http.MethodGet, "/api/v1/snapshots/zhihu"); w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if _, hit, _ := mem.Get(ctx, "zhihu"); hit {
		t.Fatalf("a snapshot written in 2020 should not be cached as fresh")
	}

	f := &countingFetcher{body: `{"code":200,"data":[{"title":"new","link":"https://example.com/new"}]}`}
	reg := collector.NewRegistry()
	reg.Register(config.KindJSONAPI, collector.Strategy{Fetcher: f, Normalizer: &collector.EnvelopeNormalizer{}})
	o := pipeline.New(srv.sources, reg, store, pipeline.Options{Cache: mem, CacheTTL: 5 * time.Minute})

	sum, err := o.Run(ctx, pipeline.RunOptions{Only: []string{"zhihu"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res, _ := sum.Result("zhihu")
	if f.calls.Load() != 1 || res.Stage != pipeline.StageWritten {
		t.Fatalf("fetch calls = %d, stage = %s; want 1, written", f.calls.Load(), res.Stage)
	}

	_, env := do(t, r, http.MethodGet, "/api/v1/snapshots/zhihu")
	var snap storage.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Total != 1 || snap.Items[0].Title != "new" {
		t.Fatalf("snapshot after run = %+v, want the new item", snap)
	}
}

func TestGetSnapshotRelabelsWindow(t *testing.T) {
	r, store, _, _, srv := newTestServer(t)
	items := []collector.Item{{
		Title: "某新股",
		Link:  "https://example.com/ipo/1",
		Extra: map[string]any{"applyDate": "2024-06-16", processor.ExtraDateLabel: string(processor.LabelTomorrow)},
	}}
	if _, err := store.Write(context.Background(), "ipo", items, storage.SourceMeta{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC) }

	_, env := do(t, r, http.MethodGet, "/api/v1/snapshots/ipo")
	var snap struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := snap.Items[0][processor.ExtraDateLabel]; got != string(processor.LabelToday) {
		t.Fatalf("dateLabel = %v, want today", got)
	}
}

func TestListSnapshotsAndSources(t *testing.T) {
	r, store, _, _, _ := newTestServer(t)
	for _, id := range []string{"zhihu", "ipo"} {
		if _, err := store.Write(context.Background(), id, nil, storage.SourceMeta{}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	_, env := do(t, r, http.MethodGet, "/api/v1/snapshots")
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ID != "ipo" || list[1].ID != "zhihu" {
		t.Fatalf("list = %+v", list)
	}

	_, env = do(t, r, http.MethodGet, "/api/v1/sources")
	var sources []config.Source
	if err := json.Unmarshal(env.Data, &sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sources) != 2 || sources[0].ID != "zhihu" {
		t.Fatalf("sources = %+v", sources)
	}
}

func TestRefresh(t *testing.T) {
	r, _, mem, ref, _ := newTestServer(t)
	_ = mem.Put(context.Background(), "zhihu", cache.Entry{Snapshot: &storage.Snapshot{}, StoredAt: time.Now()})

	w, env := do(t, r, http.MethodPost, "/api/v1/refresh?only=zhihu")
	if w.Code != http.StatusOK || env.Code != "ok" {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if ref.calls != 1 || !ref.last.Force || len(ref.last.Only) != 1 || ref.last.Only[0] != "zhihu" {
		t.Fatalf("refresh call = %+v", ref.last)
	}
	if _, hit, _ := mem.Get(context.Background(), "zhihu"); hit {
		t.Fatalf("refresh should invalidate the cache entry")
	}

	var sum pipeline.Summary
	if err := json.Unmarshal(env.Data, &sum); err != nil || sum.RunID != "r1" {
		t.Fatalf("summary = %+v, %v", sum.RunID, err)
	}
}

func TestRefreshUnknownSource(t *testing.T) {
	r, _, _, ref, _ := newTestServer(t)
	ref.err = &config.ConfigError{Problems: []string{`unknown source "nope"`}}

	w, env := do(t, r, http.MethodPost, "/api/v1/refresh?only=nope")
	if w.Code != http.StatusBadRequest || env.Code != "bad_request" {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth("admin", "secret"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/sources", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w, _ := do(t, r, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Fatalf("/health should skip auth, status = %d", w.Code)
	}
	w, _ := do(t, r, http.MethodGet, "/api/v1/sources")
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("status = %d, want 401 with challenge", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil)
	req.SetBasicAuth("admin", "secret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with credentials = %d", w.Code)
	}
}
