package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/storage"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	snap := &storage.Snapshot{}
	ttl := 5 * time.Minute

	cases := []struct {
		name  string
		entry Entry
		ttl   time.Duration
		want  bool
	}{
		{"just stored", Entry{Snapshot: snap, StoredAt: now}, ttl, true},
		{"within ttl", Entry{Snapshot: snap, StoredAt: now.Add(-4 * time.Minute)}, ttl, true},
		{"exactly ttl", Entry{Snapshot: snap, StoredAt: now.Add(-ttl)}, ttl, false},
		{"expired", Entry{Snapshot: snap, StoredAt: now.Add(-time.Hour)}, ttl, false},
		{"from the future", Entry{Snapshot: snap, StoredAt: now.Add(time.Minute)}, ttl, false},
		{"no snapshot", Entry{StoredAt: now}, ttl, false},
		{"zero stored at", Entry{Snapshot: snap}, ttl, false},
		{"caching disabled", Entry{Snapshot: snap, StoredAt: now}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFresh(tc.entry, now, tc.ttl); got != tc.want {
				t.Fatalf("IsFresh = %v, want %v", got, tc.want)
			}
		})
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "weibo"); err != nil || ok {
		t.Fatalf("Get on empty store = %v, %v; want miss", ok, err)
	}

	snap := &storage.Snapshot{
		Source: storage.SourceMeta{Name: "微博热搜"},
		Items:  []collector.Item{{Title: "a", Link: "https://e/a"}},
		Total:  1,
	}
	stored := time.Now().UTC().Truncate(time.Second)
	for _, id := range []string{"weibo", "zhihu"} {
		if err := s.Put(ctx, id, Entry{Snapshot: snap, StoredAt: stored}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	e, ok, err := s.Get(ctx, "weibo")
	if err != nil || !ok {
		t.Fatalf("Get after Put = %v, %v", ok, err)
	}
	if e.Snapshot.Total != 1 || e.Snapshot.Source.Name != "微博热搜" || !e.StoredAt.Equal(stored) {
		t.Fatalf("entry = %+v", e)
	}

	if err := s.Delete(ctx, "weibo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "weibo"); ok {
		t.Fatalf("weibo should be gone after Delete")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "zhihu"); ok {
		t.Fatalf("zhihu should be gone after Clear")
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

// 需要真实 Redis：HOTBOARD_TEST_REDIS=127.0.0.1:6379 go test ./internal/cache
func TestRedis(t *testing.T) {
	addr := os.Getenv("HOTBOARD_TEST_REDIS")
	if addr == "" {
		t.Skip("HOTBOARD_TEST_REDIS not set")
	}
	r := NewRedis(addr, time.Minute)
	defer r.Close()
	exerciseStore(t, r)
}
