package cache

import (
	"context"
	"time"

	"github.com/LJTian/HotBoard/internal/storage"
)

// Entry 一个数据源快照的缓存值；缓存本身不带全局状态，新鲜度由 IsFresh 显式判断
type Entry struct {
	Snapshot *storage.Snapshot `json:"snapshot"`
	StoredAt time.Time         `json:"storedAt"`
}

// IsFresh entry 存入时间距 now 不足 ttl 即视为新鲜。ttl<=0 表示不缓存。
func IsFresh(e Entry, now time.Time, ttl time.Duration) bool {
	if e.Snapshot == nil || e.StoredAt.IsZero() || ttl <= 0 {
		return false
	}
	age := now.Sub(e.StoredAt)
	return age >= 0 && age < ttl
}

// Store 快照缓存。Get 未命中时返回 ok=false 且 err=nil。
type Store interface {
	Get(ctx context.Context, id string) (Entry, bool, error)
	Put(ctx context.Context, id string, e Entry) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
