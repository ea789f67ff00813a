package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hotboard:snapshot:"

// Redis 多实例共享的快照缓存（L2）。键带过期时间，过期后由 Redis 自动清理，
// 读出的 Entry 仍需调用方用 IsFresh 判断。
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis 连接 addr；ping 失败只记录警告，不阻止启动
func NewRedis(addr string, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return NewRedisWithClient(rdb, ttl)
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) key(id string) string {
	return redisKeyPrefix + id
}

func (r *Redis) Get(ctx context.Context, id string) (Entry, bool, error) {
	bs, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: get %s: %w", id, err)
	}

	var e Entry
	if err := json.Unmarshal(bs, &e); err != nil {
		// 格式不兼容的旧值当作未命中
		log.Printf("cache: drop undecodable entry %s: %v", id, err)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Put(ctx context.Context, id string, e Entry) error {
	bs, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", id, err)
	}
	if err := r.client.Set(ctx, r.key(id), bs, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", id, err)
	}
	return nil
}

// Clear 用 SCAN 找出本应用前缀下的键再删除，不使用 KEYS 以免阻塞 Redis
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
