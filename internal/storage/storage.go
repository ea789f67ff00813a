package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/HotBoard/internal/collector"
	"github.com/LJTian/HotBoard/internal/config"
	"github.com/dustin/go-humanize"
)

// ErrNotFound 该数据源还没有快照文件
var ErrNotFound = errors.New("snapshot not found")

const (
	envelopeCode    = 200
	envelopeMessage = "获取成功"
	snapshotExt     = ".json"
)

// SourceMeta 快照头部的数据源信息
type SourceMeta struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	LastUpdate  time.Time `json:"lastUpdate"`
	// Extra 上游信封中列表以外的字段，如 60s 的 date、day_of_week
	Extra map[string]any `json:"extra,omitempty"`
	// Layout 只影响写出的文件形状，不进入 JSON
	Layout string `json:"-"`
}

// MetaFor 由数据源描述生成快照头部
func MetaFor(src config.Source) SourceMeta {
	return SourceMeta{
		Name:        src.Name,
		Description: src.Description,
		URL:         src.URL,
		Layout:      src.Layout,
	}
}

// Snapshot 一个数据源某次成功采集的完整结果，Total 恒等于 len(Items)
type Snapshot struct {
	Source SourceMeta       `json:"source"`
	Items  []collector.Item `json:"items"`
	Total  int              `json:"total"`
}

// envelopeFile 旧版前端直接读取的 {code,message,data} 形状
type envelopeFile struct {
	Source  SourceMeta       `json:"source"`
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Data    []collector.Item `json:"data"`
	Total   int              `json:"total"`
}

// anyFile 读取时同时兼容 items 与 data 两种布局
type anyFile struct {
	Source SourceMeta       `json:"source"`
	Items  []collector.Item `json:"items"`
	Data   []collector.Item `json:"data"`
	Total  *int             `json:"total"`
}

// Store 快照目录：每个数据源一个 <id>.json，每次成功采集整体覆盖
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage: empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// Write 原子地覆盖 <dir>/<id>.json：先写同目录临时文件并 fsync，再 rename。
// lastUpdate 取写入时刻而不是抓取开始时刻；空列表同样写出。
// ctx 已取消时不写，保证被中止的数据源不会留下半截结果。
func (s *Store) Write(ctx context.Context, id string, items []collector.Item, meta SourceMeta) (*Snapshot, error) {
	if !config.ValidID(id) {
		return nil, fmt.Errorf("storage: invalid source id %q", id)
	}
	if items == nil {
		items = []collector.Item{}
	}

	meta.LastUpdate = s.now().UTC().Truncate(time.Second)
	snap := &Snapshot{Source: meta, Items: items, Total: len(items)}

	var doc any = snap
	if meta.Layout == config.LayoutEnvelope {
		doc = envelopeFile{
			Source:  meta,
			Code:    envelopeCode,
			Message: envelopeMessage,
			Data:    items,
			Total:   len(items),
		}
	}
	bs, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: encode %s: %w", id, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeAtomic(s.dir, s.path(id), bs); err != nil {
		return nil, fmt.Errorf("storage: write %s: %w", id, err)
	}

	log.Printf("storage: wrote %s (%d items, %s)", id, snap.Total, humanize.Bytes(uint64(len(bs))))
	return snap, nil
}

func writeAtomic(dir, dst string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Read 读取一个数据源的快照，兼容 items / data 两种布局
func (s *Store) Read(id string) (*Snapshot, error) {
	if !config.ValidID(id) {
		return nil, ErrNotFound
	}
	bs, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return Decode(bs)
}

// Decode 解析快照字节；total 缺失时按条目数补齐
func Decode(bs []byte) (*Snapshot, error) {
	var f anyFile
	if err := json.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot: %w", err)
	}

	items := f.Items
	if items == nil {
		items = f.Data
	}
	if items == nil {
		items = []collector.Item{}
	}
	snap := &Snapshot{Source: f.Source, Items: items, Total: len(items)}
	if f.Total != nil && *f.Total != len(items) {
		log.Printf("storage: snapshot %q total=%d but has %d items", f.Source.Name, *f.Total, len(items))
	}
	return snap, nil
}

// List 返回目录中已有快照的数据源 id（按字母序）
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", s.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id := strings.TrimSuffix(name, snapshotExt)
		if config.ValidID(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
