package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Stage 单个数据源在一轮采集中的状态：
// pending → fetching → normalizing → postprocessing → writing → written，
// 任一阶段出错进入 failed；缓存仍新鲜时直接 cached。
type Stage string

const (
	StagePending        Stage = "pending"
	StageFetching       Stage = "fetching"
	StageNormalizing    Stage = "normalizing"
	StagePostprocessing Stage = "postprocessing"
	StageWriting        Stage = "writing"
	StageWritten        Stage = "written"
	StageFailed         Stage = "failed"
	StageCached         Stage = "cached"
)

// Result 一个数据源的最终结果
type Result struct {
	Source   string        `json:"source"`
	Stage    Stage         `json:"stage"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	// FailedAt 失败时所处的阶段
	FailedAt Stage  `json:"failedAt,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failure 失败记录：数据源、阶段、错误信息
type Failure struct {
	Source  string `json:"source"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Summary 一轮采集的汇总。Results 按数据源配置顺序排列，
// 每个 goroutine 只写自己的下标；Failures 并发追加，由 mu 保护。
type Summary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Results    []Result  `json:"results"`
	Failures   []Failure `json:"failures"`

	mu sync.Mutex
}

func newSummary(ids []string, now time.Time) *Summary {
	s := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Results:   make([]Result, len(ids)),
		Failures:  []Failure{},
	}
	for i, id := range ids {
		s.Results[i] = Result{Source: id, Stage: StagePending}
	}
	return s
}

func (s *Summary) fail(i int, stage Stage, err error) {
	r := &s.Results[i]
	r.Stage = StageFailed
	r.FailedAt = stage
	r.Error = err.Error()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures = append(s.Failures, Failure{Source: r.Source, Stage: stage, Message: err.Error()})
}

// Written 本轮实际写出快照的数据源数量
func (s *Summary) Written() int {
	return s.count(StageWritten)
}

func (s *Summary) Cached() int {
	return s.count(StageCached)
}

func (s *Summary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Failures)
}

func (s *Summary) count(stage Stage) int {
	n := 0
	for _, r := range s.Results {
		if r.Stage == stage {
			n++
		}
	}
	return n
}

// Result 按数据源 id 查找结果
func (s *Summary) Result(id string) (Result, bool) {
	for _, r := range s.Results {
		if r.Source == id {
			return r, true
		}
	}
	return Result{}, false
}

// Table 渲染给命令行看的汇总表
func (s *Summary) Table() string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.SetTitle(fmt.Sprintf("run %s", s.RunID))
	w.AppendHeader(table.Row{"source", "state", "items", "duration", "error"})
	for _, r := range s.Results {
		state := string(r.Stage)
		if r.Stage == StageFailed {
			state = fmt.Sprintf("failed@%s", r.FailedAt)
		}
		w.AppendRow(table.Row{r.Source, state, r.Items, r.Duration.Round(time.Millisecond), r.Error})
	}
	w.AppendFooter(table.Row{"total", fmt.Sprintf("%d written / %d cached / %d failed", s.Written(), s.Cached(), s.Failed()), "", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond), ""})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, WidthMax: 60},
	})
	return w.Render()
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d written, %d cached, %d failed", s.RunID, s.Written(), s.Cached(), s.Failed())
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "; %s@%s: %s", f.Source, f.Stage, f.Message)
	}
	return b.String()
}
