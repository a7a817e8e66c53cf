package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

const (
	buildMarker        = "H:CustomNode:Build"
	buildRecycleMarker = "H:CustomNode:BuildRecycle"
)

// 组件名优先取事件名中的方括号 token，如 "H:CustomNode:Build [ListItem]"
var componentTokenRe = regexp.MustCompile(`\[([^\]]+)\]`)

// ReuseAnalyzer 统计每个逻辑组件的 build 与 build-recycle 事件次数，
// 以 build 次数最多的组件为代表，输出复用比例。只依赖事件库。
type ReuseAnalyzer struct {
	cfg Config
}

// NewReuseAnalyzer 构造组件复用检测器。
func NewReuseAnalyzer(cfg Config) (Analyzer, error) {
	return &ReuseAnalyzer{cfg: cfg}, nil
}

func (a *ReuseAnalyzer) Name() string     { return "reuse" }
func (a *ReuseAnalyzer) TreePath() string { return "trace/componentReuse" }

// ComponentName 从事件名中提取逻辑组件名：优先方括号 token，
// 否则回退到按冒号切分的最后一个 token。
func ComponentName(eventName string) string {
	if m := componentTokenRe.FindStringSubmatch(eventName); m != nil {
		return m[1]
	}
	parts := strings.Split(strings.TrimSpace(eventName), ":")
	return parts[len(parts)-1]
}

// ReuseStats 是组件复用分析的纯计算结果。
type ReuseStats struct {
	Builds        map[string]int64
	Recycled      map[string]int64
	Component     string // build 次数最多的代表组件
	BuildCount    int64
	RecycledCount int64
	ReuseRatio    float64
}

// AnalyzeReuse 在 build / build-recycle 事件序列上计算复用统计。
// recycle 事件名同样以 buildMarker 开头，按更长的前缀先行区分。
func AnalyzeReuse(events []store.Event) ReuseStats {
	stats := ReuseStats{
		Builds:   make(map[string]int64),
		Recycled: make(map[string]int64),
	}
	for _, e := range events {
		name := ComponentName(e.Name)
		if strings.HasPrefix(e.Name, buildRecycleMarker) {
			stats.Recycled[name]++
		} else {
			stats.Builds[name]++
		}
	}
	for name, n := range stats.Builds {
		if n > stats.BuildCount || (n == stats.BuildCount && name < stats.Component) {
			stats.Component = name
			stats.BuildCount = n
		}
	}
	if stats.Component != "" {
		stats.RecycledCount = stats.Recycled[stats.Component]
		total := stats.BuildCount + stats.RecycledCount
		if total > 0 {
			stats.ReuseRatio = float64(stats.RecycledCount) / float64(total)
		}
	}
	return stats
}

func (a *ReuseAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	if step.Trace == nil {
		return nil, nil
	}
	events, err := step.Trace.EventsLike(buildMarker, step.AppPIDs)
	if err != nil {
		return nil, fmt.Errorf("query build events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	stats := AnalyzeReuse(events)
	perComponent := make(Result, len(stats.Builds))
	for name, builds := range stats.Builds {
		perComponent[name] = Result{
			"builds":   builds,
			"recycled": stats.Recycled[name],
		}
	}
	return Result{
		"component":     stats.Component,
		"buildCount":    stats.BuildCount,
		"recycledCount": stats.RecycledCount,
		"reuseRatio":    stats.ReuseRatio,
		"components":    perComponent,
	}, nil
}
