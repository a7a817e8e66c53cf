package analyzer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

var stepDirRe = regexp.MustCompile(`^step(\d+)$`)

// SceneReport 是一次场景分析的汇总输出。
type SceneReport struct {
	// PerAnalyzer: 分析器名 → 步骤标签 → 结果 (可能含 "error" 键)
	PerAnalyzer map[string]map[string]Result
	// Tree 是按各分析器 TreePath 挂载、经 Sanitize 的合并结果树
	Tree map[string]any
	// Succeeded / Failed 统计 (analyzer, step) 对
	Succeeded int
	Failed    int
}

// stepEntry 是调度器发现的一个步骤目录。
type stepEntry struct {
	id    int
	label string
}

// RunScene 对场景目录执行完整分析：枚举步骤 → 确保两类转换库就绪 →
// 在受限工作池上并行处理步骤 (每步骤内分析器串行) → 聚合并写出报告。
// 只有整个场景没有任何可用步骤数据时才返回错误。
func RunScene(ctx context.Context, cfg Config) (*SceneReport, error) {
	return RunSceneWith(ctx, cfg, DefaultRegistry())
}

// RunSceneWith 同 RunScene，但使用调用方给定的注册表。
func RunSceneWith(ctx context.Context, cfg Config, registry []Constructor) (*SceneReport, error) {
	cfg = cfg.withDefaults()
	analyzers := BuildAnalyzers(cfg, registry)
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("no analyzers resolved for scene '%s'", cfg.SceneDir)
	}

	steps, err := discoverSteps(cfg.SceneDir)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no step directories under '%s'", filepath.Join(cfg.SceneDir, HtraceDir))
	}
	log.Printf("Scene '%s': %d steps, %d analyzers, %d workers", cfg.SceneDir, len(steps), len(analyzers), cfg.Workers)

	elapsed := sceneElapsedSeconds(ctx, cfg, steps)

	report := &SceneReport{PerAnalyzer: make(map[string]map[string]Result, len(analyzers))}
	for _, a := range analyzers {
		report.PerAnalyzer[a.Name()] = make(map[string]Result, len(steps))
	}

	// 唯一的跨任务共享可变状态；插入必须持锁
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, st := range steps {
		g.Go(func() error {
			results := runStep(gctx, cfg, analyzers, st, elapsed)
			mu.Lock()
			defer mu.Unlock()
			for name, r := range results {
				report.PerAnalyzer[name][st.label] = r
				if _, failed := r["error"]; failed {
					report.Failed++
				} else {
					report.Succeeded++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.Succeeded == 0 && report.Failed == 0 {
		return nil, fmt.Errorf("no usable step data in scene '%s'", cfg.SceneDir)
	}
	log.Printf("Scene '%s': %d (analyzer, step) pairs succeeded, %d failed", cfg.SceneDir, report.Succeeded, report.Failed)

	report.Tree = BuildTree(analyzers, report.PerAnalyzer)
	if err := WriteReports(cfg, analyzers, report.PerAnalyzer); err != nil {
		return nil, err
	}
	return report, nil
}

// discoverSteps 枚举 htrace/ 下的 step<N> 子目录，按序号升序返回。
func discoverSteps(sceneDir string) ([]stepEntry, error) {
	root := filepath.Join(sceneDir, HtraceDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list step directories '%s': %w", root, err)
	}
	var steps []stepEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := stepDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		steps = append(steps, stepEntry{id: id, label: e.Name()})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].id < steps[j].id })
	return steps, nil
}

// sceneElapsedSeconds 返回整个场景的持续秒数：各步骤 trace_range 并集
// 的跨度；没有任何可用区间时退回到步骤抓取目录修改时间的跨度。
// GC 次数规则依赖这个场景级时长，不是单步时长。
func sceneElapsedSeconds(ctx context.Context, cfg Config, steps []stepEntry) float64 {
	var minStart, maxEnd int64
	haveRange := false
	for _, st := range steps {
		dir := filepath.Join(cfg.SceneDir, HtraceDir, st.label)
		if !store.EnsureStore(ctx, cfg.ConverterPath, filepath.Join(dir, "trace.htrace"), filepath.Join(dir, "trace.db")) {
			continue
		}
		ts, err := store.OpenTrace(filepath.Join(dir, "trace.db"))
		if err != nil {
			continue
		}
		start, end, err := ts.Range()
		ts.Close()
		if err != nil || end <= start {
			continue
		}
		if !haveRange || start < minStart {
			minStart = start
		}
		if !haveRange || end > maxEnd {
			maxEnd = end
		}
		haveRange = true
	}
	if haveRange {
		return float64(maxEnd-minStart) / 1e9
	}

	log.Printf("Warning: no usable trace range in scene '%s', falling back to capture mtimes", cfg.SceneDir)
	var minMod, maxMod time.Time
	for _, st := range steps {
		info, err := os.Stat(filepath.Join(cfg.SceneDir, HtraceDir, st.label))
		if err != nil {
			continue
		}
		m := info.ModTime()
		if minMod.IsZero() || m.Before(minMod) {
			minMod = m
		}
		if m.After(maxMod) {
			maxMod = m
		}
	}
	if minMod.IsZero() {
		return 0
	}
	return maxMod.Sub(minMod).Seconds()
}

// runStep 处理一个步骤：解析两类库、打开只读句柄、串行跑完全部分析器。
// 任何单个分析器的失败被转换为 {"error": msg}，不影响同级分析器。
func runStep(ctx context.Context, cfg Config, analyzers []Analyzer, st stepEntry, elapsed float64) map[string]Result {
	traceDir := filepath.Join(cfg.SceneDir, HtraceDir, st.label)
	perfDir := filepath.Join(cfg.SceneDir, HiperfDir, st.label)

	step := StepData{
		ID:             st.id,
		Label:          st.label,
		SceneDir:       cfg.SceneDir,
		ElapsedSeconds: elapsed,
	}

	if store.EnsureStore(ctx, cfg.ConverterPath, filepath.Join(traceDir, "trace.htrace"), filepath.Join(traceDir, "trace.db")) {
		ts, err := store.OpenTrace(filepath.Join(traceDir, "trace.db"))
		if err != nil {
			log.Printf("Warning: step %s: %v", st.label, err)
		} else {
			step.Trace = ts
			defer ts.Close()
		}
	}
	if store.EnsureStore(ctx, cfg.ConverterPath, filepath.Join(perfDir, "perf.data"), filepath.Join(perfDir, "perf.db")) {
		ps, err := store.OpenPerf(filepath.Join(perfDir, "perf.db"))
		if err != nil {
			log.Printf("Warning: step %s: %v", st.label, err)
		} else {
			step.Perf = ps
			defer ps.Close()
		}
	}

	if step.Trace != nil {
		pids, err := step.Trace.AppProcessIDs(cfg.AppName)
		if err != nil {
			log.Printf("Warning: step %s: resolve app pids: %v", st.label, err)
		}
		step.AppPIDs = pids
	}

	results := make(map[string]Result, len(analyzers))
	for _, a := range analyzers {
		r, err := a.Analyze(ctx, step)
		switch {
		case err != nil:
			log.Printf("Analyzer '%s' failed on step %s: %v", a.Name(), st.label, err)
			results[a.Name()] = errorResult(err.Error())
		case r == nil:
			log.Printf("Analyzer '%s' absent on step %s", a.Name(), st.label)
		default:
			results[a.Name()] = r
		}
	}
	return results
}
