package analyzer

import (
	"context"
	"fmt"
	"log"
)

// gcPhaseMarkers 是计入 GC 调用次数的阶段事件名集合。
var gcPhaseMarkers = []string{
	"H:FullGC::RunPhases",
	"H:SharedGC::RunPhases",
	"H:PartialGC::RunPhases",
	"H:ConcurrentMarking",
	"H:ConcurrentSweep",
}

// gcThreadName 是应用内 GC 工作线程的线程名特征。
const gcThreadName = "OS_GC_Thread"

// gcLoadThreshold 是 GC 线程负载占比的异常阈值。
const gcLoadThreshold = 0.15

// GCAnalyzer 统计应用线程上的 GC 阶段事件次数，并计算 GC 线程负载
// 占应用总负载的比例。事件库缺失时返回 absent；采样库缺失时只输出
// 次数相关字段，负载占比按 0 处理。
type GCAnalyzer struct {
	cfg Config
}

// NewGCAnalyzer 构造 GC 过载检测器。
func NewGCAnalyzer(cfg Config) (Analyzer, error) {
	return &GCAnalyzer{cfg: cfg}, nil
}

func (a *GCAnalyzer) Name() string     { return "gc" }
func (a *GCAnalyzer) TreePath() string { return "trace/gc" }

// GCStatus 按固定规则判定 GC 是否过载：
// 负载占比 > 0.15，或调用次数 > max(10, 经过秒数) 时为 "EXCEPTION"，否则 "OK"。
// 两个维度各自单调：占比越过阈值必然翻转为异常，次数降回阈值内 (且占比
// 未超) 必然翻转回正常。
func GCStatus(count int64, loadFraction, elapsedSeconds float64) string {
	limit := elapsedSeconds
	if limit < 10 {
		limit = 10
	}
	if loadFraction > gcLoadThreshold || float64(count) > limit {
		return "EXCEPTION"
	}
	return "OK"
}

func (a *GCAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	if step.Trace == nil {
		return nil, nil
	}

	var (
		gcCount  int64
		byMarker = make(Result, len(gcPhaseMarkers))
	)
	for _, marker := range gcPhaseMarkers {
		n, err := step.Trace.CountEvents(marker, step.AppPIDs)
		if err != nil {
			return nil, fmt.Errorf("count gc marker '%s': %w", marker, err)
		}
		if n > 0 {
			byMarker[marker] = n
		}
		gcCount += n
	}

	var (
		gcLoad    int64
		totalLoad int64
		fraction  float64
	)
	if step.Perf != nil {
		var err error
		gcLoad, err = step.Perf.ThreadLoad(gcThreadName, step.AppPIDs)
		if err != nil {
			return nil, fmt.Errorf("query gc thread load: %w", err)
		}
		totalLoad, err = step.Perf.TotalLoad(step.AppPIDs)
		if err != nil {
			return nil, fmt.Errorf("query total load: %w", err)
		}
		if totalLoad > 0 {
			fraction = float64(gcLoad) / float64(totalLoad)
		}
	} else {
		log.Printf("Step %s: perf store absent, gc load fraction unavailable", step.Label)
	}

	status := GCStatus(gcCount, fraction, step.ElapsedSeconds)
	log.Printf("Step %s: gcCount=%d loadFraction=%.4f status=%s", step.Label, gcCount, fraction, status)

	return Result{
		"gcCount":        gcCount,
		"gcCountByPhase": byMarker,
		"gcThreadLoad":   gcLoad,
		"appTotalLoad":   totalLoad,
		"gcLoadFraction": fraction,
		"elapsedSeconds": step.ElapsedSeconds,
		"GCStatus":       status,
	}, nil
}
