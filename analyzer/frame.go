package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

const (
	frameMarker = "H:RSMainThread::DoComposition"
	vsyncMarker = "H:ReceiveVsync"

	// 60Hz 周期，vsync 事件不足以估计周期时的回退值
	fallbackVsyncPeriodNs = int64(16_666_666)

	// 提交时长低于周期 5% 的帧视为空帧 (没有实际绘制内容)
	emptyFrameFraction = 0.05

	// 相邻帧提交间隔超过周期 1.5 倍视为掉帧
	frameDropFactor = 1.5
)

// FrameAnalyzer 检测帧负载、空帧、掉帧与 VSync 周期。只依赖事件库。
type FrameAnalyzer struct {
	cfg Config
}

// NewFrameAnalyzer 构造帧行为检测器。
func NewFrameAnalyzer(cfg Config) (Analyzer, error) {
	return &FrameAnalyzer{cfg: cfg}, nil
}

func (a *FrameAnalyzer) Name() string     { return "frame" }
func (a *FrameAnalyzer) TreePath() string { return "trace/frames" }

// FrameStats 是帧分析的纯计算结果。
type FrameStats struct {
	FrameCount          int
	EmptyFrames         int
	DroppedFrames       int
	MaxConsecutiveDrops int
	VsyncCount          int
	VsyncPeriodNs       int64
}

// EstimateVsyncPeriod 以相邻 vsync 事件间隔的中位数估计刷新周期。
// 事件不足两个时返回回退周期。
func EstimateVsyncPeriod(vsyncs []store.Event) int64 {
	if len(vsyncs) < 2 {
		return fallbackVsyncPeriodNs
	}
	deltas := make([]int64, 0, len(vsyncs)-1)
	for i := 1; i < len(vsyncs); i++ {
		d := vsyncs[i].Ts - vsyncs[i-1].Ts
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return fallbackVsyncPeriodNs
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2]
}

// AnalyzeFrames 在一个步骤的帧提交与 vsync 事件序列上计算帧统计。
// 掉帧数按间隔折算: 间隔每多出一个周期记一帧，gap > 1.5 周期才开始计。
func AnalyzeFrames(frames, vsyncs []store.Event) FrameStats {
	stats := FrameStats{
		FrameCount:    len(frames),
		VsyncCount:    len(vsyncs),
		VsyncPeriodNs: EstimateVsyncPeriod(vsyncs),
	}
	period := stats.VsyncPeriodNs
	emptyLimit := int64(float64(period) * emptyFrameFraction)
	dropLimit := int64(float64(period) * frameDropFactor)

	consecutive := 0
	for i, f := range frames {
		if f.Dur < emptyLimit {
			stats.EmptyFrames++
		}
		if i == 0 {
			continue
		}
		gap := f.Ts - frames[i-1].Ts
		if gap > dropLimit {
			missed := int(gap/period) - 1
			if missed < 1 {
				missed = 1
			}
			stats.DroppedFrames += missed
			consecutive += missed
			if consecutive > stats.MaxConsecutiveDrops {
				stats.MaxConsecutiveDrops = consecutive
			}
		} else {
			consecutive = 0
		}
	}
	return stats
}

func (a *FrameAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	if step.Trace == nil {
		return nil, nil
	}
	frames, err := step.Trace.EventsLike(frameMarker, step.AppPIDs)
	if err != nil {
		return nil, fmt.Errorf("query frame events: %w", err)
	}
	// 帧合成发生在渲染服务进程时，应用进程内查不到提交事件
	if len(frames) == 0 {
		if rsPid, rsErr := step.Trace.ProcessIDByName("render_service"); rsErr == nil {
			frames, err = step.Trace.EventsLike(frameMarker, []int64{rsPid})
			if err != nil {
				return nil, fmt.Errorf("query render service frames: %w", err)
			}
		}
	}
	vsyncs, err := step.Trace.EventsLike(vsyncMarker, step.AppPIDs)
	if err != nil {
		return nil, fmt.Errorf("query vsync events: %w", err)
	}
	if len(frames) == 0 && len(vsyncs) == 0 {
		return nil, nil
	}

	stats := AnalyzeFrames(frames, vsyncs)
	return Result{
		"frameCount":           stats.FrameCount,
		"emptyFrameCount":      stats.EmptyFrames,
		"droppedFrames":        stats.DroppedFrames,
		"maxConsecutiveDrops":  stats.MaxConsecutiveDrops,
		"vsyncCount":           stats.VsyncCount,
		"vsyncPeriodNs":        stats.VsyncPeriodNs,
		"vsyncPeriodFormatted": FormatNanos(stats.VsyncPeriodNs),
	}, nil
}
