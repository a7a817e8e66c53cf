package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// faultMarker 描述一个按名称计数的故障特征事件。
// renderScope 为 true 时在渲染服务进程内统计，否则在应用进程内统计。
type faultMarker struct {
	key         string
	prefix      string
	renderScope bool
}

var faultMarkers = []faultMarker{
	{key: "marshRSTransactionData", prefix: "H:MarshRSTransactionData"},
	{key: "unmarshRSTransactionData", prefix: "H:UnmarshRSTransactionData", renderScope: true},
	{key: "processCommandUni", prefix: "H:RSMainThread::ProcessCommandUni", renderScope: true},
	{key: "animateSize", prefix: "H:Animate "},
	{key: "flushLayoutTask", prefix: "H:FlushLayoutTask"},
	{key: "flushDirtyNodes", prefix: "H:UITaskScheduler::FlushDirtyNodeUpdate"},
}

const renderServiceProcess = "render_service"

var (
	processedNodesRe = regexp.MustCompile(`ProcessedNodes:\s*(\d+)`)
	animationPairRe  = regexp.MustCompile(`nodeSize[:=]\s*(\d+).*?totalAnimationSize[:=]\s*(\d+)`)
)

// FaultAnalyzer 统计一组固定故障特征事件的出现次数，提取
// "ProcessedNodes: N" 型 payload 的最大值及其相对时间，并累加
// (nodeSize, totalAnimationSize) 数值对。只输出原始计数，阈值判断在下游。
type FaultAnalyzer struct {
	cfg Config
}

// NewFaultAnalyzer 构造故障特征检测器。
func NewFaultAnalyzer(cfg Config) (Analyzer, error) {
	return &FaultAnalyzer{cfg: cfg}, nil
}

func (a *FaultAnalyzer) Name() string     { return "fault" }
func (a *FaultAnalyzer) TreePath() string { return "trace/faults" }

// ExtractProcessedNodesMax 在事件名序列中提取 ProcessedNodes 的最大值
// 及该事件相对 baseTs 的毫秒偏移。没有匹配时 ok 为 false。
func ExtractProcessedNodesMax(events []EventView, baseTs int64) (maxVal int64, relMs float64, ok bool) {
	for _, e := range events {
		m := processedNodesRe.FindStringSubmatch(e.Name)
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if !ok || v > maxVal {
			maxVal = v
			relMs = float64(e.Ts-baseTs) / 1e6
			ok = true
		}
	}
	return maxVal, relMs, ok
}

// SumAnimationSizes 累加事件名中成对出现的 nodeSize / totalAnimationSize。
func SumAnimationSizes(events []EventView) (nodeSize, animationSize int64) {
	for _, e := range events {
		m := animationPairRe.FindStringSubmatch(e.Name)
		if m == nil {
			continue
		}
		n, err1 := strconv.ParseInt(m[1], 10, 64)
		t, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		nodeSize += n
		animationSize += t
	}
	return nodeSize, animationSize
}

// EventView 是纯计算函数消费的最小事件视图。
type EventView struct {
	Name string
	Ts   int64
}

func (a *FaultAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	if step.Trace == nil {
		return nil, nil
	}

	renderPIDs := step.AppPIDs
	if rsPid, err := step.Trace.ProcessIDByName(renderServiceProcess); err == nil {
		renderPIDs = []int64{rsPid}
	}

	counters := make(Result, len(faultMarkers))
	for _, m := range faultMarkers {
		pids := step.AppPIDs
		if m.renderScope {
			pids = renderPIDs
		}
		events, err := step.Trace.EventsLike(m.prefix, pids)
		if err != nil {
			return nil, fmt.Errorf("query fault marker '%s': %w", m.prefix, err)
		}
		counters[m.key] = len(events)
	}

	baseTs, _, err := step.Trace.Range()
	if err != nil {
		return nil, fmt.Errorf("query trace range: %w", err)
	}

	// ProcessedNodes payload 出现在渲染服务主线程的合成事件名里
	rsEvents, err := step.Trace.EventsLike("H:RSMainThread", renderPIDs)
	if err != nil {
		return nil, fmt.Errorf("query render service events: %w", err)
	}
	views := make([]EventView, len(rsEvents))
	for i, e := range rsEvents {
		views[i] = EventView{Name: e.Name, Ts: e.Ts}
	}

	result := Result{"counters": counters}
	if maxNodes, relMs, ok := ExtractProcessedNodesMax(views, baseTs); ok {
		result["processedNodesMax"] = maxNodes
		result["processedNodesMaxAtMs"] = relMs
	}

	animEvents, err := step.Trace.EventsLike("H:Animate", step.AppPIDs)
	if err != nil {
		return nil, fmt.Errorf("query animation events: %w", err)
	}
	animViews := make([]EventView, len(animEvents))
	for i, e := range animEvents {
		animViews[i] = EventView{Name: e.Name, Ts: e.Ts}
	}
	nodeSize, animationSize := SumAnimationSizes(animViews)
	result["nodeSizeSum"] = nodeSize
	result["totalAnimationSizeSum"] = animationSize

	return result, nil
}
