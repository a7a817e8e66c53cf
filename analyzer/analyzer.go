// Package analyzer 实现多分析器关联流水线：区间合并与负载归因算法、
// 统一的分析器契约、静态注册表、按步骤并行的调度器，以及把各分析器
// 输出汇总为 JSON 安全结果树的聚合器。
package analyzer

import (
	"context"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

// StepData 携带一个步骤可用的全部输入，按值传入每个分析器 (组合优于继承，
// 不提供模板方法基类)。Trace / Perf 任一可为 nil，表示对应转换库缺失；
// 分析器对缺失输入返回 (nil, nil) 即 absent，不得 panic，也不得
// 影响其他分析器。
type StepData struct {
	ID       int    // 步骤序号，来自目录名 step<N>
	Label    string // 人类可读标签，如 "step3"
	SceneDir string // 场景根目录

	Trace   *store.TraceStore // 事件库句柄，可为 nil
	Perf    *store.PerfStore  // 采样库句柄，可为 nil
	AppPIDs []int64           // 被测应用的进程 id 集合

	ElapsedSeconds float64 // 该步骤覆盖的墙钟时长 (秒)
}

// Analyzer 是每个启发式分析单元实现的统一契约。
// Analyze 对无法处理的输入返回 (nil, nil)；内部错误通过 error 返回，
// 由调度器转换为 {"error": msg} 并记录，绝不中断同级分析器或其他步骤。
type Analyzer interface {
	// Name 是注册表与报告文件使用的稳定标识。
	Name() string
	// TreePath 是该分析器在合并结果树中的挂载路径，
	// 支持扁平键或斜杠分隔的嵌套路径 (如 "trace/frames")。
	TreePath() string
	// Analyze 对单个步骤执行分析。
	Analyze(ctx context.Context, step StepData) (Result, error)
}

// HiperfDir / HtraceDir 是场景目录下两棵抓取产物子树的约定名称。
const (
	HiperfDir = "hiperf"
	HtraceDir = "htrace"
)
