package analyzer

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

// SymbolLoadAnalyzer 把用户给定的通配/正则模式编译为匹配谓词，查询
// 命中模式的全部事件出现，按事件名合并时间区间 (防止同名重叠重复计数)，
// 再把采样负载按线程归因到合并区间上。不内置阈值，产出负载表供导出。
type SymbolLoadAnalyzer struct {
	cfg      Config
	patterns []*regexp.Regexp
}

// NewSymbolLoadAnalyzer 构造符号负载归因器。模式集为空时分析器仍可
// 构造，Analyze 返回 absent。
func NewSymbolLoadAnalyzer(cfg Config) (Analyzer, error) {
	return &SymbolLoadAnalyzer{cfg: cfg, patterns: CompilePatterns(cfg.SymbolPatterns)}, nil
}

func (a *SymbolLoadAnalyzer) Name() string     { return "symbolload" }
func (a *SymbolLoadAnalyzer) TreePath() string { return "perf/symbolLoad" }

// CompilePatterns 把用户模式编译为正则谓词：
//   - "re:" 前缀按原生正则编译；
//   - 其余按通配符处理，'*' 匹配任意串，'?' 匹配单字符；
//   - 无效模式记录日志后降级为精确字面量匹配，绝不中断分析器。
func CompilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		var expr string
		if rest, ok := strings.CutPrefix(p, "re:"); ok {
			expr = rest
		} else {
			expr = "^" + strings.NewReplacer(`\*`, ".*", `\?`, ".").Replace(regexp.QuoteMeta(p)) + "$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Printf("Warning: invalid symbol pattern '%s' (%v), falling back to literal match", p, err)
			re = regexp.MustCompile("^" + regexp.QuoteMeta(strings.TrimPrefix(p, "re:")) + "$")
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// matchAny 判断事件名是否命中任一模式。
func matchAny(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// patternPrefixes 提取各模式的字面量前缀，供事件查询做 SQL 侧预筛。
// 任一模式没有可用前缀 ("re:" 原生正则、或以通配符开头) 时返回 nil，
// 查询退化为全量扫描后在 Go 侧过滤。
func patternPrefixes(patterns []string) []string {
	prefixes := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "re:") {
			return nil
		}
		i := strings.IndexAny(p, "*?")
		if i == 0 {
			return nil
		}
		if i < 0 {
			i = len(p)
		}
		prefixes = append(prefixes, p[:i])
	}
	return prefixes
}

// windowBounds 返回窗口集合的整体覆盖区间 [min start, max end]。
func windowBounds(windows []TimeRange) (lo, hi int64) {
	lo, hi = windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start < lo {
			lo = w.Start
		}
		if w.End > hi {
			hi = w.End
		}
	}
	return lo, hi
}

// AttributeSymbolLoad 是符号归因的纯计算核心：
// 按事件名分组命中事件的时间区间 → 裁剪到可选窗口 → 合并 → 对采样负载
// 做线程级归因。同一事件名下样本绝不重复计数；不同事件名的原始区间
// 真实重叠时样本会分别计入两个名字 (保留的近似，见 DESIGN.md)。
func AttributeSymbolLoad(events []store.Event, samples []store.Sample,
	patterns []*regexp.Regexp, windows []TimeRange) map[string]map[ThreadKey]int64 {

	byName := make(map[string][]TimeRange)
	for _, e := range events {
		if !matchAny(patterns, e.Name) {
			continue
		}
		byName[e.Name] = append(byName[e.Name], TimeRange{Start: e.Ts, End: e.Ts + e.Dur})
	}

	loads := make(map[string]map[ThreadKey]int64, len(byName))
	for name, ranges := range byName {
		merged := MergeTimeRanges(ClipRanges(ranges, windows))
		totals := AttributeLoad(merged, samples)
		if len(totals) > 0 {
			loads[name] = totals
		}
	}
	return loads
}

// Rows 把归因结果展开为稳定排序的导出行 (按事件名、负载降序、线程)。
func (a *SymbolLoadAnalyzer) rows(stepLabel string, loads map[string]map[ThreadKey]int64) []SymbolLoadRow {
	var rows []SymbolLoadRow
	for name, totals := range loads {
		for key, load := range totals {
			rows = append(rows, SymbolLoadRow{
				Step:      stepLabel,
				EventName: name,
				Thread:    fmt.Sprintf("%s(%d)", key.Name, key.TID),
				Load:      load,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EventName != rows[j].EventName {
			return rows[i].EventName < rows[j].EventName
		}
		if rows[i].Load != rows[j].Load {
			return rows[i].Load > rows[j].Load
		}
		return rows[i].Thread < rows[j].Thread
	})
	return rows
}

func (a *SymbolLoadAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	if len(a.patterns) == 0 || step.Trace == nil || step.Perf == nil {
		return nil, nil
	}
	events, err := step.Trace.EventsMatching(patternPrefixes(a.cfg.SymbolPatterns),
		func(name string) bool { return matchAny(a.patterns, name) }, step.AppPIDs)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	var samples []store.Sample
	if len(a.cfg.Windows) > 0 {
		lo, hi := windowBounds(a.cfg.Windows)
		samples, err = step.Perf.SamplesInRange(lo, hi, step.AppPIDs)
	} else {
		samples, err = step.Perf.Samples(step.AppPIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}

	loads := AttributeSymbolLoad(events, samples, a.patterns, a.cfg.Windows)
	if len(loads) == 0 {
		return nil, nil
	}

	rows := a.rows(step.Label, loads)
	symbols := make(Result, len(loads))
	for name, totals := range loads {
		var total int64
		threads := make([]any, 0, len(totals))
		for _, r := range rows {
			if r.EventName == name {
				threads = append(threads, Result{"thread": r.Thread, "load": r.Load})
			}
		}
		for _, load := range totals {
			total += load
		}
		symbols[name] = Result{"totalLoad": total, "threads": threads}
	}
	return Result{
		"symbols": symbols,
		"rows":    rowsToAny(rows),
	}, nil
}

func rowsToAny(rows []SymbolLoadRow) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
