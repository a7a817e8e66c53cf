package analyzer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/pprof/profile"
)

// rawPerfExportFile 是采样抓取的 pprof 导出在 hiperf/step<N>/ 下的约定名。
const rawPerfExportFile = "perf.pprof"

// RawPerfAnalyzer 对步骤原始采样的 pprof 导出做后处理：
// 按符号聚合 flat 负载，输出 Top N 符号表。导出文件缺失时返回 absent。
type RawPerfAnalyzer struct {
	cfg Config
}

// NewRawPerfAnalyzer 构造原始采样后处理器。
func NewRawPerfAnalyzer(cfg Config) (Analyzer, error) {
	return &RawPerfAnalyzer{cfg: cfg}, nil
}

func (a *RawPerfAnalyzer) Name() string     { return "rawperf" }
func (a *RawPerfAnalyzer) TreePath() string { return "perf/raw" }

// SummarizeProfile 按符号聚合 profile 的 flat 值并取 Top N。
// 值索引的选取与 CPU 采样惯例一致：优先 cpu/nanoseconds，
// 其次 samples/count，找不到时退回最后一个样本值。
func SummarizeProfile(p *profile.Profile, topN int) (stats []FunctionStat, valueType, valueUnit string, totalValue int64, err error) {
	if len(p.SampleType) == 0 {
		return nil, "", "", 0, fmt.Errorf("profile has no sample types")
	}
	valueIndex := -1
	for i, st := range p.SampleType {
		if (st.Type == "cpu" || st.Type == "samples" || st.Type == "event_count") &&
			(st.Unit == "nanoseconds" || st.Unit == "count") {
			if valueIndex == -1 || st.Type == "cpu" {
				valueIndex = i
			}
		}
	}
	if valueIndex == -1 {
		valueIndex = len(p.SampleType) - 1
		log.Printf("Warning: could not identify CPU value type, defaulting to index %d: %s/%s",
			valueIndex, p.SampleType[valueIndex].Type, p.SampleType[valueIndex].Unit)
	}
	valueType = p.SampleType[valueIndex].Type
	valueUnit = p.SampleType[valueIndex].Unit

	// flat 值归因于堆栈最顶层的符号，每个样本只计一次
	flat := make(map[string]int64)
	for _, s := range p.Sample {
		if len(s.Location) == 0 || len(s.Value) <= valueIndex {
			continue
		}
		v := s.Value[valueIndex]
		totalValue += v
		for _, line := range s.Location[0].Line {
			if line.Function != nil {
				flat[line.Function.Name] += v
				break
			}
		}
	}

	agg := make([]functionStat, 0, len(flat))
	for name, v := range flat {
		agg = append(agg, functionStat{Name: name, Flat: v})
	}
	sort.Slice(agg, func(i, j int) bool { return agg[i].Flat > agg[j].Flat })

	limit := topN
	if limit > len(agg) {
		limit = len(agg)
	}
	stats = make([]FunctionStat, 0, limit)
	for i := 0; i < limit; i++ {
		percent := 0.0
		if totalValue != 0 {
			percent = float64(agg[i].Flat) / float64(totalValue) * 100
		}
		stats = append(stats, FunctionStat{
			FunctionName:       agg[i].Name,
			FlatValue:          agg[i].Flat,
			FlatValueFormatted: FormatSampleValue(agg[i].Flat, valueUnit),
			Percentage:         percent,
		})
	}
	return stats, valueType, valueUnit, totalValue, nil
}

func (a *RawPerfAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	path := filepath.Join(step.SceneDir, HiperfDir, step.Label, rawPerfExportFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open raw perf export: %w", err)
	}
	defer f.Close()

	p, err := profile.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse raw perf export '%s': %w", path, err)
	}

	stats, valueType, valueUnit, total, err := SummarizeProfile(p, a.cfg.TopN)
	if err != nil {
		return nil, err
	}
	functions := make([]any, len(stats))
	for i, s := range stats {
		functions[i] = s
	}
	return Result{
		"valueType":           valueType,
		"valueUnit":           valueUnit,
		"totalValue":          total,
		"totalValueFormatted": FormatSampleValue(total, valueUnit),
		"topN":                len(stats),
		"functions":           functions,
	}, nil
}
