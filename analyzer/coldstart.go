package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// coldStartReportFile 是冷启动文件加载报告在 hiperf/step<N>/ 下的约定名。
const coldStartReportFile = "coldstart_report.txt"

var (
	usedCountRe   = regexp.MustCompile(`^used file count:\s*(\d+)`)
	unusedCountRe = regexp.MustCompile(`^unused file count:\s*(\d+)`)
	unusedCostRe  = regexp.MustCompile(`^total unused cost:\s*([\d.]+)ms`)
	fileCostRe    = regexp.MustCompile(`^#(\d+)\s+([\d.]+)ms\s+(.+)$`)
)

// ColdStartAnalyzer 解析冷启动期间的文件加载文本报告 (非 SQL 数据源)：
// 已使用/未使用文件数汇总与按名次排列的单文件开销。报告通常只为
// 首个步骤生成，缺失时返回 absent。不输出判定，数据交由下游裁决。
type ColdStartAnalyzer struct {
	cfg Config
}

// NewColdStartAnalyzer 构造冷启动加载浪费检测器。
func NewColdStartAnalyzer(cfg Config) (Analyzer, error) {
	return &ColdStartAnalyzer{cfg: cfg}, nil
}

func (a *ColdStartAnalyzer) Name() string     { return "coldstart" }
func (a *ColdStartAnalyzer) TreePath() string { return "perf/coldStart" }

// ColdStartReport 是报告文本的解析结果。
type ColdStartReport struct {
	UsedFileCount   int64
	UnusedFileCount int64
	UnusedCostMs    float64
	TopFiles        []ColdStartFile
}

// ParseColdStartReport 逐行解析报告，取名次最靠前的 topN 个文件。
// 无法识别的行被忽略；单行格式损坏不影响其余行。
func ParseColdStartReport(r io.Reader, topN int) (*ColdStartReport, error) {
	report := &ColdStartReport{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m := usedCountRe.FindStringSubmatch(line); m != nil {
			report.UsedFileCount, _ = strconv.ParseInt(m[1], 10, 64)
			continue
		}
		if m := unusedCountRe.FindStringSubmatch(line); m != nil {
			report.UnusedFileCount, _ = strconv.ParseInt(m[1], 10, 64)
			continue
		}
		if m := unusedCostRe.FindStringSubmatch(line); m != nil {
			report.UnusedCostMs, _ = strconv.ParseFloat(m[1], 64)
			continue
		}
		if m := fileCostRe.FindStringSubmatch(line); m != nil {
			rank, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			cost, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			report.TopFiles = append(report.TopFiles, ColdStartFile{Rank: rank, CostMs: cost, Path: m[3]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cold start report: %w", err)
	}
	sort.Slice(report.TopFiles, func(i, j int) bool {
		return report.TopFiles[i].Rank < report.TopFiles[j].Rank
	})
	if topN > 0 && len(report.TopFiles) > topN {
		report.TopFiles = report.TopFiles[:topN]
	}
	return report, nil
}

func (a *ColdStartAnalyzer) Analyze(ctx context.Context, step StepData) (Result, error) {
	path := filepath.Join(step.SceneDir, HiperfDir, step.Label, coldStartReportFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open cold start report: %w", err)
	}
	defer f.Close()

	report, err := ParseColdStartReport(f, a.cfg.TopN)
	if err != nil {
		return nil, err
	}
	log.Printf("Step %s: cold start report parsed, %d unused files", step.Label, report.UnusedFileCount)

	files := make([]any, len(report.TopFiles))
	for i, cf := range report.TopFiles {
		files[i] = cf
	}
	return Result{
		"usedFileCount":   report.UsedFileCount,
		"unusedFileCount": report.UnusedFileCount,
		"unusedCostMs":    report.UnusedCostMs,
		"topFiles":        files,
	}, nil
}
