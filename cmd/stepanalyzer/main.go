// stepanalyzer 是多分析器流水线的批处理入口：对一个场景目录跑完
// 全部分析器，在 report/ 下落盘各分析器报告与合并结果树。
// attribute 子命令只运行符号负载归因器。
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts struct {
		appName   string
		topN      int
		workers   int
		converter string
		patterns  []string
		windows   string
		xlsx      bool
	}

	rootCmd := &cobra.Command{
		Use:   "stepanalyzer [flags] <scene-dir>",
		Short: "Analyze per-step performance captures of a UI test scene",
		Long: `stepanalyzer 遍历场景目录下的 htrace/step<N> 与 hiperf/step<N> 抓取产物，
运行帧、GC、组件复用、冷启动、故障特征、符号负载等分析器，
并在 <scene-dir>/report/ 下生成 JSON 报告与合并结果树。

Examples:
  stepanalyzer --app com.example.shop ./scene_001
  stepanalyzer --app com.example.shop --patterns 'H:CustomNode:Build*' --xlsx ./scene_001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			windows, err := parseWindows(opts.windows)
			if err != nil {
				return err
			}
			cfg := analyzer.Config{
				AppName:        opts.appName,
				TopN:           opts.topN,
				Workers:        opts.workers,
				ConverterPath:  opts.converter,
				SymbolPatterns: opts.patterns,
				Windows:        windows,
				ExportXLSX:     opts.xlsx,
			}
			return run(cmd, args[0], cfg, analyzer.DefaultRegistry())
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&opts.appName, "app", "a", "", "被测应用进程名 (必填，模糊匹配)")
	f.IntVarP(&opts.topN, "top", "n", 10, "各分析器 Top N 输出上限")
	f.IntVarP(&opts.workers, "workers", "w", 4, "步骤级并发度")
	f.StringVar(&opts.converter, "converter", "", "外部抓取转换工具路径")
	f.StringSliceVar(&opts.patterns, "patterns", nil, "符号匹配模式 (通配符或 re: 前缀正则)")
	f.StringVar(&opts.windows, "windows", "", "符号归因的绝对时间窗口 'start-end[,start-end]' (纳秒)")
	f.BoolVar(&opts.xlsx, "xlsx", false, "导出 report/symbol_load.xlsx")
	_ = rootCmd.MarkFlagRequired("app")

	rootCmd.AddCommand(newAttributeCmd())
	return rootCmd
}

// newAttributeCmd 构造 attribute 子命令：只运行符号负载归因器，
// 与 MCP 工具 attribute_symbols 对等。
func newAttributeCmd() *cobra.Command {
	var opts struct {
		appName   string
		workers   int
		converter string
		patterns  []string
		windows   string
		xlsx      bool
	}

	cmd := &cobra.Command{
		Use:   "attribute [flags] <scene-dir>",
		Short: "Attribute sampled CPU load to symbol patterns only",
		Long: `attribute 对场景目录只运行符号负载归因器：按给定模式匹配事件，
把采样负载按线程归因到匹配事件的合并时间区间上。

Examples:
  stepanalyzer attribute --app com.example.shop --patterns 'H:CustomNode:Build*' ./scene_001
  stepanalyzer attribute --app com.example.shop --patterns 're:H:.*GC.*' --xlsx ./scene_001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			windows, err := parseWindows(opts.windows)
			if err != nil {
				return err
			}
			cfg := analyzer.Config{
				AppName:        opts.appName,
				Workers:        opts.workers,
				ConverterPath:  opts.converter,
				SymbolPatterns: opts.patterns,
				Windows:        windows,
				ExportXLSX:     opts.xlsx,
			}
			return run(cmd, args[0], cfg, []analyzer.Constructor{analyzer.NewSymbolLoadAnalyzer})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.appName, "app", "a", "", "被测应用进程名 (必填，模糊匹配)")
	f.IntVarP(&opts.workers, "workers", "w", 4, "步骤级并发度")
	f.StringVar(&opts.converter, "converter", "", "外部抓取转换工具路径")
	f.StringSliceVar(&opts.patterns, "patterns", nil, "符号匹配模式 (必填，通配符或 re: 前缀正则)")
	f.StringVar(&opts.windows, "windows", "", "符号归因的绝对时间窗口 'start-end[,start-end]' (纳秒)")
	f.BoolVar(&opts.xlsx, "xlsx", false, "导出 report/symbol_load.xlsx")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("patterns")

	return cmd
}

func run(cmd *cobra.Command, sceneDir string, cfg analyzer.Config, registry []analyzer.Constructor) error {
	absScene, err := filepath.Abs(sceneDir)
	if err != nil {
		return fmt.Errorf("resolve scene dir: %w", err)
	}
	cfg.SceneDir = absScene

	report, err := analyzer.RunSceneWith(cmd.Context(), cfg, registry)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report.Tree, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result tree: %w", err)
	}
	summaryPath := filepath.Join(absScene, analyzer.ReportDir, "summary.json")
	if err := os.WriteFile(summaryPath, data, 0o644); err != nil {
		return fmt.Errorf("write summary '%s': %w", summaryPath, err)
	}
	log.Printf("Wrote merged result tree %s", summaryPath)
	fmt.Printf("%d (analyzer, step) pairs succeeded, %d failed\n", report.Succeeded, report.Failed)
	return nil
}

func parseWindows(s string) ([]analyzer.TimeRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var windows []analyzer.TimeRange
	for _, part := range strings.Split(s, ",") {
		bounds := strings.SplitN(strings.TrimSpace(part), "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid window '%s', expected 'start-end'", part)
		}
		start, err := strconv.ParseInt(bounds[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid window start '%s': %w", bounds[0], err)
		}
		end, err := strconv.ParseInt(bounds[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid window end '%s': %w", bounds[1], err)
		}
		if end < start {
			return nil, fmt.Errorf("invalid window '%s': end < start", part)
		}
		windows = append(windows, analyzer.TimeRange{Start: start, End: end})
	}
	return windows, nil
}
