package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
)

// resolveSceneDir 把场景目录参数解析为绝对路径。
func resolveSceneDir(dir string) (string, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", dir, err)
	}
	return absPath, nil
}

// splitPatterns 切分逗号分隔的模式串，忽略空白项。
func splitPatterns(s string) []string {
	var patterns []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// parseWindows 解析 "start-end[,start-end...]" 形式的纳秒时间窗口。
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

// treeResult 把合并结果树序列化为工具调用的文本结果。
func treeResult(tree map[string]any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result tree: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

// handleAnalyzeScene 处理完整场景分析请求。
// 这是 MCP 工具 "analyze_scene" 的处理器函数。
func handleAnalyzeScene(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments

	// --- 1. 获取并验证参数 ---
	sceneDir, ok := args["scene_dir"].(string)
	if !ok || sceneDir == "" {
		return nil, fmt.Errorf("missing or invalid required argument: scene_dir (string)")
	}
	appName, ok := args["app_name"].(string)
	if !ok || appName == "" {
		return nil, fmt.Errorf("missing or invalid required argument: app_name (string)")
	}
	topNFloat, ok := args["top_n"].(float64)
	if !ok {
		topNFloat = 10.0
	}
	workersFloat, ok := args["workers"].(float64)
	if !ok {
		workersFloat = 4.0
	}
	converter, _ := args["converter"].(string)
	patternStr, _ := args["symbol_patterns"].(string)

	absScene, err := resolveSceneDir(sceneDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Handling analyze_scene: Scene=%s, App=%s, TopN=%d, Workers=%d", absScene, appName, int(topNFloat), int(workersFloat))

	// --- 2. 组装配置并运行调度器 ---
	cfg := analyzer.Config{
		SceneDir:       absScene,
		AppName:        appName,
		TopN:           int(topNFloat),
		Workers:        int(workersFloat),
		ConverterPath:  converter,
		SymbolPatterns: splitPatterns(patternStr),
	}
	report, err := analyzer.RunScene(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("scene analysis failed: %w", err)
	}

	// --- 3. 返回合并结果树 ---
	log.Printf("Scene analysis done: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return treeResult(report.Tree)
}

// handleAttributeSymbols 处理符号负载归因请求。
// 这是 MCP 工具 "attribute_symbols" 的处理器函数。
func handleAttributeSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments

	// --- 1. 获取并验证参数 ---
	sceneDir, ok := args["scene_dir"].(string)
	if !ok || sceneDir == "" {
		return nil, fmt.Errorf("missing or invalid required argument: scene_dir (string)")
	}
	appName, ok := args["app_name"].(string)
	if !ok || appName == "" {
		return nil, fmt.Errorf("missing or invalid required argument: app_name (string)")
	}
	patternStr, ok := args["symbol_patterns"].(string)
	if !ok || strings.TrimSpace(patternStr) == "" {
		return nil, fmt.Errorf("missing or invalid required argument: symbol_patterns (string)")
	}
	windowStr, _ := args["windows"].(string)
	exportXLSX, _ := args["export_xlsx"].(bool)

	windows, err := parseWindows(windowStr)
	if err != nil {
		return nil, err
	}
	absScene, err := resolveSceneDir(sceneDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Handling attribute_symbols: Scene=%s, Patterns=%s", absScene, patternStr)

	// --- 2. 只注册符号负载归因器运行 ---
	cfg := analyzer.Config{
		SceneDir:       absScene,
		AppName:        appName,
		SymbolPatterns: splitPatterns(patternStr),
		Windows:        windows,
		ExportXLSX:     exportXLSX,
	}
	report, err := analyzer.RunSceneWith(ctx, cfg, []analyzer.Constructor{analyzer.NewSymbolLoadAnalyzer})
	if err != nil {
		return nil, fmt.Errorf("symbol attribution failed: %w", err)
	}

	// --- 3. 返回合并结果树 ---
	return treeResult(report.Tree)
}
