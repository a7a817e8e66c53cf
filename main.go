package main

import (
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// 1. 初始化 MCP 服务器
	mcpServer := server.NewMCPServer(
		"PerfStepAnalyzer",    // 服务器名称
		"0.1.0",               // 服务器版本
		server.WithLogging(),  // 启用日志记录
		server.WithRecovery(), // 启用 panic 恢复
	)

	// 2. 定义 analyze_scene 工具：对场景目录跑完整的多分析器流水线
	analyzeTool := mcp.NewTool("analyze_scene",
		mcp.WithDescription("分析一个 UI 测试场景目录 (含 hiperf/step<N> 与 htrace/step<N> 抓取产物)，"+
			"运行全部已注册分析器并返回合并后的 JSON 结果树。"),
		mcp.WithString("scene_dir",
			mcp.Description("场景根目录的本地路径。"),
			mcp.Required(),
		),
		mcp.WithString("app_name",
			mcp.Description("被测应用的进程名 (模糊匹配)。"),
			mcp.Required(),
		),
		mcp.WithNumber("top_n",
			mcp.Description("各分析器 Top N 输出上限。"),
			mcp.DefaultNumber(10.0),
		),
		mcp.WithNumber("workers",
			mcp.Description("步骤级并发度。"),
			mcp.DefaultNumber(4.0),
		),
		mcp.WithString("converter",
			mcp.Description("外部抓取转换工具的路径；转换库已存在时可省略。"),
		),
		mcp.WithString("symbol_patterns",
			mcp.Description("逗号分隔的符号匹配模式 (通配符，或 're:' 前缀的正则)，供符号负载归因使用。"),
		),
	)

	// 3. 定义 attribute_symbols 工具：只跑符号负载归因
	attributeTool := mcp.NewTool("attribute_symbols",
		mcp.WithDescription("按给定符号模式对场景做 CPU 负载归因：合并命中事件的时间区间，"+
			"把采样负载按线程归因到各事件名，并可导出电子表格。"),
		mcp.WithString("scene_dir",
			mcp.Description("场景根目录的本地路径。"),
			mcp.Required(),
		),
		mcp.WithString("app_name",
			mcp.Description("被测应用的进程名 (模糊匹配)。"),
			mcp.Required(),
		),
		mcp.WithString("symbol_patterns",
			mcp.Description("逗号分隔的符号匹配模式。"),
			mcp.Required(),
		),
		mcp.WithString("windows",
			mcp.Description("可选的绝对时间窗口，形如 'start-end[,start-end...]' (纳秒)。"),
		),
		mcp.WithBoolean("export_xlsx",
			mcp.Description("是否在 report/ 下生成 symbol_load.xlsx。"),
		),
	)

	// 4. 注册工具及其处理器
	mcpServer.AddTool(analyzeTool, handleAnalyzeScene)
	mcpServer.AddTool(attributeTool, handleAttributeSymbols)

	// 5. Start the server using stdio transport
	log.Println("Starting PerfStepAnalyzer MCP server via stdio...")
	if err := server.ServeStdio(mcpServer); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
