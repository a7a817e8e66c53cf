package analyzer

// --- JSON 输出结构体定义 ---

// Result 是单个分析器对单个步骤的输出：一棵 JSON 安全的树
// (string 键到数值/字符串/嵌套映射/序列)。nil 表示 absent。
// 不变量: 经 Sanitize 后不含非有限数值，也不含宿主框架的数值包装类型。
type Result map[string]any

// errorResult 把一条失败信息包装成约定的 {"error": msg} 结果。
func errorResult(msg string) Result {
	return Result{"error": msg}
}

// SymbolLoadRow 是符号归因分析器的一行导出记录 (JSON / xlsx 共用)。
type SymbolLoadRow struct {
	Step      string `json:"step"`
	EventName string `json:"eventName"`
	Thread    string `json:"thread"`
	Load      int64  `json:"load"`
}

// FunctionStat 是 rawperf 分析器中单个符号的统计信息。
type FunctionStat struct {
	FunctionName       string  `json:"functionName"`
	FlatValue          int64   `json:"flatValue"`          // 原始值
	FlatValueFormatted string  `json:"flatValueFormatted"` // 格式化后的值 (e.g., "1.23s")
	Percentage         float64 `json:"percentage"`         // 占总量的百分比
}

// ColdStartFile 是冷启动报告中单个文件的加载开销。
type ColdStartFile struct {
	Rank   int     `json:"rank"`
	CostMs float64 `json:"costMs"`
	Path   string  `json:"path"`
}

// --- 内部辅助结构体 ---

// functionStat 保存符号的聚合统计信息。只在包内部使用。
type functionStat struct {
	Name string
	Flat int64
}
