package analyzer

// Config 是一次场景分析的全部参数，在入口处构造一次后按值传入
// 调度器和每个分析器构造函数。不存在进程级可变全局配置。
type Config struct {
	SceneDir string // 场景根目录，下含 hiperf/ 与 htrace/
	AppName  string // 被测应用进程名 (模糊匹配)

	Workers       int    // 步骤级并发度
	TopN          int    // 各分析器 Top N 输出上限
	ConverterPath string // 外部抓取转换工具路径，可为空

	// symbolload 分析器参数
	SymbolPatterns []string    // 通配符或 "re:" 前缀的正则
	Windows        []TimeRange // 可选的绝对时间窗口，空表示不限
	ExportXLSX     bool        // 是否导出 symbol_load.xlsx
}

const (
	defaultWorkers = 4
	defaultTopN    = 10
)

// withDefaults 返回填充了缺省值的副本。
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	return c
}
