package analyzer

import "log"

// Constructor 把配置绑定为一个可运行的分析器实例。
type Constructor func(cfg Config) (Analyzer, error)

// DefaultRegistry 是固定有序的分析器集合。显式列表在启动时一次性
// 解析，不做任何按名字的运行期类型查找。
func DefaultRegistry() []Constructor {
	return []Constructor{
		NewGCAnalyzer,
		NewFrameAnalyzer,
		NewFaultAnalyzer,
		NewReuseAnalyzer,
		NewColdStartAnalyzer,
		NewSymbolLoadAnalyzer,
		NewRawPerfAnalyzer,
	}
}

// BuildAnalyzers 解析注册表。单个构造失败只记录日志并丢弃该分析器，
// 本次运行继续使用其余分析器。
func BuildAnalyzers(cfg Config, registry []Constructor) []Analyzer {
	analyzers := make([]Analyzer, 0, len(registry))
	for _, ctor := range registry {
		a, err := ctor(cfg)
		if err != nil {
			log.Printf("Warning: analyzer constructor failed, dropping it: %v", err)
			continue
		}
		analyzers = append(analyzers, a)
	}
	return analyzers
}
