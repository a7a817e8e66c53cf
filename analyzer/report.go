package analyzer

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// ReportDir 是场景目录下报告产物的约定子目录。
const ReportDir = "report"

// Sanitize 是序列化前的唯一边界转换：把任意分析器输出归一为
// 纯 JSON 值 (map[string]any / []any / int64 / float64 / string / bool / nil)。
// NaN 与 ±Inf 被替换为 nil，宿主数值包装类型被展开为普通整数/浮点数。
func Sanitize(v any) any {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case Result:
		return sanitizeMap(map[string]any(x))
	case map[string]any:
		return sanitizeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Sanitize(e)
		}
		return out
	case string:
		return x
	case bool:
		return x
	case float64:
		return sanitizeFloat(x)
	case float32:
		return sanitizeFloat(float64(x))
	case int:
		return int64(x)
	case int8, int16, int32, int64:
		return reflect.ValueOf(x).Int()
	case uint, uint8, uint16, uint32, uint64:
		return sanitizeUint(reflect.ValueOf(x).Uint())
	}

	// 结构体、命名切片等通过反射展开
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Sanitize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Sanitize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			out[fmt.Sprint(k.Interface())] = Sanitize(rv.MapIndex(k).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			name := t.Field(i).Name
			if tag, ok := t.Field(i).Tag.Lookup("json"); ok {
				if base, _, _ := strings.Cut(tag, ","); base != "" && base != "-" {
					name = base
				}
			}
			out[name] = Sanitize(rv.Field(i).Interface())
		}
		return out
	case reflect.Float32, reflect.Float64:
		return sanitizeFloat(rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return sanitizeUint(rv.Uint())
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	default:
		log.Printf("Warning: dropping unserializable value of kind %s", rv.Kind())
		return nil
	}
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Sanitize(v)
	}
	return out
}

// sanitizeUint 把无符号值归一为 int64；超出 int64 表示范围时转为
// float64，避免直接强转产生负数。
func sanitizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func sanitizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// InsertAtPath 把值插入嵌套树。path 支持扁平键 ("gc") 或斜杠分隔的
// 嵌套路径 ("trace/frameLoads")；中间节点按需创建。
func InsertAtPath(tree map[string]any, path string, v any) {
	parts := strings.Split(path, "/")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[p] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = v
}

// BuildTree 把各分析器的步骤结果挂载到其 TreePath 下并整体 Sanitize。
func BuildTree(analyzers []Analyzer, perAnalyzer map[string]map[string]Result) map[string]any {
	tree := make(map[string]any)
	for _, a := range analyzers {
		perStep, ok := perAnalyzer[a.Name()]
		if !ok || len(perStep) == 0 {
			continue
		}
		steps := make(map[string]any, len(perStep))
		for label, r := range perStep {
			steps[label] = Sanitize(r)
		}
		InsertAtPath(tree, a.TreePath(), steps)
	}
	return tree
}

// WriteReports 为每个分析器写出独立的 JSON 报告文件，并为 symbolload
// 分析器生成可选的电子表格导出。
func WriteReports(cfg Config, analyzers []Analyzer, perAnalyzer map[string]map[string]Result) error {
	dir := filepath.Join(cfg.SceneDir, ReportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir '%s': %w", dir, err)
	}

	for _, a := range analyzers {
		perStep := perAnalyzer[a.Name()]
		if len(perStep) == 0 {
			continue
		}
		sanitized := make(map[string]any, len(perStep))
		for label, r := range perStep {
			sanitized[label] = Sanitize(r)
		}
		data, err := json.MarshalIndent(sanitized, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report for '%s': %w", a.Name(), err)
		}
		path := filepath.Join(dir, a.Name()+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write report '%s': %w", path, err)
		}
		log.Printf("Wrote report %s", path)

		if a.Name() == "symbolload" && cfg.ExportXLSX {
			rows := CollectSymbolRows(perStep)
			if len(rows) == 0 {
				log.Printf("No symbol load rows, skipping spreadsheet export")
				continue
			}
			xlsxPath := filepath.Join(dir, "symbol_load.xlsx")
			if err := WriteSymbolLoadXLSX(xlsxPath, rows); err != nil {
				return fmt.Errorf("export spreadsheet: %w", err)
			}
			log.Printf("Wrote spreadsheet %s", xlsxPath)
		}
	}
	return nil
}
