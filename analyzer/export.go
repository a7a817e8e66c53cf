package analyzer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const symbolSheetName = "symbol_load"

// WriteSymbolLoadXLSX 把符号负载行导出为电子表格，列为
// step, event_name, thread, load。没有数据行时不生成文件。
func WriteSymbolLoadXLSX(path string, rows []SymbolLoadRow) error {
	if len(rows) == 0 {
		return nil
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", symbolSheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"step", "event_name", "thread", "load"}
	if err := f.SetSheetRow(symbolSheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Step, r.EventName, r.Thread, r.Load}
		if err := f.SetSheetRow(symbolSheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save spreadsheet '%s': %w", path, err)
	}
	return nil
}

// CollectSymbolRows 从 symbolload 分析器的各步骤结果里取出导出行，
// 按步骤序稳定排列。
func CollectSymbolRows(perStep map[string]Result) []SymbolLoadRow {
	labels := make([]string, 0, len(perStep))
	for label := range perStep {
		labels = append(labels, label)
	}
	// step10 应排在 step2 之后，按数字后缀排序
	sort.Slice(labels, func(i, j int) bool { return stepOrdinal(labels[i]) < stepOrdinal(labels[j]) })

	var rows []SymbolLoadRow
	for _, label := range labels {
		raw, ok := perStep[label]["rows"].([]any)
		if !ok {
			continue
		}
		for _, v := range raw {
			if r, ok := v.(SymbolLoadRow); ok {
				rows = append(rows, r)
			}
		}
	}
	return rows
}

func stepOrdinal(label string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(label, "step"))
	if err != nil {
		return 0
	}
	return n
}
