package analyzer_test

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
)

func TestSanitizeNonFinite(t *testing.T) {
	in := analyzer.Result{
		"nan":    math.NaN(),
		"posInf": math.Inf(1),
		"negInf": math.Inf(-1),
		"ok":     1.5,
	}
	got := analyzer.Sanitize(in).(map[string]any)
	for _, k := range []string{"nan", "posInf", "negInf"} {
		if got[k] != nil {
			t.Errorf("Sanitize left non-finite value under %q: %v", k, got[k])
		}
	}
	if got["ok"] != 1.5 {
		t.Errorf("finite value changed: %v", got["ok"])
	}
}

func TestSanitizeNumericNormalization(t *testing.T) {
	in := analyzer.Result{
		"int":    int(3),
		"int32":  int32(4),
		"uint16": uint16(5),
		"f32":    float32(2),
	}
	got := analyzer.Sanitize(in).(map[string]any)
	if got["int"] != int64(3) || got["int32"] != int64(4) || got["uint16"] != int64(5) {
		t.Errorf("integer kinds not normalized to int64: %#v", got)
	}
	if got["f32"] != float64(2) {
		t.Errorf("float32 not normalized to float64: %#v", got["f32"])
	}
}

func TestSanitizeUintOverflow(t *testing.T) {
	in := analyzer.Result{
		"small": uint64(7),
		"big":   uint64(math.MaxUint64),
	}
	got := analyzer.Sanitize(in).(map[string]any)
	if got["small"] != int64(7) {
		t.Errorf("small uint not normalized to int64: %#v", got["small"])
	}
	// 超出 int64 表示范围的无符号值不得回绕为负数
	big, ok := got["big"].(float64)
	if !ok || big < 0 {
		t.Errorf("oversized uint mishandled: %#v", got["big"])
	}
	if big != float64(uint64(math.MaxUint64)) {
		t.Errorf("oversized uint = %v, want %v", big, float64(uint64(math.MaxUint64)))
	}
}

func TestSanitizeExpandsStructs(t *testing.T) {
	in := analyzer.Result{
		"rows": []any{
			analyzer.SymbolLoadRow{Step: "step1", EventName: "H:X", Thread: "ui(1)", Load: 7},
		},
	}
	got := analyzer.Sanitize(in).(map[string]any)
	rows := got["rows"].([]any)
	row := rows[0].(map[string]any)
	if row["eventName"] != "H:X" || row["load"] != int64(7) {
		t.Errorf("struct not expanded via json tags: %#v", row)
	}
	// 结果必须可直接 json 序列化
	if _, err := json.Marshal(got); err != nil {
		t.Errorf("sanitized tree not serializable: %v", err)
	}
}

func TestSanitizeNested(t *testing.T) {
	in := analyzer.Result{
		"outer": analyzer.Result{
			"inner": []any{math.NaN(), int32(1)},
		},
	}
	got := analyzer.Sanitize(in).(map[string]any)
	inner := got["outer"].(map[string]any)["inner"].([]any)
	if inner[0] != nil || inner[1] != int64(1) {
		t.Errorf("nested sanitize wrong: %#v", inner)
	}
}

func TestInsertAtPath(t *testing.T) {
	tree := make(map[string]any)
	analyzer.InsertAtPath(tree, "trace/frameLoads", 1)
	analyzer.InsertAtPath(tree, "trace/gc", 2)
	analyzer.InsertAtPath(tree, "flat", 3)

	want := map[string]any{
		"trace": map[string]any{"frameLoads": 1, "gc": 2},
		"flat":  3,
	}
	if !reflect.DeepEqual(tree, want) {
		t.Errorf("InsertAtPath tree = %#v, want %#v", tree, want)
	}
}
