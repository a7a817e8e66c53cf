package analyzer_test

import (
	"testing"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
)

func TestGCStatus(t *testing.T) {
	cases := []struct {
		name    string
		count   int64
		frac    float64
		elapsed float64
		want    string
	}{
		// §8 具体场景：2 次 GC，120s，负载占比 0 → OK
		{"two gcs in two minutes", 2, 0, 120, "OK"},
		{"load fraction at threshold", 5, 0.15, 60, "OK"},
		{"load fraction over threshold", 5, 0.151, 60, "EXCEPTION"},
		{"count within max(10, elapsed)", 10, 0, 5, "OK"},
		{"count over short-scene floor", 11, 0, 5, "EXCEPTION"},
		{"count under elapsed for long scene", 100, 0, 120, "OK"},
		{"count over elapsed for long scene", 121, 0, 120, "EXCEPTION"},
		{"zero activity", 0, 0, 0, "OK"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzer.GCStatus(tc.count, tc.frac, tc.elapsed)
			if got != tc.want {
				t.Errorf("GCStatus(%d, %v, %v) = %s, want %s", tc.count, tc.frac, tc.elapsed, got, tc.want)
			}
		})
	}
}

// 负载占比越过 0.15 (计数固定) 必然翻转为异常；
// 计数降回 max(10, elapsed) 内 (负载固定) 必然翻转回正常。
func TestGCStatusMonotonic(t *testing.T) {
	if analyzer.GCStatus(3, 0.14, 60) != "OK" {
		t.Fatal("baseline should be OK")
	}
	for _, frac := range []float64{0.16, 0.3, 0.9} {
		if analyzer.GCStatus(3, frac, 60) != "EXCEPTION" {
			t.Errorf("fraction %v should flag EXCEPTION", frac)
		}
	}
	if analyzer.GCStatus(100, 0.01, 30) != "EXCEPTION" {
		t.Fatal("high count baseline should be EXCEPTION")
	}
	for _, count := range []int64{30, 10, 0} {
		if analyzer.GCStatus(count, 0.01, 30) != "OK" {
			t.Errorf("count %d should be OK again", count)
		}
	}
}
