package analyzer_test

import (
	"reflect"
	"testing"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

func TestMergeTimeRangesEmpty(t *testing.T) {
	if got := analyzer.MergeTimeRanges(nil); len(got) != 0 {
		t.Errorf("MergeTimeRanges(nil) = %v, want empty", got)
	}
}

func TestMergeTimeRangesSingle(t *testing.T) {
	in := []analyzer.TimeRange{{Start: 3, End: 7}}
	got := analyzer.MergeTimeRanges(in)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("MergeTimeRanges(single) = %v, want %v", got, in)
	}
}

func TestMergeTimeRanges(t *testing.T) {
	cases := []struct {
		name string
		in   []analyzer.TimeRange
		want []analyzer.TimeRange
	}{
		{
			name: "overlapping pair plus disjoint",
			in:   []analyzer.TimeRange{{0, 10}, {5, 15}, {20, 30}},
			want: []analyzer.TimeRange{{0, 15}, {20, 30}},
		},
		{
			name: "unsorted input",
			in:   []analyzer.TimeRange{{20, 30}, {0, 10}, {5, 15}},
			want: []analyzer.TimeRange{{0, 15}, {20, 30}},
		},
		{
			name: "touching ranges merge",
			in:   []analyzer.TimeRange{{0, 10}, {10, 20}},
			want: []analyzer.TimeRange{{0, 20}},
		},
		{
			name: "contained range",
			in:   []analyzer.TimeRange{{0, 100}, {10, 20}},
			want: []analyzer.TimeRange{{0, 100}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := analyzer.MergeTimeRanges(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MergeTimeRanges(%v) = %v, want %v", tc.in, got, tc.want)
			}
			// 有序且两两不相交
			for i := 1; i < len(got); i++ {
				if got[i].Start <= got[i-1].End {
					t.Errorf("ranges %v and %v overlap or touch", got[i-1], got[i])
				}
			}
			// 幂等
			again := analyzer.MergeTimeRanges(got)
			if !reflect.DeepEqual(again, got) {
				t.Errorf("MergeTimeRanges not idempotent: %v -> %v", got, again)
			}
		})
	}
}

func sample(tid int64, ts int64, count int64) store.Sample {
	return store.Sample{ThreadID: tid, ThreadName: "worker", ProcessID: 1, Timestamp: ts, EventCount: count}
}

func TestAttributeLoadInclusiveBounds(t *testing.T) {
	merged := []analyzer.TimeRange{{Start: 100, End: 200}}
	samples := []store.Sample{
		sample(1, 99, 5),   // 区间外
		sample(1, 100, 7),  // 起点，含
		sample(1, 200, 11), // 终点，含
		sample(1, 201, 13), // 区间外
	}
	totals := analyzer.AttributeLoad(merged, samples)
	key := analyzer.ThreadKey{TID: 1, Name: "worker", PID: 1}
	if totals[key] != 18 {
		t.Errorf("AttributeLoad = %d, want 18 (inclusive [start, end])", totals[key])
	}
}

func TestAttributeLoadNoDoubleCountAfterMerge(t *testing.T) {
	// §8 场景：3 个原始区间 [0,10],[5,15],[20,30] 合并为 [0,15],[20,30]，
	// 落在重叠区 [5,10] 内的样本只计一次。
	merged := analyzer.MergeTimeRanges([]analyzer.TimeRange{{0, 10}, {5, 15}, {20, 30}})
	samples := []store.Sample{
		sample(1, 7, 100),  // 原始重叠区
		sample(1, 12, 10),  // 仅第二个原始区间
		sample(1, 25, 1),   // 第二个合并区间
		sample(1, 17, 999), // 合并区间之间的空隙
	}
	totals := analyzer.AttributeLoad(merged, samples)
	key := analyzer.ThreadKey{TID: 1, Name: "worker", PID: 1}
	if totals[key] != 111 {
		t.Errorf("AttributeLoad = %d, want 111", totals[key])
	}
}

func TestAttributeLoadGroupsByThread(t *testing.T) {
	merged := []analyzer.TimeRange{{Start: 0, End: 100}}
	samples := []store.Sample{
		{ThreadID: 1, ThreadName: "a", ProcessID: 1, Timestamp: 10, EventCount: 3},
		{ThreadID: 2, ThreadName: "a", ProcessID: 1, Timestamp: 20, EventCount: 5},
		{ThreadID: 1, ThreadName: "a", ProcessID: 1, Timestamp: 30, EventCount: 4},
	}
	totals := analyzer.AttributeLoad(merged, samples)
	if len(totals) != 2 {
		t.Fatalf("got %d thread keys, want 2 (same name, distinct tid)", len(totals))
	}
	if totals[analyzer.ThreadKey{TID: 1, Name: "a", PID: 1}] != 7 {
		t.Errorf("tid 1 total = %d, want 7", totals[analyzer.ThreadKey{TID: 1, Name: "a", PID: 1}])
	}
}

func TestClipRanges(t *testing.T) {
	ranges := []analyzer.TimeRange{{0, 100}, {150, 200}, {300, 400}}
	windows := []analyzer.TimeRange{{50, 180}}
	got := analyzer.ClipRanges(ranges, windows)
	want := []analyzer.TimeRange{{50, 100}, {150, 180}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ClipRanges = %v, want %v", got, want)
	}
	// 空窗口集合原样返回
	if !reflect.DeepEqual(analyzer.ClipRanges(ranges, nil), ranges) {
		t.Error("ClipRanges with no windows should return input unchanged")
	}
}
