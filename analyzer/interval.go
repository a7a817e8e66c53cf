package analyzer

import (
	"sort"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

// TimeRange 是一个有序区间 (Start <= End)，单位纳秒。
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ThreadKey 唯一标识一个采样线程。同名线程按 TID 区分。
type ThreadKey struct {
	TID  int64
	Name string
	PID  int64
}

// MergeTimeRanges 返回输入区间的最小非重叠覆盖：
// 按 Start 升序排序后单趟扫描，下一区间的 Start 不超过当前合并区间的 End
// 时延长 End，否则开启新的合并区间。O(n log n)。
// 性质: 空输入返回空；单区间原样返回；结果有序、两两不相交；幂等。
func MergeTimeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]TimeRange, 0, len(sorted))
	merged = append(merged, sorted[0])
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// AttributeLoad 把样本负载按线程归因到一组合并后的时间区间上：
// 时间戳落在任一 [Start, End] (含端点) 内的样本，其 event_count 计入对应线程。
// merged 必须满足 MergeTimeRanges 的输出不变量，因此同一事件名下任何样本
// 至多被统计一次。不同事件名的原始区间真实重叠时，同一样本可以分别计入
// 两个名字——这是有意保留的近似 (见 DESIGN.md)。
func AttributeLoad(merged []TimeRange, samples []store.Sample) map[ThreadKey]int64 {
	totals := make(map[ThreadKey]int64)
	if len(merged) == 0 || len(samples) == 0 {
		return totals
	}
	for _, s := range samples {
		// merged 有序，二分定位首个 End >= Timestamp 的区间
		i := sort.Search(len(merged), func(i int) bool {
			return merged[i].End >= s.Timestamp
		})
		if i < len(merged) && merged[i].Start <= s.Timestamp {
			key := ThreadKey{TID: s.ThreadID, Name: s.ThreadName, PID: s.ProcessID}
			totals[key] += s.EventCount
		}
	}
	return totals
}

// ClipRanges 把区间裁剪到给定窗口集合内；windows 为空时原样返回。
// 与窗口不相交的区间被丢弃，部分相交的区间被截断。
func ClipRanges(ranges, windows []TimeRange) []TimeRange {
	if len(windows) == 0 {
		return ranges
	}
	var clipped []TimeRange
	for _, r := range ranges {
		for _, w := range windows {
			start, end := r.Start, r.End
			if start < w.Start {
				start = w.Start
			}
			if end > w.End {
				end = w.End
			}
			if start <= end {
				clipped = append(clipped, TimeRange{Start: start, End: end})
			}
		}
	}
	return clipped
}
