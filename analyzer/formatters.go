package analyzer

import (
	"fmt"
	"time"
)

// FormatSampleValue 将样本值 (如 CPU 时间或计数) 转换为人类可读的字符串。
func FormatSampleValue(value int64, unit string) string {
	switch unit {
	case "nanoseconds":
		return FormatNanos(value)
	case "bytes":
		return FormatBytes(value)
	case "count":
		return fmt.Sprintf("%d", value)
	default:
		return fmt.Sprintf("%d %s", value, unit) // 回退方案
	}
}

// FormatNanos 将纳秒时长转换为人类可读的字符串。
func FormatNanos(ns int64) string {
	d := time.Duration(ns) * time.Nanosecond
	if d >= time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d >= time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	if d >= time.Microsecond {
		return fmt.Sprintf("%.2fus", float64(d.Nanoseconds())/1000)
	}
	return fmt.Sprintf("%dns", d.Nanoseconds())
}

// FormatBytes 将字节数转换为人类可读的字符串 (KB, MB, GB)。
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
