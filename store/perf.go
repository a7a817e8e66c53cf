package store

import (
	"database/sql"
	"fmt"
	"os"
)

// Sample 对应 perf 库 perf_sample 表中的一行，已 join 线程信息。
// 不变量: EventCount >= 0。
type Sample struct {
	ThreadID   int64
	ThreadName string
	ProcessID  int64
	Timestamp  int64 // 纳秒
	EventCount int64 // 周期/指令权重
}

// ThreadInfo 对应 perf_thread 表中的一行。
type ThreadInfo struct {
	ThreadID   int64
	ThreadName string
	ProcessID  int64
}

// PerfStore 是 CPU 采样转换库的只读句柄。
type PerfStore struct {
	db   *sql.DB
	path string
}

// OpenPerf 以只读方式打开 perf 库。文件不存在时返回错误 (调用方视为"缺失"而非致命)。
func OpenPerf(path string) (*PerfStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("perf store '%s' not available: %w", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open perf store '%s': %w", path, err)
	}
	return &PerfStore{db: db, path: path}, nil
}

// Path 返回底层 sqlite 文件路径。
func (s *PerfStore) Path() string { return s.path }

// Close 关闭底层连接。
func (s *PerfStore) Close() error { return s.db.Close() }

// Samples 返回指定进程集合内的全部样本，按时间戳升序。
func (s *PerfStore) Samples(pids []int64) ([]Sample, error) {
	return s.sampleQuery("", nil, pids)
}

// SamplesInRange 返回时间戳落在 [start, end] (含端点) 内的样本，按时间戳升序。
// 调用方给定归因窗口时可据此把扫描范围压到窗口覆盖区间内。
func (s *PerfStore) SamplesInRange(start, end int64, pids []int64) ([]Sample, error) {
	return s.sampleQuery("AND s.timeStamp BETWEEN ? AND ?", []any{start, end}, pids)
}

// sampleQuery 是样本查询共用的 join 骨架；extraCond 追加在 WHERE 子句上。
func (s *PerfStore) sampleQuery(extraCond string, extraArgs []any, pids []int64) ([]Sample, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT s.thread_id, s.timeStamp, s.event_count, t.thread_name, t.process_id
		FROM perf_sample s
		JOIN perf_thread t ON s.thread_id = t.thread_id
		WHERE t.process_id IN (%s) %s
		ORDER BY s.timeStamp`, placeholders(len(pids)), extraCond)
	args := make([]any, 0, len(pids)+len(extraArgs))
	for _, pid := range pids {
		args = append(args, pid)
	}
	args = append(args, extraArgs...)
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()
	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.ThreadID, &sm.Timestamp, &sm.EventCount, &sm.ThreadName, &sm.ProcessID); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// TotalLoad 返回指定进程集合内所有样本 event_count 之和。
func (s *PerfStore) TotalLoad(pids []int64) (int64, error) {
	if len(pids) == 0 {
		return 0, nil
	}
	q := fmt.Sprintf(`SELECT COALESCE(SUM(s.event_count), 0)
		FROM perf_sample s
		JOIN perf_thread t ON s.thread_id = t.thread_id
		WHERE t.process_id IN (%s)`, placeholders(len(pids)))
	args := make([]any, 0, len(pids))
	for _, pid := range pids {
		args = append(args, pid)
	}
	var total int64
	if err := s.db.QueryRow(q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("query total load: %w", err)
	}
	return total, nil
}

// ThreadLoad 返回线程名包含 nameLike 的线程上的样本 event_count 之和。
// 用于按线程名定位特定工作线程 (例如 GC 线程) 的负载。
func (s *PerfStore) ThreadLoad(nameLike string, pids []int64) (int64, error) {
	if len(pids) == 0 {
		return 0, nil
	}
	q := fmt.Sprintf(`SELECT COALESCE(SUM(s.event_count), 0)
		FROM perf_sample s
		JOIN perf_thread t ON s.thread_id = t.thread_id
		WHERE t.thread_name LIKE '%%' || ? || '%%' AND t.process_id IN (%s)`, placeholders(len(pids)))
	args := make([]any, 0, len(pids)+1)
	args = append(args, nameLike)
	for _, pid := range pids {
		args = append(args, pid)
	}
	var total int64
	if err := s.db.QueryRow(q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("query thread load '%s': %w", nameLike, err)
	}
	return total, nil
}

// Threads 返回指定进程集合内的线程信息。
func (s *PerfStore) Threads(pids []int64) ([]ThreadInfo, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT thread_id, thread_name, process_id
		FROM perf_thread
		WHERE process_id IN (%s)
		ORDER BY thread_id`, placeholders(len(pids)))
	args := make([]any, 0, len(pids))
	for _, pid := range pids {
		args = append(args, pid)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()
	var threads []ThreadInfo
	for rows.Next() {
		var t ThreadInfo
		if err := rows.Scan(&t.ThreadID, &t.ThreadName, &t.ProcessID); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}
