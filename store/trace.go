// Package store 封装对两类已转换查询库 (trace 库与 perf 库) 的只读访问。
// 两类库均为 sqlite 文件，由外部转换工具从原始抓取产物生成；
// 本包只消费固定 schema，不负责生成。
package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // database/sql 驱动注册
)

// Event 对应 trace 库 callstack 表中的一行。
// 不变量: Dur >= 0；同一库内 Ts 单调递增。
type Event struct {
	Name   string
	Ts     int64 // 纳秒
	Dur    int64 // 纳秒
	CallID int64 // 关联 thread.id
}

// TraceStore 是系统 trace 转换库的只读句柄。
type TraceStore struct {
	db   *sql.DB
	path string
}

// OpenTrace 以只读方式打开 trace 库。文件不存在时返回错误 (调用方视为"缺失"而非致命)。
func OpenTrace(path string) (*TraceStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("trace store '%s' not available: %w", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open trace store '%s': %w", path, err)
	}
	return &TraceStore{db: db, path: path}, nil
}

// Path 返回底层 sqlite 文件路径。
func (s *TraceStore) Path() string { return s.path }

// Close 关闭底层连接。
func (s *TraceStore) Close() error { return s.db.Close() }

// Range 返回该步骤整体的起止时间戳 (trace_range 单行表)。
func (s *TraceStore) Range() (start, end int64, err error) {
	row := s.db.QueryRow(`SELECT start_ts, end_ts FROM trace_range LIMIT 1`)
	if err := row.Scan(&start, &end); err != nil {
		return 0, 0, fmt.Errorf("query trace_range: %w", err)
	}
	return start, end, nil
}

// AppProcessIDs 按进程名模糊匹配返回被测应用的 pid 集合。
func (s *TraceStore) AppProcessIDs(appName string) ([]int64, error) {
	rows, err := s.db.Query(`SELECT pid FROM process WHERE name LIKE '%' || ? || '%'`, appName)
	if err != nil {
		return nil, fmt.Errorf("query app process ids: %w", err)
	}
	defer rows.Close()
	var pids []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		pids = append(pids, pid)
	}
	return pids, rows.Err()
}

// eventQuery 是所有事件查询共用的 join 骨架；nameCond 作用在 c.name 上。
func (s *TraceStore) eventQuery(nameCond string, nameArgs []any, pids []int64) ([]Event, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT c.name, c.ts, c.dur, c.callid
		FROM callstack c
		JOIN thread t ON c.callid = t.id
		JOIN process p ON t.ipid = p.ipid
		WHERE %s AND p.pid IN (%s)
		ORDER BY c.ts`, nameCond, placeholders(len(pids)))
	args := make([]any, 0, len(pids)+len(nameArgs))
	args = append(args, nameArgs...)
	for _, pid := range pids {
		args = append(args, pid)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Name, &e.Ts, &e.Dur, &e.CallID); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// EventsByName 返回指定进程集合内名称精确匹配的事件，按 ts 升序。
func (s *TraceStore) EventsByName(name string, pids []int64) ([]Event, error) {
	return s.eventQuery("c.name = ?", []any{name}, pids)
}

// EventsLike 返回名称以 prefix 开头的事件 (很多事件名携带可变 payload)。
func (s *TraceStore) EventsLike(prefix string, pids []int64) ([]Event, error) {
	return s.eventQuery("c.name LIKE ? || '%'", []any{prefix}, pids)
}

// Events 返回指定进程集合内的全部事件，按 ts 升序。
func (s *TraceStore) Events(pids []int64) ([]Event, error) {
	return s.eventQuery("c.name <> ''", nil, pids)
}

// EventsMatching 返回名称命中 match 谓词的事件，按 ts 升序。
// prefixes 非空时先在 SQL 侧用 LIKE 前缀缩小行集，再在 Go 侧做精确匹配；
// prefixes 为空时退化为全量扫描后过滤。
func (s *TraceStore) EventsMatching(prefixes []string, match func(name string) bool, pids []int64) ([]Event, error) {
	cond := "c.name <> ''"
	var args []any
	if len(prefixes) > 0 {
		conds := make([]string, len(prefixes))
		for i, p := range prefixes {
			conds[i] = "c.name LIKE ? || '%'"
			args = append(args, p)
		}
		cond = "(" + strings.Join(conds, " OR ") + ")"
	}
	events, err := s.eventQuery(cond, args, pids)
	if err != nil {
		return nil, err
	}
	var matched []Event
	for _, e := range events {
		if match(e.Name) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// CountEvents 返回名称精确匹配的事件数量。
func (s *TraceStore) CountEvents(name string, pids []int64) (int64, error) {
	if len(pids) == 0 {
		return 0, nil
	}
	q := fmt.Sprintf(`SELECT COUNT(*)
		FROM callstack c
		JOIN thread t ON c.callid = t.id
		JOIN process p ON t.ipid = p.ipid
		WHERE c.name = ? AND p.pid IN (%s)`, placeholders(len(pids)))
	args := make([]any, 0, len(pids)+1)
	args = append(args, name)
	for _, pid := range pids {
		args = append(args, pid)
	}
	var n int64
	if err := s.db.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events '%s': %w", name, err)
	}
	return n, nil
}

// ProcessIDByName 返回名称精确匹配的首个进程 pid (例如渲染服务进程)。
// 未找到时返回 (0, sql.ErrNoRows)。
func (s *TraceStore) ProcessIDByName(name string) (int64, error) {
	var pid int64
	err := s.db.QueryRow(`SELECT pid FROM process WHERE name = ? LIMIT 1`, name).Scan(&pid)
	if err != nil {
		return 0, err
	}
	return pid, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
