package store_test

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/ZephyrDeng/perfstep-analyzer/store"
)

// createTraceFixture 按约定 schema 生成一个最小 trace 库。
func createTraceFixture(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE callstack (name TEXT, ts INTEGER, dur INTEGER, callid INTEGER)`,
		`CREATE TABLE thread (id INTEGER, ipid INTEGER)`,
		`CREATE TABLE process (ipid INTEGER, pid INTEGER, name TEXT)`,
		`CREATE TABLE trace_range (start_ts INTEGER, end_ts INTEGER)`,
		`INSERT INTO trace_range VALUES (1000, 121000)`,
		`INSERT INTO process VALUES (1, 100, 'com.example.shop'), (2, 200, 'render_service')`,
		`INSERT INTO thread VALUES (11, 1), (21, 2)`,
		`INSERT INTO callstack VALUES
			('H:FullGC::RunPhases', 1100, 50, 11),
			('H:FullGC::RunPhases', 1140, 60, 11),
			('H:ReceiveVsync dataCount:24B', 2000, 10, 11),
			('H:RSMainThread::DoComposition', 2100, 400, 21)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

// createPerfFixture 按约定 schema 生成一个最小 perf 库。
func createPerfFixture(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE perf_sample (thread_id INTEGER, timeStamp INTEGER, event_count INTEGER)`,
		`CREATE TABLE perf_thread (thread_id INTEGER, thread_name TEXT, process_id INTEGER)`,
		`INSERT INTO perf_thread VALUES (11, 'com.example.shop', 100), (12, 'OS_GC_Thread', 100)`,
		`INSERT INTO perf_sample VALUES (11, 1100, 70), (12, 1150, 30), (11, 5000, 100)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}

func TestOpenTraceMissingFile(t *testing.T) {
	_, err := store.OpenTrace(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Fatal("expected error for missing trace store")
	}
}

func TestTraceStoreQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	createTraceFixture(t, path)
	ts, err := store.OpenTrace(path)
	if err != nil {
		t.Fatalf("OpenTrace: %v", err)
	}
	defer ts.Close()

	start, end, err := ts.Range()
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if start != 1000 || end != 121000 {
		t.Errorf("Range = (%d, %d), want (1000, 121000)", start, end)
	}

	pids, err := ts.AppProcessIDs("example.shop")
	if err != nil {
		t.Fatalf("AppProcessIDs: %v", err)
	}
	if len(pids) != 1 || pids[0] != 100 {
		t.Errorf("AppProcessIDs = %v, want [100]", pids)
	}

	events, err := ts.EventsByName("H:FullGC::RunPhases", pids)
	if err != nil {
		t.Fatalf("EventsByName: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("EventsByName returned %d events, want 2", len(events))
	}
	if events[0].Ts > events[1].Ts {
		t.Error("events not ordered by ts")
	}

	n, err := ts.CountEvents("H:FullGC::RunPhases", pids)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if n != 2 {
		t.Errorf("CountEvents = %d, want 2", n)
	}

	// 前缀匹配应命中携带 payload 的事件名
	vsyncs, err := ts.EventsLike("H:ReceiveVsync", pids)
	if err != nil {
		t.Fatalf("EventsLike: %v", err)
	}
	if len(vsyncs) != 1 {
		t.Errorf("EventsLike = %d events, want 1", len(vsyncs))
	}

	// LIKE 前缀预筛 + Go 侧精确匹配
	matched, err := ts.EventsMatching([]string{"H:ReceiveVsync"},
		func(name string) bool { return strings.Contains(name, "Vsync") }, pids)
	if err != nil {
		t.Fatalf("EventsMatching: %v", err)
	}
	if len(matched) != 1 {
		t.Errorf("EventsMatching = %d events, want 1", len(matched))
	}

	// 无前缀时退化为全量扫描后过滤
	matched, err = ts.EventsMatching(nil,
		func(name string) bool { return strings.HasPrefix(name, "H:FullGC") }, pids)
	if err != nil {
		t.Fatalf("EventsMatching(nil prefixes): %v", err)
	}
	if len(matched) != 2 {
		t.Errorf("EventsMatching(nil prefixes) = %d events, want 2", len(matched))
	}

	// 预筛必须真正缩小行集：谓词全通过时只有前缀命中的行返回
	matched, err = ts.EventsMatching([]string{"H:FullGC"},
		func(string) bool { return true }, pids)
	if err != nil {
		t.Fatalf("EventsMatching(prefilter): %v", err)
	}
	if len(matched) != 2 {
		t.Errorf("prefilter returned %d events, want 2", len(matched))
	}

	rsPid, err := ts.ProcessIDByName("render_service")
	if err != nil {
		t.Fatalf("ProcessIDByName: %v", err)
	}
	if rsPid != 200 {
		t.Errorf("ProcessIDByName = %d, want 200", rsPid)
	}

	// 空 pid 集合不应报错，返回空
	none, err := ts.EventsByName("H:FullGC::RunPhases", nil)
	if err != nil || none != nil {
		t.Errorf("EventsByName(nil pids) = (%v, %v), want (nil, nil)", none, err)
	}
}

func TestPerfStoreQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.db")
	createPerfFixture(t, path)
	ps, err := store.OpenPerf(path)
	if err != nil {
		t.Fatalf("OpenPerf: %v", err)
	}
	defer ps.Close()

	pids := []int64{100}
	samples, err := ps.Samples(pids)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("Samples returned %d rows, want 3", len(samples))
	}
	if samples[0].ThreadName != "com.example.shop" || samples[0].ProcessID != 100 {
		t.Errorf("sample thread join wrong: %+v", samples[0])
	}

	total, err := ps.TotalLoad(pids)
	if err != nil {
		t.Fatalf("TotalLoad: %v", err)
	}
	if total != 200 {
		t.Errorf("TotalLoad = %d, want 200", total)
	}

	gcLoad, err := ps.ThreadLoad("OS_GC_Thread", pids)
	if err != nil {
		t.Fatalf("ThreadLoad: %v", err)
	}
	if gcLoad != 30 {
		t.Errorf("ThreadLoad = %d, want 30", gcLoad)
	}

	// 时间窗口查询含两端端点
	ranged, err := ps.SamplesInRange(1100, 1150, pids)
	if err != nil {
		t.Fatalf("SamplesInRange: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("SamplesInRange = %d rows, want 2", len(ranged))
	}
	ranged, err = ps.SamplesInRange(1101, 4999, pids)
	if err != nil {
		t.Fatalf("SamplesInRange: %v", err)
	}
	if len(ranged) != 1 {
		t.Errorf("SamplesInRange(open interior) = %d rows, want 1", len(ranged))
	}

	threads, err := ps.Threads(pids)
	if err != nil {
		t.Fatalf("Threads: %v", err)
	}
	if len(threads) != 2 {
		t.Errorf("Threads = %d rows, want 2", len(threads))
	}
}
