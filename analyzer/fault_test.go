package analyzer_test

import (
	"testing"

	"github.com/ZephyrDeng/perfstep-analyzer/analyzer"
)

func TestExtractProcessedNodesMax(t *testing.T) {
	events := []analyzer.EventView{
		{Name: "H:RSMainThread::DoComposition ProcessedNodes: 12", Ts: 1_000_000},
		{Name: "H:RSMainThread::DoComposition ProcessedNodes: 340", Ts: 5_000_000},
		{Name: "H:RSMainThread::DoComposition ProcessedNodes: 7", Ts: 9_000_000},
		{Name: "H:RSMainThread::Animate", Ts: 11_000_000}, // 无 payload
	}
	maxVal, relMs, ok := analyzer.ExtractProcessedNodesMax(events, 1_000_000)
	if !ok {
		t.Fatal("expected a ProcessedNodes match")
	}
	if maxVal != 340 {
		t.Errorf("max = %d, want 340", maxVal)
	}
	if relMs != 4.0 {
		t.Errorf("relMs = %v, want 4.0", relMs)
	}
}

func TestExtractProcessedNodesMaxNoMatch(t *testing.T) {
	events := []analyzer.EventView{{Name: "H:RSMainThread::Animate", Ts: 0}}
	if _, _, ok := analyzer.ExtractProcessedNodesMax(events, 0); ok {
		t.Error("expected no match")
	}
}

func TestSumAnimationSizes(t *testing.T) {
	events := []analyzer.EventView{
		{Name: "H:Animate nodeSize: 12 totalAnimationSize: 40"},
		{Name: "H:Animate nodeSize:3 totalAnimationSize:5"},
		{Name: "H:Animate nodeSize: 9"}, // 缺少配对值，忽略
		{Name: "H:FlushLayoutTask"},
	}
	nodeSize, animationSize := analyzer.SumAnimationSizes(events)
	if nodeSize != 15 {
		t.Errorf("nodeSize = %d, want 15", nodeSize)
	}
	if animationSize != 45 {
		t.Errorf("animationSize = %d, want 45", animationSize)
	}
}
