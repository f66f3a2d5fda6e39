package oracle

import (
	"errors"
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms)*time.Millisecond, nil)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got %d/%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLLMStatsWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	stats := NewLLMStats(time.Minute)
	stats.now = func() time.Time { return now }

	stats.Record(100*time.Millisecond, errors.New("boom"))
	now = now.Add(2 * time.Minute)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after the window, got %d", snap.Count)
	}

	stats.Record(200*time.Millisecond, nil)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.Failures != 0 {
		t.Fatalf("expected one fresh success, got %+v", snap)
	}
}

func TestLLMStatsFailuresAndNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(-10*time.Millisecond, errors.New("timeout"))
	stats.Record(10*time.Millisecond, nil)
	snap := stats.Snapshot()
	if snap.Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", snap.Failures)
	}
	if snap.MinMs != 0 {
		t.Fatalf("expected clamped duration=0, got %d", snap.MinMs)
	}
}
