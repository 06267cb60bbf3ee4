package stats

import (
	"context"
	"testing"
)

func TestCollectReturnsPlausibleSnapshot(t *testing.T) {
	snap, err := Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if snap.Hostname == "" {
		t.Error("expected a non-empty hostname")
	}
	if snap.OS == "" {
		t.Error("expected a non-empty OS")
	}
	if snap.MemoryTotalMB <= 0 {
		t.Errorf("expected positive total memory, got %v", snap.MemoryTotalMB)
	}
	if snap.MemoryUsedMB < 0 || snap.MemoryUsedMB > snap.MemoryTotalMB*2 {
		t.Errorf("memory_used_mb out of plausible range: %v (total %v)", snap.MemoryUsedMB, snap.MemoryTotalMB)
	}
	if snap.CPUPercent < 0 {
		t.Errorf("expected non-negative cpu percent, got %v", snap.CPUPercent)
	}
}
