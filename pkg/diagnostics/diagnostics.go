// Package diagnostics reports process and host health for the
// /health endpoint, grounded on the teacher's reliance on
// github.com/shirou/gopsutil/v3 for runtime introspection (the teacher
// used it to size executor capacity; here it backs a read-only health
// snapshot instead).
package diagnostics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/adil-adysh/plan-flow/pkg/controller"
)

// Snapshot is a point-in-time health report.
type Snapshot struct {
	Status             string    `json:"status"`
	CheckedAt          time.Time `json:"checked_at"`
	ScheduledOccurrences int     `json:"scheduled_occurrences"`
	MemoryUsedPercent   float64  `json:"memory_used_percent"`
	MemoryTotalBytes    uint64   `json:"memory_total_bytes"`
}

// Reporter builds health snapshots over a Controller.
type Reporter struct {
	controller *controller.Controller
	now        func() time.Time
}

// New constructs a Reporter over an already-wired Controller.
func New(c *controller.Controller) *Reporter {
	return &Reporter{controller: c, now: time.Now}
}

// Check gathers a health Snapshot. Memory stats are best-effort: if
// gopsutil cannot read host memory (e.g. inside a restricted
// container), the snapshot still reports scheduler status with zeroed
// memory fields rather than failing the whole check.
func (r *Reporter) Check(ctx context.Context) Snapshot {
	snap := Snapshot{
		Status:               "ok",
		CheckedAt:            r.now(),
		ScheduledOccurrences: len(r.controller.GetScheduledOccurrences()),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryUsedPercent = vm.UsedPercent
		snap.MemoryTotalBytes = vm.Total
	}

	return snap
}
