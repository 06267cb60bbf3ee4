// Package stats samples host-level metrics for the heartbeat: the
// pong{stats} reply to every ping, independent of and far cheaper than
// dispatching through the tool executor's process_list/system_info tools.
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one heartbeat sample.
type Snapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	OS            string  `json:"os"`
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// Collect samples CPU, memory, and host identity in a single instantaneous
// reading. cpu_percent is round((total - idle) / total * 100) over one read
// of the aggregated per-core tick counters (cpu.TimesWithContext), so no
// sampling window is waited on.
func Collect(ctx context.Context) (Snapshot, error) {
	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: read host info: %w", err)
	}

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: read cpu times: %w", err)
	}
	var cpuPercent float64
	if len(times) > 0 {
		t := times[0]
		total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
		if total > 0 {
			cpuPercent = math.Round((total - t.Idle) / total * 100)
		}
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stats: read memory: %w", err)
	}

	const mib = 1024 * 1024
	return Snapshot{
		CPUPercent:    cpuPercent,
		MemoryUsedMB:  float64(vmem.Used) / mib,
		MemoryTotalMB: float64(vmem.Total) / mib,
		OS:            hostInfo.OS,
		Hostname:      hostInfo.Hostname,
		UptimeSeconds: hostInfo.Uptime,
	}, nil
}
