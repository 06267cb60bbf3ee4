package tools

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	gopsutilmem "github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// sensitiveEnvMarkers filters env_read's default output the way a
// credential-scanning step would: any key containing one of these
// substrings, case-insensitively, is withheld unless the caller explicitly
// asks for everything.
var sensitiveEnvMarkers = []string{"key", "token", "secret", "password"}

// NewProcessTools builds the processes category: process_list, process_get,
// process_kill, system_info, env_read. Grounded on gopsutil, the
// cross-platform process and host-stat library the pack's agent repos reach
// for instead of shelling out to ps/top — the same rationale that keeps
// run_command from being the only way to introspect the machine. Named with
// a process_ prefix (matching git_'s convention) because the bare "list" and
// "get" this category's own table row in the wire contract uses would
// collide with the filesystem category's own "list" tool name.
func NewProcessTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "process_list",
			Category:    CategoryProcesses,
			Description: "List running processes with PID, name, and CPU/memory usage.",
			Handler:     processListHandler,
		},
		{
			Name:        "process_get",
			Category:    CategoryProcesses,
			Description: "Get details for a single process by PID.",
			Args:        []ArgDescriptor{{Name: "pid", Type: ArgInt, Required: true}},
			Handler:     processGetHandler,
		},
		{
			Name:        "process_kill",
			Category:    CategoryProcesses,
			Description: "Terminate a process by PID.",
			Args: []ArgDescriptor{
				{Name: "pid", Type: ArgInt, Required: true},
				{Name: "force", Type: ArgBool, Default: false},
			},
			Handler: processKillHandler,
		},
		{
			Name:        "system_info",
			Category:    CategoryProcesses,
			Description: "Report host OS, architecture, hostname, uptime, CPU and memory usage.",
			Handler:     systemInfoHandler,
		},
		{
			Name:        "env_read",
			Category:    CategoryProcesses,
			Description: "Read environment variables. Keys that look like credentials are withheld unless all=true.",
			Args: []ArgDescriptor{
				{Name: "name", Type: ArgString},
				{Name: "all", Type: ArgBool, Default: false},
			},
			Handler: envReadHandler,
		},
	}
}

func processListHandler(ctx Context, args map[string]any) (Result, error) {
	procs, err := process.ProcessesWithContext(ctx.Context)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to list processes: %s", err)}, nil
	}

	type procInfo struct {
		PID        int32   `json:"pid"`
		Name       string  `json:"name"`
		CPUPercent float64 `json:"cpu_percent"`
		MemoryMB   float64 `json:"memory_mb"`
	}

	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx.Context)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx.Context)
		memInfo, _ := p.MemoryInfoWithContext(ctx.Context)
		var memMB float64
		if memInfo != nil {
			memMB = float64(memInfo.RSS) / (1024 * 1024)
		}
		out = append(out, procInfo{PID: p.Pid, Name: name, CPUPercent: cpuPct, MemoryMB: memMB})
	}

	return Result{Success: true, Data: map[string]any{"processes": out}}, nil
}

func processGetHandler(ctx Context, args map[string]any) (Result, error) {
	pid, err := extractInt(args, "pid", true, 0)
	if err != nil {
		return resultFor(err), nil
	}

	p, err := process.NewProcessWithContext(ctx.Context, int32(pid))
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("process %d not found: %s", pid, err)}, nil
	}

	name, _ := p.NameWithContext(ctx.Context)
	status, _ := p.StatusWithContext(ctx.Context)
	cmdline, _ := p.CmdlineWithContext(ctx.Context)
	cpuPct, _ := p.CPUPercentWithContext(ctx.Context)
	memInfo, _ := p.MemoryInfoWithContext(ctx.Context)
	createTime, _ := p.CreateTimeWithContext(ctx.Context)

	var memMB float64
	if memInfo != nil {
		memMB = float64(memInfo.RSS) / (1024 * 1024)
	}

	return Result{Success: true, Data: map[string]any{
		"pid":          pid,
		"name":         name,
		"status":       status,
		"cmdline":      cmdline,
		"cpu_percent":  cpuPct,
		"memory_mb":    memMB,
		"created_unix": createTime / 1000,
	}}, nil
}

func processKillHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	pid, err := extractInt(args, "pid", true, 0)
	if err != nil {
		return resultFor(err), nil
	}
	force, err := extractBool(args, "force", false)
	if err != nil {
		return resultFor(err), nil
	}

	p, err := process.NewProcessWithContext(ctx.Context, int32(pid))
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("process %d not found: %s", pid, err)}, nil
	}

	if force {
		err = p.KillWithContext(ctx.Context)
	} else {
		err = p.SendSignalWithContext(ctx.Context, syscall.SIGTERM)
	}
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to kill process %d: %s", pid, err)}, nil
	}

	return Result{Success: true, Data: map[string]any{"pid": pid, "killed": true}}, nil
}

func systemInfoHandler(ctx Context, args map[string]any) (Result, error) {
	hostInfo, err := host.InfoWithContext(ctx.Context)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to read host info: %s", err)}, nil
	}
	cpuPercents, _ := cpu.PercentWithContext(ctx.Context, 0, false)
	vmem, _ := gopsutilmem.VirtualMemoryWithContext(ctx.Context)

	data := map[string]any{
		"hostname":        hostInfo.Hostname,
		"os":              hostInfo.OS,
		"platform":        hostInfo.Platform,
		"arch":            hostInfo.KernelArch,
		"uptime_seconds":  hostInfo.Uptime,
		"memory_total_mb": 0,
		"memory_used_mb":  0,
		"cpu_percent":     0.0,
	}
	if len(cpuPercents) > 0 {
		data["cpu_percent"] = cpuPercents[0]
	}
	if vmem != nil {
		data["memory_total_mb"] = vmem.Total / (1024 * 1024)
		data["memory_used_mb"] = vmem.Used / (1024 * 1024)
	}

	return Result{Success: true, Data: data}, nil
}

func envReadHandler(ctx Context, args map[string]any) (Result, error) {
	name, err := extractString(args, "name", false)
	if err != nil {
		return resultFor(err), nil
	}
	all, err := extractBool(args, "all", false)
	if err != nil {
		return resultFor(err), nil
	}

	if name != "" {
		if !all && isSensitiveEnvKey(name) {
			return Result{Success: false, Error: fmt.Sprintf("%v: %q looks like a credential, pass all=true to read it", ErrNotAllowed, name)}, nil
		}
		return Result{Success: true, Data: map[string]any{"name": name, "value": os.Getenv(name)}}, nil
	}

	out := map[string]string{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if !all && isSensitiveEnvKey(parts[0]) {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return Result{Success: true, Data: map[string]any{"variables": out}}, nil
}

func isSensitiveEnvKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveEnvMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
