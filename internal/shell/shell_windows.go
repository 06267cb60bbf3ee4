//go:build windows

package shell

import (
	"context"
	"os/exec"
	"syscall"
)

// buildCommand on Windows routes argv through the system command
// processor (cmd.exe /C) since argument quoting for native executables is
// otherwise platform-specific and error-prone; the window is hidden since
// the agent runs unattended.
func buildCommand(ctx context.Context, name string, args []string) *exec.Cmd {
	full := append([]string{"/C", name}, args...)
	cmd := exec.CommandContext(ctx, "cmd.exe", full...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd
}
