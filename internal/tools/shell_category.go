package tools

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcosnunesmbs/smith/internal/guard"
	shelladapter "github.com/marcosnunesmbs/smith/internal/shell"
)

// NewShellTools builds the shell category: run_command, run_script, which.
// Grounded on the existing exec.CommandContext-based tools (search_code,
// find_files, git_log all spawned subprocesses the same way) generalized to
// an arbitrary allowlisted binary instead of one fixed tool per binary, and
// routed through the OS-abstracting internal/shell.Adapter instead of
// exec.CommandContext directly so the timeout/process-group-kill behavior
// is shared with every other category that shells out.
func NewShellTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "run_command",
			Category:    CategoryShell,
			Description: "Run a shell command with arguments. The command's base binary must be in the configured allowlist, if one is set.",
			Args: []ArgDescriptor{
				{Name: "command", Type: ArgString, Required: true},
				{Name: "args", Type: ArgStringSlice},
				{Name: "cwd", Type: ArgString},
			},
			Handler: runCommandHandler,
		},
		{
			Name:        "run_script",
			Category:    CategoryShell,
			Description: "Write a script to a temporary file and execute it with the given runtime (bash, sh, node, python3).",
			Args: []ArgDescriptor{
				{Name: "content", Type: ArgString, Required: true},
				{Name: "runtime", Type: ArgString, Default: "bash"},
			},
			Handler: runScriptHandler,
		},
		{
			Name:        "which",
			Category:    CategoryShell,
			Description: "Resolve a binary name to its absolute path on PATH.",
			Args:        []ArgDescriptor{{Name: "binary", Type: ArgString, Required: true}},
			Handler:     whichHandler,
		},
	}
}

func runCommandHandler(ctx Context, args map[string]any) (Result, error) {
	command, err := extractString(args, "command", true)
	if err != nil {
		return resultFor(err), nil
	}
	argv, err := extractStringSlice(args, "args", false)
	if err != nil {
		return resultFor(err), nil
	}
	cwd, err := extractString(args, "cwd", false)
	if err != nil {
		return resultFor(err), nil
	}

	if !guard.IsCommandAllowed(command, ctx.AllowedCmds) {
		return Result{Success: false, Error: fmt.Sprintf("%v: %q is not in allowed_commands (allowed_shell_commands)", ErrNotAllowed, command)}, nil
	}

	workDir := ctx.Sandbox.Root()
	if cwd != "" {
		resolved, err := guardPath(ctx, cwd, false)
		if err != nil {
			return resultFor(err), nil
		}
		workDir = resolved
	}

	res := ctx.Shell.Run(ctx.Context, command, argv, shelladapter.Options{
		Cwd:     workDir,
		Timeout: ctx.Timeout,
	})

	return shellResultToTool(res), nil
}

func runScriptHandler(ctx Context, args map[string]any) (Result, error) {
	content, err := extractString(args, "content", true)
	if err != nil {
		return resultFor(err), nil
	}
	runtime, err := extractStringDefault(args, "runtime", "bash")
	if err != nil {
		return resultFor(err), nil
	}

	if !guard.IsCommandAllowed(runtime, ctx.AllowedCmds) {
		return Result{Success: false, Error: fmt.Sprintf("%v: %q is not in allowed_commands (allowed_shell_commands)", ErrNotAllowed, runtime)}, nil
	}

	ext := scriptExtension(runtime)
	tmp, err := os.CreateTemp(ctx.Sandbox.Root(), "smith-script-*"+ext)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to create temp script: %s", err)}, nil
	}
	scriptPath := tmp.Name()
	defer os.Remove(scriptPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return Result{Success: false, Error: fmt.Sprintf("failed to write temp script: %s", err)}, nil
	}
	tmp.Close()

	res := ctx.Shell.Run(ctx.Context, runtime, []string{scriptPath}, shelladapter.Options{
		Cwd:     ctx.Sandbox.Root(),
		Timeout: ctx.Timeout,
	})

	return shellResultToTool(res), nil
}

func scriptExtension(runtime string) string {
	switch filepath.Base(runtime) {
	case "node":
		return ".js"
	case "python3", "python":
		return ".py"
	default:
		return ".sh"
	}
}

func whichHandler(ctx Context, args map[string]any) (Result, error) {
	binary, err := extractString(args, "binary", true)
	if err != nil {
		return resultFor(err), nil
	}
	path := shelladapter.Which(binary)
	if path == "" {
		return Result{Success: true, Data: map[string]any{"found": false}}, nil
	}
	return Result{Success: true, Data: map[string]any{"found": true, "path": path}}, nil
}

// shellResultToTool converts a shell.Result into the tool Result envelope.
// A non-zero exit code is still success=true at this layer — the caller
// asked the command to run and it did; callers inspect exit_code/stderr to
// decide if the outcome was what they wanted. A timeout is the one
// shell-level condition this layer reports as a tool failure.
func shellResultToTool(res shelladapter.Result) Result {
	if res.TimedOut {
		return Result{Success: false, Error: fmt.Sprintf("%v", ErrTimeout)}
	}
	return Result{Success: true, Data: map[string]any{
		"exit_code": res.ExitCode,
		"stdout":    guard.TruncateOutput(res.Stdout, guard.DefaultOutputCap),
		"stderr":    guard.TruncateOutput(res.Stderr, guard.DefaultOutputCap),
	}}
}
