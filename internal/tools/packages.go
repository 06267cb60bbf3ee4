package tools

import (
	"fmt"
	"time"

	"github.com/marcosnunesmbs/smith/internal/guard"
	shelladapter "github.com/marcosnunesmbs/smith/internal/shell"
)

const defaultPackageTimeout = 120 * time.Second

// NewPackageTools builds the packages category: npm_install, npm_run,
// pip_install, cargo_build. Every tool is a thin, allowlisted wrapper
// around the corresponding package manager binary, grounded on the same
// run_command pattern as the shell category — these exist as named tools
// (rather than leaving callers to compose run_command themselves) so their
// timeout (the task timeout capped at 120s, or 120s when none is set) and
// working-directory resolution are consistent regardless of which manager
// is invoked.
func NewPackageTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "npm_install",
			Category:    CategoryPackages,
			Description: "Run npm install in a project directory.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "packages", Type: ArgStringSlice},
			},
			Handler: npmInstallHandler,
		},
		{
			Name:        "npm_run",
			Category:    CategoryPackages,
			Description: "Run an npm script in a project directory.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "script", Type: ArgString, Required: true},
			},
			Handler: npmRunHandler,
		},
		{
			Name:        "pip_install",
			Category:    CategoryPackages,
			Description: "Install Python packages, or install from requirements.txt when packages is empty.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "packages", Type: ArgStringSlice},
			},
			Handler: pipInstallHandler,
		},
		{
			Name:        "cargo_build",
			Category:    CategoryPackages,
			Description: "Run cargo build in a project directory.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "release", Type: ArgBool, Default: false},
			},
			Handler: cargoBuildHandler,
		},
	}
}

func packageWorkDir(ctx Context, args map[string]any) (string, error) {
	rawPath, err := extractString(args, "path", false)
	if err != nil {
		return "", err
	}
	if rawPath == "" {
		return ctx.Sandbox.Root(), nil
	}
	return guardPath(ctx, rawPath, false)
}

func runPackageManager(ctx Context, bin string, argv []string, workDir string) Result {
	if !guard.IsCommandAllowed(bin, ctx.AllowedCmds) {
		return Result{Success: false, Error: fmt.Sprintf("%v: %q is not in allowed_commands (allowed_shell_commands)", ErrNotAllowed, bin)}
	}

	timeout := ctx.Timeout
	if timeout <= 0 || timeout > defaultPackageTimeout {
		timeout = defaultPackageTimeout
	}

	res := ctx.Shell.Run(ctx.Context, bin, argv, shelladapter.Options{
		Cwd:     workDir,
		Timeout: timeout,
	})
	return shellResultToTool(res)
}

func npmInstallHandler(ctx Context, args map[string]any) (Result, error) {
	workDir, err := packageWorkDir(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	packages, err := extractStringSlice(args, "packages", false)
	if err != nil {
		return resultFor(err), nil
	}
	argv := append([]string{"install"}, packages...)
	return runPackageManager(ctx, "npm", argv, workDir), nil
}

func npmRunHandler(ctx Context, args map[string]any) (Result, error) {
	workDir, err := packageWorkDir(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	script, err := extractString(args, "script", true)
	if err != nil {
		return resultFor(err), nil
	}
	return runPackageManager(ctx, "npm", []string{"run", script}, workDir), nil
}

// pipInstallHandler resolves the package-manager's own dual calling
// convention: an explicit package list takes precedence, and an empty list
// falls back to installing from requirements.txt in the working directory,
// matching what `pip install -r requirements.txt` vs `pip install pkg...`
// actually do.
func pipInstallHandler(ctx Context, args map[string]any) (Result, error) {
	workDir, err := packageWorkDir(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	packages, err := extractStringSlice(args, "packages", false)
	if err != nil {
		return resultFor(err), nil
	}

	var argv []string
	if len(packages) > 0 {
		argv = append([]string{"install"}, packages...)
	} else {
		argv = []string{"install", "-r", "requirements.txt"}
	}
	return runPackageManager(ctx, "pip", argv, workDir), nil
}

func cargoBuildHandler(ctx Context, args map[string]any) (Result, error) {
	workDir, err := packageWorkDir(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	release, err := extractBool(args, "release", false)
	if err != nil {
		return resultFor(err), nil
	}
	argv := []string{"build"}
	if release {
		argv = append(argv, "--release")
	}
	return runPackageManager(ctx, "cargo", argv, workDir), nil
}
