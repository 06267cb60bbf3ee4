package tools

import (
	"fmt"

	"github.com/marcosnunesmbs/smith/internal/guard"
	shelladapter "github.com/marcosnunesmbs/smith/internal/shell"
)

// NewGitTools builds the git category. Every tool goes through the shell
// adapter with argv ["git", "-C", repoPath, ...] except git_clone, which
// runs ["git", "clone", url, dest] from the sandbox root; directly grounded on the
// existing git_log tool — same -C invocation, same GIT_CEILING_DIRECTORIES
// trick to stop git from walking up past the sandbox root looking for a
// repository — generalized from git's one read-only subcommand to a full
// category of read and write operations.
func NewGitTools(sandbox *Sandbox) []Tool {
	readOnly := []struct {
		name string
		args []string
		desc string
	}{
		{"git_status", []string{"status", "--porcelain=v2", "--branch"}, "Show working tree status."},
		{"git_diff", []string{"diff"}, "Show unstaged changes."},
		{"git_log", []string{"log", "--format=%h | %ad | %an | %s", "--date=short", "-n", "20"}, "Show recent commit history."},
	}

	var tools []Tool
	for _, t := range readOnly {
		t := t
		tools = append(tools, Tool{
			Name:        t.name,
			Category:    CategoryGit,
			Description: t.desc,
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString}},
			Handler:     gitReadOnlyHandler(t.args),
		})
	}

	tools = append(tools,
		Tool{
			Name:        "git_add",
			Category:    CategoryGit,
			Description: "Stage files for commit.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "files", Type: ArgStringSlice, Default: []string{"."}},
			},
			Handler: gitAddHandler,
		},
		Tool{
			Name:        "git_commit",
			Category:    CategoryGit,
			Description: "Create a commit from the staged changes.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "message", Type: ArgString, Required: true},
			},
			Handler: gitCommitHandler,
		},
		Tool{
			Name:        "git_push",
			Category:    CategoryGit,
			Description: "Push the current branch to its remote.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString}},
			Handler:     gitSimpleDestructiveHandler([]string{"push"}),
		},
		Tool{
			Name:        "git_pull",
			Category:    CategoryGit,
			Description: "Pull from the current branch's remote.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString}},
			Handler:     gitSimpleDestructiveHandler([]string{"pull"}),
		},
		Tool{
			Name:        "git_checkout",
			Category:    CategoryGit,
			Description: "Check out a branch or commit.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "ref", Type: ArgString, Required: true},
			},
			Handler: gitCheckoutHandler,
		},
		Tool{
			Name:        "git_create_branch",
			Category:    CategoryGit,
			Description: "Create a new branch without checking it out.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "name", Type: ArgString, Required: true},
			},
			Handler: gitCreateBranchHandler,
		},
		Tool{
			Name:        "git_stash",
			Category:    CategoryGit,
			Description: "Stash uncommitted changes.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString}},
			Handler:     gitSimpleDestructiveHandler([]string{"stash"}),
		},
		Tool{
			Name:        "git_clone",
			Category:    CategoryGit,
			Description: "Clone a repository into a destination within the sandbox.",
			Args: []ArgDescriptor{
				{Name: "url", Type: ArgString, Required: true},
				{Name: "destination", Type: ArgString, Required: true},
			},
			Handler: gitCloneHandler,
		},
		Tool{
			Name:        "git_worktree_add",
			Category:    CategoryGit,
			Description: "Add a worktree at a destination within the sandbox.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "destination", Type: ArgString, Required: true},
				{Name: "ref", Type: ArgString},
			},
			Handler: gitWorktreeAddHandler,
		},
	)

	return tools
}

func runGit(ctx Context, repoPath string, gitArgs []string) Result {
	if !guard.IsCommandAllowed("git", ctx.AllowedCmds) {
		return Result{Success: false, Error: fmt.Sprintf("%v: \"git\" is not in allowed_commands (allowed_shell_commands)", ErrNotAllowed)}
	}

	full := append([]string{"-C", repoPath}, gitArgs...)
	res := ctx.Shell.Run(ctx.Context, "git", full, shelladapter.Options{
		Cwd:     repoPath,
		Timeout: ctx.Timeout,
		Env:     []string{"GIT_CEILING_DIRECTORIES=" + ctx.Sandbox.Root()},
	})
	return shellResultToTool(res)
}

func gitRepoPath(ctx Context, args map[string]any) (string, error) {
	rawPath, err := extractString(args, "path", false)
	if err != nil {
		return "", err
	}
	if rawPath == "" {
		return ctx.Sandbox.Root(), nil
	}
	return guardPath(ctx, rawPath, false)
}

func gitReadOnlyHandler(gitArgs []string) Handler {
	return func(ctx Context, args map[string]any) (Result, error) {
		repoPath, err := gitRepoPath(ctx, args)
		if err != nil {
			return resultFor(err), nil
		}
		return runGit(ctx, repoPath, gitArgs), nil
	}
}

func gitSimpleDestructiveHandler(gitArgs []string) Handler {
	return func(ctx Context, args map[string]any) (Result, error) {
		if err := guardDestructive(ctx); err != nil {
			return resultFor(err), nil
		}
		repoPath, err := gitRepoPath(ctx, args)
		if err != nil {
			return resultFor(err), nil
		}
		return runGit(ctx, repoPath, gitArgs), nil
	}
}

func gitAddHandler(ctx Context, args map[string]any) (Result, error) {
	repoPath, err := gitRepoPath(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	files, err := extractStringSlice(args, "files", false)
	if err != nil {
		return resultFor(err), nil
	}
	if len(files) == 0 {
		files = []string{"."}
	}
	return runGit(ctx, repoPath, append([]string{"add"}, files...)), nil
}

func gitCommitHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	repoPath, err := gitRepoPath(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	message, err := extractString(args, "message", true)
	if err != nil {
		return resultFor(err), nil
	}
	return runGit(ctx, repoPath, []string{"commit", "-m", message}), nil
}

func gitCheckoutHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	repoPath, err := gitRepoPath(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	ref, err := extractString(args, "ref", true)
	if err != nil {
		return resultFor(err), nil
	}
	return runGit(ctx, repoPath, []string{"checkout", ref}), nil
}

func gitCreateBranchHandler(ctx Context, args map[string]any) (Result, error) {
	repoPath, err := gitRepoPath(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	name, err := extractString(args, "name", true)
	if err != nil {
		return resultFor(err), nil
	}
	return runGit(ctx, repoPath, []string{"branch", name}), nil
}

func gitCloneHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	url, err := extractString(args, "url", true)
	if err != nil {
		return resultFor(err), nil
	}
	destination, err := extractString(args, "destination", true)
	if err != nil {
		return resultFor(err), nil
	}
	resolvedDest, err := guardPath(ctx, destination, true)
	if err != nil {
		return resultFor(err), nil
	}
	if !guard.IsCommandAllowed("git", ctx.AllowedCmds) {
		return Result{Success: false, Error: fmt.Sprintf("%v: \"git\" is not in allowed_commands (allowed_shell_commands)", ErrNotAllowed)}, nil
	}
	res := ctx.Shell.Run(ctx.Context, "git", []string{"clone", url, resolvedDest}, shelladapter.Options{
		Cwd:     ctx.Sandbox.Root(),
		Timeout: ctx.Timeout,
		Env:     []string{"GIT_CEILING_DIRECTORIES=" + ctx.Sandbox.Root()},
	})
	return shellResultToTool(res), nil
}

func gitWorktreeAddHandler(ctx Context, args map[string]any) (Result, error) {
	if err := guardDestructive(ctx); err != nil {
		return resultFor(err), nil
	}
	repoPath, err := gitRepoPath(ctx, args)
	if err != nil {
		return resultFor(err), nil
	}
	destination, err := extractString(args, "destination", true)
	if err != nil {
		return resultFor(err), nil
	}
	resolvedDest, err := guardPath(ctx, destination, true)
	if err != nil {
		return resultFor(err), nil
	}
	ref, err := extractString(args, "ref", false)
	if err != nil {
		return resultFor(err), nil
	}

	gitArgs := []string{"worktree", "add", resolvedDest}
	if ref != "" {
		gitArgs = append(gitArgs, ref)
	}
	return runGit(ctx, repoPath, gitArgs), nil
}
