// Package tools implements Smith's tool registry, executor, and the
// category modules (filesystem, shell, git, network, processes, packages,
// system, browser) that do the actual work a task requests.
package tools

import (
	"context"
	"time"

	"github.com/marcosnunesmbs/smith/internal/browser"
	"github.com/marcosnunesmbs/smith/internal/shell"
)

// Category identifies one of the eight tool groups. filesystem, shell, git,
// and network can be disabled per AgentConfig; the rest always load.
type Category string

const (
	CategoryFilesystem Category = "filesystem"
	CategoryShell      Category = "shell"
	CategoryGit        Category = "git"
	CategoryNetwork    Category = "network"
	CategoryProcesses  Category = "processes"
	CategoryPackages   Category = "packages"
	CategorySystem     Category = "system"
	CategoryBrowser    Category = "browser"
)

// Context is the derived, per-connection view handed to every tool handler.
// It is a read-only value — nothing downstream of the registry mutates it.
type Context struct {
	context.Context

	SandboxDir  string
	WorkDir     string
	ReadOnly    bool
	AllowedCmds []string
	Timeout     time.Duration

	Categories CategoryEnables

	Sandbox *Sandbox
	Shell   *shell.Adapter
	Browser *browser.Manager
}

// CategoryEnables mirrors config.CategoryEnables; kept as a separate type
// here so the tools package does not import config directly (internal/server
// translates one into the other when it builds the registry).
type CategoryEnables struct {
	Filesystem bool
	Shell      bool
	Git        bool
	Network    bool
}

// ArgDescriptor declares one input argument a tool accepts, in place of a
// schema tied to a validation library: name, type, optionality, and a
// default applied when the caller omits an optional argument.
type ArgDescriptor struct {
	Name     string
	Type     ArgType
	Required bool
	Default  any
}

// ArgType enumerates the scalar and container types an argument can take.
type ArgType int

const (
	ArgString ArgType = iota
	ArgInt
	ArgBool
	ArgStringSlice
	ArgObject
)

// Result is the outcome of a single tool handler invocation, before the
// executor wraps it into the wire envelope. Success=false with a non-empty
// Error represents a handled, expected failure (sandbox violation, read-only
// denial, disallowed binary, tool-specific runtime error) — not a Go error
// return, which is reserved for unexpected/internal failures.
type Result struct {
	Success bool
	Data    any
	Error   string
}

// Handler is the function every tool registers: it receives the validated
// argument map and the per-connection context, and returns a Result. It may
// also return a Go error for unexpected failures the executor should treat
// as Internal.
type Handler func(ctx Context, args map[string]any) (Result, error)

// Tool is the registry's unit of dispatch: {name, category, input schema,
// handler}. Uniqueness is by Name across an entire registry build.
type Tool struct {
	Name        string
	Category    Category
	Description string
	Args        []ArgDescriptor
	Handler     Handler
}

// Destructive reports whether name is one of the operations classified as
// destructive — refused under read-only mode regardless of category, and
// flagged in the audit trail independent of the handler's own read-only
// check.
func Destructive(name string) bool {
	_, ok := destructiveNames[name]
	return ok
}

var destructiveNames = map[string]struct{}{
	"write_file":       {},
	"append_file":      {},
	"delete_file":      {},
	"move_file":        {},
	"mkdir":            {},
	"git_commit":       {},
	"git_push":         {},
	"git_pull":         {},
	"git_checkout":     {},
	"git_stash":        {},
	"git_clone":        {},
	"git_worktree_add": {},
	"clipboard_write":  {},
	"download_file":    {},
}
