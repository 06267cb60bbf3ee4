package tools

import "errors"

// Sentinel errors covering every handled failure kind: returned by handlers
// and guard checks as plain Go errors, and translated by the executor into
// a failed Result with a matching Error string. Using errors.Is-compatible
// sentinels (rather than string matching) lets callers branch on failure
// kind without parsing messages.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrBadArguments     = errors.New("bad arguments")
	ErrSandboxViolation = errors.New("sandbox violation")
	ErrReadOnlyDenied   = errors.New("read-only mode denies this operation")
	ErrNotAllowed       = errors.New("command not allowed")
	ErrTimeout          = errors.New("tool execution timed out")
)

// resultFor converts a sentinel (or wrapped sentinel) error into the
// Result the executor emits for an expected, named failure condition.
func resultFor(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
