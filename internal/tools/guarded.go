package tools

import "fmt"

// guardPath is the single wrapper every filesystem/git/network/shell path
// argument goes through: resolve it against the sandbox, and when
// destructive is true, refuse it outright under read-only mode before
// even touching the filesystem. Consolidating this here, instead of
// scattering the same two checks across every tool, is what keeps them from
// drifting out of sync with each other.
func guardPath(ctx Context, rawPath string, destructive bool) (string, error) {
	if destructive && ctx.ReadOnly {
		return "", fmt.Errorf("%w", ErrReadOnlyDenied)
	}
	resolved, err := ctx.Sandbox.ValidatePath(rawPath)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// guardDestructive refuses a non-path destructive operation (e.g. a git
// commit, a clipboard write) under read-only mode. Kept distinct from
// guardPath since these operations have no single path argument to resolve.
func guardDestructive(ctx Context) error {
	if ctx.ReadOnly {
		return fmt.Errorf("%w", ErrReadOnlyDenied)
	}
	return nil
}
