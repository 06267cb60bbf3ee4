package tools

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcosnunesmbs/smith/internal/guard"
)

// Sandbox enforces filesystem boundaries for every tool operation. Paths
// are resolved to absolute, symlink-evaluated form before the containment
// check, so a symlink inside the root pointing outside it cannot be used to
// escape.
type Sandbox struct {
	// resolvedRoot is the absolute, symlink-resolved boundary. Computed
	// once at creation, never changed.
	resolvedRoot string
}

// NewSandbox creates a sandbox rooted at rootPath. The path must exist and
// must be a directory; symlinks in it are resolved immediately so the root
// itself cannot be a symlink pointing somewhere unintended.
func NewSandbox(rootPath string) (*Sandbox, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to resolve absolute path %q: %w", rootPath, err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to resolve symlinks for %q: %w", absPath, err)
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: root path %q does not exist: %w", resolvedPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: root path %q is not a directory", resolvedPath)
	}

	return &Sandbox{resolvedRoot: resolvedPath}, nil
}

// ValidatePath resolves requestedPath against the sandbox (relative paths
// are joined to the root; absolute paths are kept absolute) and checks the
// result is within bounds. If the path doesn't exist yet — the common case
// for a write target — its parent directory is checked instead and the
// cleaned absolute path returned. Returns ErrSandboxViolation on escape.
func (s *Sandbox) ValidatePath(requestedPath string) (string, error) {
	var absPath string
	if filepath.IsAbs(requestedPath) {
		absPath = filepath.Clean(requestedPath)
	} else {
		absPath = filepath.Clean(filepath.Join(s.resolvedRoot, requestedPath))
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		parentDir := filepath.Dir(absPath)
		resolvedParent, parentErr := filepath.EvalSymlinks(parentDir)
		if parentErr != nil {
			return "", fmt.Errorf("%w: path %q does not exist and its parent cannot be resolved", ErrSandboxViolation, requestedPath)
		}
		if !guard.IsWithinDir(resolvedParent, s.resolvedRoot) {
			return "", fmt.Errorf("%w: path %q resolves outside the sandbox", ErrSandboxViolation, requestedPath)
		}
		return absPath, nil
	}

	if !guard.IsWithinDir(resolvedPath, s.resolvedRoot) {
		return "", fmt.Errorf("%w: path %q resolves to %q, outside the sandbox root %q",
			ErrSandboxViolation, requestedPath, resolvedPath, s.resolvedRoot)
	}

	return resolvedPath, nil
}

// Root returns the resolved sandbox root. Tools pass this as the working
// directory for spawned subprocesses.
func (s *Sandbox) Root() string {
	return s.resolvedRoot
}

// ValidateOutputPath checks a path reported back by an external command
// (e.g. git, fd) without resolving symlinks — the command already did — as
// defense in depth against the command reporting a path outside bounds.
func (s *Sandbox) ValidateOutputPath(outputPath string) (string, error) {
	var absPath string
	if filepath.IsAbs(outputPath) {
		absPath = filepath.Clean(outputPath)
	} else {
		absPath = filepath.Clean(filepath.Join(s.resolvedRoot, outputPath))
	}

	if !guard.IsWithinDir(absPath, s.resolvedRoot) {
		return "", fmt.Errorf("%w: output path %q is outside the sandbox", ErrSandboxViolation, outputPath)
	}

	return absPath, nil
}
