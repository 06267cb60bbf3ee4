package tools

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/marcosnunesmbs/smith/internal/guard"
)

// NewFilesystemTools builds the filesystem category: read, write, append,
// delete, move, copy, list, mkdir, stat, grep-in-files, glob-find. Grounded
// on the existing view_lines (line-range reads), directory_tree (recursive
// listing, noise filtering, entry cap) and search_code (capped regex
// search) tools, generalized to the full read/write contract this category
// needs and routed through guardPath for sandbox and read-only enforcement.
func NewFilesystemTools(sandbox *Sandbox) []Tool {
	return []Tool{
		{
			Name:        "read_file",
			Category:    CategoryFilesystem,
			Description: "Read a file, optionally limited to a 1-based inclusive line range.",
			Args: []ArgDescriptor{
				{Name: "file_path", Type: ArgString, Required: true},
				{Name: "start_line", Type: ArgInt},
				{Name: "end_line", Type: ArgInt},
			},
			Handler: readFileHandler,
		},
		{
			Name:        "write_file",
			Category:    CategoryFilesystem,
			Description: "Overwrite a file with the given content, creating it if absent.",
			Args: []ArgDescriptor{
				{Name: "file_path", Type: ArgString, Required: true},
				{Name: "content", Type: ArgString, Required: true},
			},
			Handler: writeFileHandler,
		},
		{
			Name:        "append_file",
			Category:    CategoryFilesystem,
			Description: "Append content to the end of a file, creating it if absent.",
			Args: []ArgDescriptor{
				{Name: "file_path", Type: ArgString, Required: true},
				{Name: "content", Type: ArgString, Required: true},
			},
			Handler: appendFileHandler,
		},
		{
			Name:        "delete_file",
			Category:    CategoryFilesystem,
			Description: "Delete a file or empty directory.",
			Args:        []ArgDescriptor{{Name: "file_path", Type: ArgString, Required: true}},
			Handler:     deleteFileHandler,
		},
		{
			Name:        "move_file",
			Category:    CategoryFilesystem,
			Description: "Move or rename a file.",
			Args: []ArgDescriptor{
				{Name: "source", Type: ArgString, Required: true},
				{Name: "destination", Type: ArgString, Required: true},
			},
			Handler: moveFileHandler,
		},
		{
			Name:        "copy_file",
			Category:    CategoryFilesystem,
			Description: "Copy a file.",
			Args: []ArgDescriptor{
				{Name: "source", Type: ArgString, Required: true},
				{Name: "destination", Type: ArgString, Required: true},
			},
			Handler: copyFileHandler,
		},
		{
			Name:        "list",
			Category:    CategoryFilesystem,
			Description: "List directory contents, optionally recursing up to a depth.",
			Args: []ArgDescriptor{
				{Name: "path", Type: ArgString},
				{Name: "depth", Type: ArgInt, Default: 1},
			},
			Handler: listHandler,
		},
		{
			Name:        "mkdir",
			Category:    CategoryFilesystem,
			Description: "Create a directory, including parents as needed.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString, Required: true}},
			Handler:     mkdirHandler,
		},
		{
			Name:        "stat",
			Category:    CategoryFilesystem,
			Description: "Report size, mode, and modification time for a path.",
			Args:        []ArgDescriptor{{Name: "path", Type: ArgString, Required: true}},
			Handler:     statHandler,
		},
		{
			Name:        "grep_in_files",
			Category:    CategoryFilesystem,
			Description: "Search files under a directory for a regex pattern, returning matching {file, line, match} records.",
			Args: []ArgDescriptor{
				{Name: "pattern", Type: ArgString, Required: true},
				{Name: "path", Type: ArgString},
				{Name: "max_results", Type: ArgInt, Default: 100},
			},
			Handler: grepInFilesHandler,
		},
		{
			Name:        "glob_find",
			Category:    CategoryFilesystem,
			Description: "Find files under a directory matching a doublestar glob pattern (e.g. \"**/*.go\").",
			Args: []ArgDescriptor{
				{Name: "pattern", Type: ArgString, Required: true},
				{Name: "path", Type: ArgString},
			},
			Handler: globFindHandler,
		},
	}
}

const maxReadLines = 2000

func readFileHandler(ctx Context, args map[string]any) (Result, error) {
	filePath, err := extractString(args, "file_path", true)
	if err != nil {
		return resultFor(err), nil
	}
	startLine, err := extractInt(args, "start_line", false, 0)
	if err != nil {
		return resultFor(err), nil
	}
	endLine, err := extractInt(args, "end_line", false, 0)
	if err != nil {
		return resultFor(err), nil
	}

	resolved, err := guardPath(ctx, filePath, false)
	if err != nil {
		return resultFor(err), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("cannot access file: %s", err)}, nil
	}
	if info.IsDir() {
		return Result{Success: false, Error: fmt.Sprintf("%q is a directory, not a file", filePath)}, nil
	}

	f, err := os.Open(resolved)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("cannot open file: %s", err)}, nil
	}
	defer f.Close()

	if startLine <= 0 && endLine <= 0 {
		data, err := io.ReadAll(f)
		if err != nil {
			return Result{Success: false, Error: fmt.Sprintf("error reading file: %s", err)}, nil
		}
		return Result{Success: true, Data: guard.TruncateOutput(string(data), guard.DefaultOutputCap)}, nil
	}

	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine < startLine {
		endLine = startLine + maxReadLines - 1
	}
	if endLine-startLine+1 > maxReadLines {
		endLine = startLine + maxReadLines - 1
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 256*1024)

	var out strings.Builder
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum < startLine {
			continue
		}
		if lineNum > endLine {
			break
		}
		out.WriteString(scanner.Text())
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("error reading file: %s", err)}, nil
	}

	return Result{Success: true, Data: guard.TruncateOutput(out.String(), guard.DefaultOutputCap)}, nil
}

func writeFileHandler(ctx Context, args map[string]any) (Result, error) {
	filePath, err := extractString(args, "file_path", true)
	if err != nil {
		return resultFor(err), nil
	}
	content, err := extractString(args, "content", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolved, err := guardPath(ctx, filePath, true)
	if err != nil {
		return resultFor(err), nil
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("write failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"bytes_written": len(content)}}, nil
}

func appendFileHandler(ctx Context, args map[string]any) (Result, error) {
	filePath, err := extractString(args, "file_path", true)
	if err != nil {
		return resultFor(err), nil
	}
	content, err := extractString(args, "content", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolved, err := guardPath(ctx, filePath, true)
	if err != nil {
		return resultFor(err), nil
	}

	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("append failed: %s", err)}, nil
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("append failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"bytes_appended": len(content)}}, nil
}

func deleteFileHandler(ctx Context, args map[string]any) (Result, error) {
	filePath, err := extractString(args, "file_path", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolved, err := guardPath(ctx, filePath, true)
	if err != nil {
		return resultFor(err), nil
	}

	if err := os.Remove(resolved); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("delete failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"deleted": filePath}}, nil
}

func moveFileHandler(ctx Context, args map[string]any) (Result, error) {
	src, err := extractString(args, "source", true)
	if err != nil {
		return resultFor(err), nil
	}
	dst, err := extractString(args, "destination", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolvedSrc, err := guardPath(ctx, src, true)
	if err != nil {
		return resultFor(err), nil
	}
	resolvedDst, err := guardPath(ctx, dst, true)
	if err != nil {
		return resultFor(err), nil
	}

	if err := os.Rename(resolvedSrc, resolvedDst); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("move failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"source": src, "destination": dst}}, nil
}

func copyFileHandler(ctx Context, args map[string]any) (Result, error) {
	src, err := extractString(args, "source", true)
	if err != nil {
		return resultFor(err), nil
	}
	dst, err := extractString(args, "destination", true)
	if err != nil {
		return resultFor(err), nil
	}

	resolvedSrc, err := guardPath(ctx, src, false)
	if err != nil {
		return resultFor(err), nil
	}
	resolvedDst, err := guardPath(ctx, dst, true)
	if err != nil {
		return resultFor(err), nil
	}

	in, err := os.Open(resolvedSrc)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("copy failed: %s", err)}, nil
	}
	defer in.Close()

	out, err := os.Create(resolvedDst)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("copy failed: %s", err)}, nil
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("copy failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"bytes_copied": n}}, nil
}

var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	".next":        true,
	".nuxt":        true,
	".cache":       true,
}

const maxListEntries = 500

func listHandler(ctx Context, args map[string]any) (Result, error) {
	rawPath, err := extractString(args, "path", false)
	if err != nil {
		return resultFor(err), nil
	}
	depth, err := extractInt(args, "depth", false, 1)
	if err != nil {
		return resultFor(err), nil
	}
	if depth < 1 {
		depth = 1
	}
	if depth > 6 {
		depth = 6
	}

	target := ctx.Sandbox.Root()
	if rawPath != "" {
		target, err = guardPath(ctx, rawPath, false)
		if err != nil {
			return resultFor(err), nil
		}
	}

	info, err := os.Stat(target)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("cannot access path: %s", err)}, nil
	}
	if !info.IsDir() {
		return Result{Success: false, Error: fmt.Sprintf("%q is not a directory", rawPath)}, nil
	}

	var entries []string
	count := 0
	var walk func(dir string, remaining int)
	walk = func(dir string, remaining int) {
		if remaining <= 0 || count >= maxListEntries {
			return
		}
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		sort.Slice(dirEntries, func(i, j int) bool {
			if dirEntries[i].IsDir() != dirEntries[j].IsDir() {
				return dirEntries[i].IsDir()
			}
			return dirEntries[i].Name() < dirEntries[j].Name()
		})
		for _, e := range dirEntries {
			if skipDirs[e.Name()] || count >= maxListEntries {
				continue
			}
			rel, _ := filepath.Rel(target, filepath.Join(dir, e.Name()))
			count++
			if e.IsDir() {
				entries = append(entries, rel+"/")
				walk(filepath.Join(dir, e.Name()), remaining-1)
			} else {
				entries = append(entries, rel)
			}
		}
	}
	walk(target, depth)

	return Result{Success: true, Data: map[string]any{
		"entries":   entries,
		"count":     len(entries),
		"truncated": count >= maxListEntries,
	}}, nil
}

func mkdirHandler(ctx Context, args map[string]any) (Result, error) {
	rawPath, err := extractString(args, "path", true)
	if err != nil {
		return resultFor(err), nil
	}
	resolved, err := guardPath(ctx, rawPath, true)
	if err != nil {
		return resultFor(err), nil
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("mkdir failed: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{"path": rawPath}}, nil
}

func statHandler(ctx Context, args map[string]any) (Result, error) {
	rawPath, err := extractString(args, "path", true)
	if err != nil {
		return resultFor(err), nil
	}
	resolved, err := guardPath(ctx, rawPath, false)
	if err != nil {
		return resultFor(err), nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("cannot stat path: %s", err)}, nil
	}
	return Result{Success: true, Data: map[string]any{
		"size_bytes": info.Size(),
		"mode":       info.Mode().String(),
		"is_dir":     info.IsDir(),
		"modified":   info.ModTime().Format("2006-01-02T15:04:05Z07:00"),
	}}, nil
}

type grepMatch struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Match string `json:"match"`
}

// grepInFilesHandler walks the tree in pure Go rather than shelling out to
// ripgrep — the same reasoning the directory-listing tool this category
// descends from used to avoid depending on the `tree` binary.
func grepInFilesHandler(ctx Context, args map[string]any) (Result, error) {
	pattern, err := extractString(args, "pattern", true)
	if err != nil {
		return resultFor(err), nil
	}
	rawPath, err := extractString(args, "path", false)
	if err != nil {
		return resultFor(err), nil
	}
	maxResults, err := extractInt(args, "max_results", false, 100)
	if err != nil {
		return resultFor(err), nil
	}
	if maxResults < 1 || maxResults > 500 {
		maxResults = 100
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("invalid pattern: %s", err)}, nil
	}

	target := ctx.Sandbox.Root()
	if rawPath != "" {
		target, err = guardPath(ctx, rawPath, false)
		if err != nil {
			return resultFor(err), nil
		}
	}

	var matches []grepMatch
	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 256*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if re.MatchString(scanner.Text()) {
				rel, _ := filepath.Rel(ctx.Sandbox.Root(), path)
				matches = append(matches, grepMatch{File: rel, Line: lineNum, Match: scanner.Text()})
				if len(matches) >= maxResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return Result{Success: false, Error: fmt.Sprintf("search failed: %s", walkErr)}, nil
	}

	return Result{Success: true, Data: map[string]any{
		"matches": matches,
		"count":   len(matches),
	}}, nil
}

// globFindHandler matches files under target against a doublestar pattern
// (supporting "**" recursive segments), capped to keep results small.
func globFindHandler(ctx Context, args map[string]any) (Result, error) {
	pattern, err := extractString(args, "pattern", true)
	if err != nil {
		return resultFor(err), nil
	}
	rawPath, err := extractString(args, "path", false)
	if err != nil {
		return resultFor(err), nil
	}

	target := ctx.Sandbox.Root()
	if rawPath != "" {
		target, err = guardPath(ctx, rawPath, false)
		if err != nil {
			return resultFor(err), nil
		}
	}

	const maxGlobResults = 200
	var found []string
	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(found) >= maxGlobResults {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(target, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ok, matchErr := doublestar.Match(pattern, rel)
		if matchErr == nil && ok {
			found = append(found, rel)
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return Result{Success: false, Error: fmt.Sprintf("glob failed: %s", walkErr)}, nil
	}

	return Result{Success: true, Data: map[string]any{
		"files": found,
		"count": len(found),
	}}, nil
}
