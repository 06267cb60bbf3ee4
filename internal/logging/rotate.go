package logging

import (
	"fmt"
	"os"
	"sync"
)

// RotatingWriter is an io.WriteCloser over a log file that renames the
// current file to a ".1" suffix and starts a fresh one once it crosses
// maxSizeBytes. No third-party log-rotation library is in play here; this
// is plain os/io since there is no suitable dependency to reach for, and
// the rotation scheme itself — rename-and-reopen at a size threshold,
// single backup — is a handful of stdlib calls, not a problem that
// warrants pulling in a library.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	file    *os.File
	size    int64
}

// NewRotatingWriter opens (or creates) path and prepares it for
// size-capped rotation. maxSizeBytes<=0 disables rotation entirely — the
// file grows without bound, useful for short-lived foreground runs.
func NewRotatingWriter(path string, maxSizeBytes int64) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("logging: stat %s: %w", path, err)
	}
	return &RotatingWriter{path: path, maxSize: maxSizeBytes, file: f, size: info.Size()}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate must be called with mu held. It closes the current file, renames
// it to a single ".1" backup (overwriting any prior backup), and opens a
// fresh file at the original path.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("logging: close %s before rotation: %w", w.path, err)
	}
	backup := w.path + ".1"
	if err := os.Rename(w.path, backup); err != nil {
		return fmt.Errorf("logging: rotate %s to %s: %w", w.path, backup, err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("logging: reopen %s after rotation: %w", w.path, err)
	}
	w.file = f
	w.size = 0
	return nil
}

// Close releases the underlying file handle.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
