package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Home resolves the directory Smith persists its runtime state under:
// SMITH_HOME if set, otherwise ~/.smith.
func Home() (string, error) {
	if h := os.Getenv("SMITH_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".smith"), nil
}

// EnsureHome creates the home directory and its logs/ and browser-cache/
// subdirectories if they don't already exist.
func EnsureHome() (string, error) {
	dir, err := Home()
	if err != nil {
		return "", err
	}
	for _, sub := range []string{"", "logs", "browser-cache"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return "", fmt.Errorf("config: failed to create %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return dir, nil
}

// PIDFile, AuthTokenFile, LogFile, and AuditDBFile return the well-known
// paths under the home directory.
func PIDFile(home string) string     { return filepath.Join(home, "smith.pid") }
func AuthTokenFile(home string) string { return filepath.Join(home, "auth_token") }
func LogFile(home string) string     { return filepath.Join(home, "logs", "smith.log") }
func AuditDBFile(home string) string { return filepath.Join(home, "logs", "audit.db") }
func BrowserCacheDir(home string) string { return filepath.Join(home, "browser-cache") }

// ResolveAuthToken returns the token to run with, in priority order:
// explicit (from flag or config file) wins; otherwise a token persisted
// from a prior run at home/auth_token is reused; otherwise a new token is
// generated and persisted for next time. The file is written with 0600 so
// only the owning user can read it.
func ResolveAuthToken(explicit, home string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	path := AuthTokenFile(home)
	if data, err := os.ReadFile(path); err == nil {
		token := string(data)
		if token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	token := uuid.NewString()
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("config: failed to persist auth token to %s: %w", path, err)
	}
	return token, nil
}
