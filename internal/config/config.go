// Package config defines Smith's runtime configuration and loads it from a
// TOML file overlaid with SMITH_* environment variables.
package config

import (
	"fmt"
	"regexp"
	"time"
)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// AgentConfig is the agent's full runtime configuration. It is treated as
// immutable once Load returns — components derive per-connection or
// per-call state from it but never mutate it in place.
type AgentConfig struct {
	Name                 string   `koanf:"name" toml:"name"`
	Port                 int      `koanf:"port" toml:"port"`
	AuthToken            string   `koanf:"auth_token" toml:"auth_token"`
	SandboxDir           string   `koanf:"sandbox_dir" toml:"sandbox_dir"`
	ReadonlyMode         bool     `koanf:"readonly_mode" toml:"readonly_mode"`
	AllowedShellCommands []string `koanf:"allowed_shell_commands" toml:"allowed_shell_commands"`

	Categories CategoryEnables `koanf:"categories" toml:"categories"`

	TimeoutMS          int `koanf:"timeout_ms" toml:"timeout_ms"`
	MaxConcurrentTasks int `koanf:"max_concurrent_tasks" toml:"max_concurrent_tasks"`
	IdleTimeoutMS      int `koanf:"idle_timeout_ms" toml:"idle_timeout_ms"`

	TLSCert string `koanf:"tls_cert" toml:"tls_cert"`
	TLSKey  string `koanf:"tls_key" toml:"tls_key"`

	LogLevel     string `koanf:"log_level" toml:"log_level"`
	LogMaxSizeMB int    `koanf:"log_max_size_mb" toml:"log_max_size_mb"`

	OTel  OTelConfig  `koanf:"otel" toml:"otel"`
	Audit AuditConfig `koanf:"audit" toml:"audit"`
}

// CategoryEnables toggles the four tool categories that can be disabled at
// config time. processes, packages, system, and browser always load.
type CategoryEnables struct {
	Filesystem bool `koanf:"filesystem" toml:"filesystem"`
	Shell      bool `koanf:"shell" toml:"shell"`
	Git        bool `koanf:"git" toml:"git"`
	Network    bool `koanf:"network" toml:"network"`
}

// OTelConfig configures optional OTLP trace export. The zero value runs
// tracing against a no-op provider.
type OTelConfig struct {
	Endpoint string `koanf:"endpoint" toml:"endpoint"`
	Insecure bool   `koanf:"insecure" toml:"insecure"`
}

// AuditConfig configures the persisted audit trail.
type AuditConfig struct {
	DBPath string `koanf:"db_path" toml:"db_path"`
}

// Default returns the AgentConfig baseline Load starts from before file and
// environment overrides are layered on top.
func Default() AgentConfig {
	return AgentConfig{
		Port: 7900,
		Categories: CategoryEnables{
			Filesystem: true,
			Shell:      true,
			Git:        true,
			Network:    true,
		},
		TimeoutMS:          30_000,
		MaxConcurrentTasks: 4,
		LogLevel:           "info",
		LogMaxSizeMB:       20,
	}
}

// TaskTimeout converts TimeoutMS to a time.Duration for callers that need
// the per-task budget rather than the raw config field.
func (c AgentConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// IdleTimeout converts IdleTimeoutMS to a time.Duration. Zero means no
// idle eviction: the sweeper skips connections entirely.
func (c AgentConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

// Validate checks invariants struct tags can't express.
func (c AgentConfig) Validate() error {
	if !nameRe.MatchString(c.Name) {
		return fmt.Errorf("config: name %q does not match %s", c.Name, nameRe.String())
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1..65535", c.Port)
	}
	if c.SandboxDir == "" {
		return fmt.Errorf("config: sandbox_dir is required")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("config: auth_token is required")
	}
	if c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("config: max_concurrent_tasks must be >= 1")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("config: tls_cert and tls_key must both be set or both be empty")
	}
	return nil
}
