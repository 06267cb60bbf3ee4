package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// nestedSections lists the AgentConfig fields that are themselves structs,
// each keyed by its koanf tag plus a trailing underscore. envKeyToKoanf uses
// this to know where an environment variable's flat SMITH_X_Y name needs a
// "." inserted to reach the nested field Y of section X, as opposed to an
// underscore that is just part of a multi-word top-level field name like
// max_concurrent_tasks.
var nestedSections = []string{"categories_", "otel_", "audit_"}

// Load builds the final AgentConfig by starting from Default, layering in
// path (if non-empty and present on disk), then overlaying SMITH_* environment
// variables. Environment variables always win — they are the last mile for
// process supervisors and container deployments that can't hand the agent a
// file.
func Load(path string) (AgentConfig, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return AgentConfig{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return AgentConfig{}, fmt.Errorf("config: cannot stat %s: %w", path, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return AgentConfig{}, fmt.Errorf("config: failed to load defaults into koanf: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "SMITH_",
		TransformFunc: func(k, v string) (string, any) {
			k = envKeyToKoanf(k)
			return k, v
		},
	}), nil); err != nil {
		return AgentConfig{}, fmt.Errorf("config: failed to overlay environment: %w", err)
	}

	var merged AgentConfig
	if err := k.Unmarshal("", &merged); err != nil {
		return AgentConfig{}, fmt.Errorf("config: failed to unmarshal merged config: %w", err)
	}

	return merged, nil
}

// envKeyToKoanf turns SMITH_MAX_CONCURRENT_TASKS into max_concurrent_tasks,
// and SMITH_CATEGORIES_SHELL into categories.shell so nested struct fields
// can be addressed from flat environment variables. koanf's default
// delimiter is ".", so a nested field must arrive as "section.field", not
// "section_field" — the latter never matches the dotted path the rest of
// the loader unmarshals against, and the override is silently dropped.
func envKeyToKoanf(k string) string {
	trimmed := strings.ToLower(k[len("SMITH_"):])
	for _, section := range nestedSections {
		if strings.HasPrefix(trimmed, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(trimmed, section)
		}
	}
	return trimmed
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(cfg AgentConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}
