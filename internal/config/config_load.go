package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// Default returns the built-in baseline configuration — source 1 of 7 in
// the layered merge.
func Default() *Config {
	return &Config{
		Paths: Paths{
			RalphDir:   ".ralph",
			LiveLog:    ".ralph/claude_output.jsonl",
			LockFile:   ".ralph/claude.lock",
			ArchiveDir: ".ralph/archive",
		},
		Process: Process{
			ResumeTemplate: ".ralph/projects/%s/resume.md",
		},
		Display: Display{
			Sidebar: true,
		},
		Agent: Agent{
			Type: "claude-code",
		},
		TaskManagement: TaskManagement{
			ProviderConfig: map[string]any{},
		},
		Variables: map[string]string{},
	}
}

// Sources names the five settings-file layers (sources 2–6 of 7) in
// precedence order, later wins.
type Sources struct {
	GlobalConfigPath      string // e.g. ~/.config/ralph/settings.json
	ProjectSettings       string // <root>/.ralph/settings.json
	ProjectLocalSettings  string // <root>/.ralph/settings.local.json
	ActiveSettings        string // <root>/.ralph/projects/<active>/settings.json
	ActiveLocalSettings   string // <root>/.ralph/projects/<active>/settings.local.json
}

// Load reads and merges all configured layers on top of Default(), then
// applies CLI overrides (the 7th source) via mergeConfig if cli is non-nil.
func Load(src Sources, cli *Config) (*Config, error) {
	cfg := Default()

	for _, path := range []string{
		src.GlobalConfigPath,
		src.ProjectSettings,
		src.ProjectLocalSettings,
		src.ActiveSettings,
		src.ActiveLocalSettings,
	} {
		if path == "" {
			continue
		}
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cli != nil {
		mergeConfig(cfg, cli)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var layer Config
	if err := json5.Unmarshal(data, &layer); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	mergeConfig(cfg, &layer)
	return nil
}

// mergeConfig overlays layer onto cfg: shallow per top-level key, except
// variables, task_management.provider_config, and paths which merge
// field-by-field / key-by-key.
func mergeConfig(cfg *Config, layer *Config) {
	if layer.Paths.ProjectRoot != "" {
		cfg.Paths.ProjectRoot = layer.Paths.ProjectRoot
	}
	if layer.Paths.RalphDir != "" {
		cfg.Paths.RalphDir = layer.Paths.RalphDir
	}
	if layer.Paths.LiveLog != "" {
		cfg.Paths.LiveLog = layer.Paths.LiveLog
	}
	if layer.Paths.LockFile != "" {
		cfg.Paths.LockFile = layer.Paths.LockFile
	}
	if layer.Paths.ArchiveDir != "" {
		cfg.Paths.ArchiveDir = layer.Paths.ArchiveDir
	}

	if layer.Process != (Process{}) {
		cfg.Process = layer.Process
	}
	if layer.Display != (Display{}) {
		cfg.Display = layer.Display
	}
	if layer.Agent.Type != "" {
		cfg.Agent.Type = layer.Agent.Type
	}

	if layer.TaskManagement.Provider != "" {
		cfg.TaskManagement.Provider = layer.TaskManagement.Provider
	}
	if len(layer.TaskManagement.ProviderConfig) > 0 {
		if cfg.TaskManagement.ProviderConfig == nil {
			cfg.TaskManagement.ProviderConfig = map[string]any{}
		}
		for k, v := range layer.TaskManagement.ProviderConfig {
			cfg.TaskManagement.ProviderConfig[k] = v
		}
	}

	if len(layer.Variables) > 0 {
		if cfg.Variables == nil {
			cfg.Variables = map[string]string{}
		}
		for k, v := range layer.Variables {
			cfg.Variables[k] = v
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Agent.Type != "" && !contains(ValidAgentTypes, cfg.Agent.Type) {
		return fmt.Errorf("invalid agent.type %q; valid values: %s", cfg.Agent.Type, strings.Join(ValidAgentTypes, ", "))
	}
	if cfg.TaskManagement.Provider != "" && !contains(ValidTaskProviders, cfg.TaskManagement.Provider) {
		return fmt.Errorf("invalid task_management.provider %q; valid values: %s", cfg.TaskManagement.Provider, strings.Join(ValidTaskProviders, ", "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Hash returns a short SHA-256 fingerprint of cfg's JSON form; configs with
// different data fields hash differently.
func (c *Config) Hash() string {
	c.mu.RLock()
	data, _ := json.Marshal(c)
	c.mu.RUnlock()
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return filepath.Join(home, path[1:])
	}
	return home
}
