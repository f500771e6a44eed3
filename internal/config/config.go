package config

import "sync"

// Paths locates the files Ralph reads and writes under a project's .ralph
// directory. Deep-merged per source: individual fields may be overridden
// without repeating the whole struct.
type Paths struct {
	ProjectRoot string `json:"project_root,omitempty"`
	RalphDir    string `json:"ralph_dir,omitempty"`
	LiveLog     string `json:"live_log,omitempty"`
	LockFile    string `json:"lock_file,omitempty"`
	ArchiveDir  string `json:"archive_dir,omitempty"`
}

// Process configures the external agent harness invocation.
type Process struct {
	AgentScript    string `json:"agent_script,omitempty"`
	ResumeTemplate string `json:"resume_template,omitempty"`
}

// Display configures TUI presentation defaults.
type Display struct {
	Sidebar bool `json:"sidebar"`
}

// ValidAgentTypes enumerates the agent.type values `ralph init` recognizes.
var ValidAgentTypes = []string{"claude-code", "codex", "opencode", "kiro", "custom"}

// Agent selects which harness flavor Ralph is driving.
type Agent struct {
	Type string `json:"type,omitempty"`
}

// ValidTaskProviders enumerates task_management.provider values.
var ValidTaskProviders = []string{"vibe-kanban", "github-issues", "jira", "linear", "beads"}

// TaskManagement selects and configures the task-tracker adapter.
type TaskManagement struct {
	Provider       string         `json:"provider,omitempty"`
	ProviderConfig map[string]any `json:"provider_config,omitempty"`
}

// Config is the fully merged, effective configuration.
type Config struct {
	Paths          Paths             `json:"paths"`
	Process        Process           `json:"process"`
	Display        Display           `json:"display"`
	Agent          Agent             `json:"agent"`
	TaskManagement TaskManagement    `json:"task_management"`
	Variables      map[string]string `json:"variables,omitempty"`

	mu sync.RWMutex
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex,
// matching the teacher's reload-in-place pattern.
func (c *Config) ReplaceFrom(src *Config) {
	src.mu.RLock()
	paths, proc, disp, agent, tm := src.Paths, src.Process, src.Display, src.Agent, src.TaskManagement
	vars := copyVariables(src.Variables)
	src.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Paths = paths
	c.Process = proc
	c.Display = disp
	c.Agent = agent
	c.TaskManagement = tm
	c.Variables = vars
}

// Snapshot returns a value copy of c's data fields, safe to read without
// holding the lock afterward.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Paths:          c.Paths,
		Process:        c.Process,
		Display:        c.Display,
		Agent:          c.Agent,
		TaskManagement: c.TaskManagement,
		Variables:      copyVariables(c.Variables),
	}
}

func copyVariables(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
