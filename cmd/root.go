package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralphcli/ralph/internal/bootstrap"
	"github.com/ralphcli/ralph/internal/config"
	"github.com/ralphcli/ralph/internal/tui"
)

// Version is set at build time via -ldflags "-X github.com/ralphcli/ralph/cmd.Version=v1.0.0"
var Version = "dev"

var (
	flagFile      string
	flagIssue     string
	flagSidebar   bool
	flagNoSidebar bool
	flagAgent     string
	flagWatch     bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Ralph — a terminal monitoring and control surface for an autonomous coding-agent loop",
	Long: "Ralph tails an agent harness's JSONL event log, assembles it into a conversation, " +
		"and presents it as a terminal UI with controls to start, stop, and resume the harness.",
	RunE: runDefault,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "live log path (default: project's .ralph/claude_output.jsonl)")
	rootCmd.PersistentFlags().StringVarP(&flagIssue, "issue", "i", "", "active project/issue name")
	rootCmd.PersistentFlags().BoolVarP(&flagSidebar, "sidebar", "s", false, "show the sidebar")
	rootCmd.PersistentFlags().BoolVarP(&flagNoSidebar, "no-sidebar", "S", false, "hide the sidebar")
	rootCmd.PersistentFlags().StringVarP(&flagAgent, "agent", "a", "", "agent type: "+joinList(config.ValidAgentTypes))
	rootCmd.PersistentFlags().BoolVarP(&flagWatch, "watch", "w", false, "watch mode: keep the TUI attached after the agent exits")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ralph %s\n", Version)
		},
	}
}

func runDefault(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	cli := &config.Config{}
	if flagAgent != "" {
		if !contains(config.ValidAgentTypes, flagAgent) {
			fmt.Fprintf(os.Stderr, "unknown agent type %q, expected one of %s\n", flagAgent, joinList(config.ValidAgentTypes))
			os.Exit(1)
		}
		cli.Agent.Type = flagAgent
	}

	active := flagIssue
	src := config.Sources{
		GlobalConfigPath:     config.ExpandHome(filepath.Join("~", ".config", "ralph", "settings.json")),
		ProjectSettings:      filepath.Join(root, ".ralph", "settings.json"),
		ProjectLocalSettings: filepath.Join(root, ".ralph", "settings.local.json"),
	}
	if active != "" {
		src.ActiveSettings = filepath.Join(root, ".ralph", "projects", active, "settings.json")
		src.ActiveLocalSettings = filepath.Join(root, ".ralph", "projects", active, "settings.local.json")
	}

	cfg, err := config.Load(src, cli)
	if err != nil {
		return err
	}
	if cfg.Paths.ProjectRoot == "" {
		cfg.Paths.ProjectRoot = root
	}

	requiredPaths := []string{
		filepath.Join(root, cfg.Paths.RalphDir),
	}
	for _, p := range requiredPaths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("missing %s — run `ralph init` first", p)
		}
	}

	if active != "" {
		projectDir := filepath.Join(root, cfg.Paths.RalphDir, "projects", active)
		if _, err := bootstrap.EnsureProjectFiles(projectDir); err != nil {
			return fmt.Errorf("seed project %s: %w", active, err)
		}
	}

	sidebar := cfg.Display.Sidebar
	var sidebarOverride *bool
	switch {
	case flagSidebar:
		v := true
		sidebarOverride = &v
	case flagNoSidebar:
		v := false
		sidebarOverride = &v
	default:
		sidebarOverride = &sidebar
	}

	liveLog := flagFile
	if liveLog == "" {
		liveLog = filepath.Join(root, cfg.Paths.LiveLog)
	}

	return tui.Run(context.Background(), cfg, tui.RunOptions{
		LiveLogPath:   liveLog,
		AgentScript:   agentScriptFor(cfg.Agent.Type),
		Sidebar:       sidebarOverride,
		Watch:         flagWatch,
		ActiveProject: active,
	})
}

// agentScriptFor maps a configured agent type to the launcher script Ralph
// invokes to start the harness, per the project's .ralph scaffold.
func agentScriptFor(agentType string) string {
	return filepath.Join(".ralph", agentType+".sh")
}

func joinList(items []string) string {
	out := ""
	for i, v := range items {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
