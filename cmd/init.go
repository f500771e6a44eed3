package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ralphcli/ralph/internal/bootstrap"
	"github.com/ralphcli/ralph/internal/config"
)

var (
	initAgent    string
	initProvider string
	initDryRun   bool
	initForce    bool
)

func initCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Scaffold the .ralph directory for this project",
		RunE:  runInit,
	}
	c.Flags().StringVar(&initAgent, "agent", "", "agent type: "+joinList(config.ValidAgentTypes))
	c.Flags().StringVar(&initProvider, "provider", "", "task tracker provider: "+joinList(config.ValidTaskProviders))
	c.Flags().BoolVar(&initDryRun, "dry-run", false, "report what would be created without writing anything")
	c.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .ralph/settings.json")
	return c
}

func runInit(cmd *cobra.Command, args []string) error {
	if initAgent == "" || initProvider == "" {
		if err := promptMissing(); err != nil {
			return err
		}
	}

	if !contains(config.ValidAgentTypes, initAgent) {
		fmt.Fprintf(os.Stderr, "unknown agent type %q, expected one of %s\n", initAgent, joinList(config.ValidAgentTypes))
		os.Exit(1)
	}
	if !contains(config.ValidTaskProviders, initProvider) {
		fmt.Fprintf(os.Stderr, "unknown task provider %q, expected one of %s\n", initProvider, joinList(config.ValidTaskProviders))
		os.Exit(1)
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}
	ralphDir := filepath.Join(root, ".ralph")
	settingsPath := filepath.Join(ralphDir, "settings.json")

	if _, err := os.Stat(settingsPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", settingsPath)
	}

	cfg := config.Default()
	cfg.Agent.Type = initAgent
	cfg.TaskManagement.Provider = initProvider

	if initDryRun {
		fmt.Printf("would create %s\n", ralphDir)
		fmt.Printf("would write %s (agent=%s, provider=%s)\n", settingsPath, initAgent, initProvider)
		return nil
	}

	if _, err := bootstrap.EnsureWorkspaceFiles(ralphDir); err != nil {
		return err
	}
	if err := config.Save(settingsPath, cfg); err != nil {
		return err
	}

	fmt.Printf("initialized %s\n", ralphDir)
	return nil
}

func promptMissing() error {
	var fields []huh.Field
	if initAgent == "" {
		opts := make([]huh.Option[string], len(config.ValidAgentTypes))
		for i, a := range config.ValidAgentTypes {
			opts[i] = huh.NewOption(a, a)
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Agent type").
			Options(opts...).
			Value(&initAgent))
	}
	if initProvider == "" {
		opts := make([]huh.Option[string], len(config.ValidTaskProviders))
		for i, p := range config.ValidTaskProviders {
			opts[i] = huh.NewOption(p, p)
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Task tracker provider").
			Options(opts...).
			Value(&initProvider))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}
