package tui

import (
	"context"
	"fmt"

	"github.com/ralphcli/ralph/internal/archive"
	"github.com/ralphcli/ralph/internal/config"
	"github.com/ralphcli/ralph/internal/conversation"
	"github.com/ralphcli/ralph/internal/eventbus"
	"github.com/ralphcli/ralph/internal/lock"
	"github.com/ralphcli/ralph/internal/process"
	"github.com/ralphcli/ralph/internal/tailer"
	"github.com/ralphcli/ralph/internal/tracker"

	tea "github.com/charmbracelet/bubbletea"
)

// RunOptions carries the resolved CLI flags that affect how the TUI starts.
type RunOptions struct {
	LiveLogPath   string // overrides cfg.Paths.LiveLog when non-empty (-f/--file)
	AgentScript   string
	Sidebar       *bool // nil = use cfg.Display.Sidebar
	Watch         bool
	ActiveProject string // -i/--issue; resolves the resume template and execute/assignment specials
}

// Run wires the conversation pipeline, process controller, and event bus
// together and drives the bubbletea program until the user quits.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	liveLog := cfg.Paths.LiveLog
	if opts.LiveLogPath != "" {
		liveLog = opts.LiveLogPath
	}

	// Archive whatever the previous run left behind before anything reads
	// the live log, so a fresh attach never replays a finished session's
	// events into the new conversation state (spec §6.3/§9(b)). A harness
	// that is still live on the lock file owns the live log, so it is left
	// in place.
	if status, _ := lock.Inspect(cfg.Paths.LockFile); status != lock.StatusLive {
		if _, err := archive.Archive(liveLog, cfg.Paths.ArchiveDir); err != nil {
			return fmt.Errorf("archive previous session: %w", err)
		}
	}

	bus := eventbus.New()

	assembler := conversation.New()
	tl := tailer.New(liveLog, 0)

	ctrl := process.New(process.Config{
		AgentScript: opts.AgentScript,
		ProjectRoot: cfg.Paths.ProjectRoot,
		LockPath:    cfg.Paths.LockFile,
		LiveLogPath: liveLog,
		Bus:         bus,
	})

	trk, err := tracker.New(cfg.TaskManagement.Provider, cfg.TaskManagement.ProviderConfig)
	if err != nil && err != tracker.ErrProviderNotConfigured {
		return fmt.Errorf("tracker: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go tl.Run(runCtx)
	go ctrl.PollLiveness(runCtx)

	model := New(cfg, assembler, tl, ctrl, bus, trk)
	if opts.Sidebar != nil {
		model.SidebarVisible = *opts.Sidebar
	}
	model.ActiveProject = opts.ActiveProject

	program := tea.NewProgram(model, tea.WithContext(runCtx))
	_, err = program.Run()
	return err
}
