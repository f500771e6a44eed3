// Package tui implements Ralph's view model and its bubbletea-driven
// terminal presentation: tab state, selection, dialog overlays, and the
// commands that drive the process controller, archive, and template
// engine.
package tui

import (
	"context"

	"github.com/ralphcli/ralph/internal/archive"
	"github.com/ralphcli/ralph/internal/config"
	"github.com/ralphcli/ralph/internal/conversation"
	"github.com/ralphcli/ralph/internal/eventbus"
	"github.com/ralphcli/ralph/internal/process"
	"github.com/ralphcli/ralph/internal/stats"
	"github.com/ralphcli/ralph/internal/tailer"
	"github.com/ralphcli/ralph/internal/tracker"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// View identifies which screen the main pane is showing.
type View string

const (
	ViewMain           View = "main"
	ViewMessageDetail  View = "message-detail"
	ViewSubagentDetail View = "subagent-detail"
	ViewErrorDetail    View = "error-detail"
)

// Tab identifies one of the top-level tabs.
type Tab string

const (
	TabConversation Tab = "conversation"
	TabStats        Tab = "stats"
	TabTask         Tab = "task"
)

// Dialogs tracks which overlay, if any, is visible. At most one is true at
// a time; the view model does not enforce this beyond convention.
type Dialogs struct {
	SessionPicker bool
	Shortcuts     bool
	Filter        bool
	Interrupt     bool
}

// Model is Ralph's bubbletea root model: the single owner of UI state. The
// assembler's ConversationState and the process Controller are referenced,
// not copied — the model never owns conversation data, only the view over
// it.
type Model struct {
	cfg        *config.Config
	assembler  *conversation.Assembler
	tailer     *tailer.Tailer
	controller *process.Controller
	bus        *eventbus.Bus
	tracker    tracker.Adapter

	ActiveTab Tab
	View      View

	SelectedMessageIndex int
	SelectedToolCall     *conversation.ToolCall
	SourceTab            Tab // for back-nav from subagent-detail

	SidebarVisible bool
	Dialogs        Dialogs

	SessionStartIndex int
	EnabledFilters    map[stats.FilterTag]bool

	// SessionEntries/SessionPickerIndex back the session-picker dialog:
	// populated from archive.List when the dialog opens, selection moves
	// with up/down, enter switches the tailer onto the chosen file.
	SessionEntries     []archive.Entry
	SessionPickerIndex int

	// Task/TaskPresent/TaskErr hold the last tracker.Adapter.FetchTask
	// result for the Task tab; TaskFetched distinguishes "never asked"
	// from "asked, found nothing".
	Task        tracker.Task
	TaskPresent bool
	TaskFetched bool
	TaskErr     error

	// ActiveProject names the `.ralph/projects/<name>` directory the resume
	// template and execute_path/assignment_path specials resolve against.
	// Set by the caller after New; empty means no active project is named.
	ActiveProject string

	viewport       viewport.Model
	interruptInput textinput.Model
	busCh          chan eventbus.Event

	lastSessionID string
	lastError     error
	width         int
	height        int
}

// allFilterTags is the fixed, numbered order the filter dialog toggles by
// (keys "1".."8") and the sidebar summary lists by.
var allFilterTags = []stats.FilterTag{
	stats.FilterInitialPrompt, stats.FilterUser, stats.FilterThinking,
	stats.FilterTool, stats.FilterAssistant, stats.FilterSubagent,
	stats.FilterSystem, stats.FilterResult,
}

// New constructs the root model, wiring it to its collaborators. The event
// bus subscription for process-state updates is made later, in Init.
func New(cfg *config.Config, assembler *conversation.Assembler, tl *tailer.Tailer, ctrl *process.Controller, bus *eventbus.Bus, trk tracker.Adapter) *Model {
	input := textinput.New()
	input.Placeholder = "feedback for the agent…"
	input.CharLimit = 4000

	m := &Model{
		cfg:               cfg,
		assembler:         assembler,
		tailer:            tl,
		controller:        ctrl,
		bus:               bus,
		tracker:           trk,
		ActiveTab:         TabConversation,
		View:              ViewMain,
		SidebarVisible:    cfg.Display.Sidebar,
		EnabledFilters:    defaultFilters(),
		SessionStartIndex: -1,
		interruptInput:    input,
	}
	return m
}

func defaultFilters() map[stats.FilterTag]bool {
	m := make(map[stats.FilterTag]bool, len(allFilterTags))
	for _, f := range allFilterTags {
		m[f] = true
	}
	return m
}

// CurrentSessionMessages returns the slice of messages belonging to the
// "current" session per the SessionBoundary rule: from SessionStartIndex
// onward when the agent is running and the boundary is set; the whole list
// otherwise.
func (m *Model) CurrentSessionMessages() []*conversation.ProcessedMessage {
	all := m.assembler.State().MainMessages
	if m.SessionStartIndex < 0 || m.controller.State() != process.StateRunning {
		return all
	}
	if m.SessionStartIndex >= len(all) {
		return nil
	}
	return all[m.SessionStartIndex:]
}

// Stats computes SessionStats over the current-session slice.
func (m *Model) Stats() stats.Session {
	return stats.Compute(m.CurrentSessionMessages())
}

// StartNewSession archives the current live log, clears the session
// boundary, and starts the agent process — the "start new session"
// command contract from the view model's command surface.
func (m *Model) StartNewSession(ctx context.Context, archiveFn func() error) error {
	if err := archiveFn(); err != nil {
		return err
	}
	m.assembler.Reset()
	m.SessionStartIndex = -1
	return m.controller.Start(ctx)
}

// LastError returns and clears the one-shot UI error cell.
func (m *Model) LastError() error {
	err := m.lastError
	m.lastError = nil
	return err
}

func (m *Model) setError(err error) {
	if err != nil {
		m.lastError = err
		m.View = ViewErrorDetail
	}
}

var _ tea.Model = (*Model)(nil)
