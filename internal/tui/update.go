package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ralphcli/ralph/internal/archive"
	"github.com/ralphcli/ralph/internal/eventbus"
	"github.com/ralphcli/ralph/internal/events"
	"github.com/ralphcli/ralph/internal/process"
	"github.com/ralphcli/ralph/internal/tailer"
	"github.com/ralphcli/ralph/internal/template"
	"github.com/ralphcli/ralph/internal/tracker"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const processCmdTimeout = 5 * time.Second

// tailerMsg wraps a tailer.Event delivered through the bubbletea event loop.
type tailerMsg tailer.Event

// busMsg wraps an eventbus.Event delivered through the bubbletea event loop.
type busMsg eventbus.Event

// Init starts the background subscriptions: one goroutine-free Cmd per
// source, re-armed after each delivery, matching the single-threaded
// cooperative loop the design calls for (§5) — only this Update call
// mutates model state, never the producers directly.
func (m *Model) Init() tea.Cmd {
	m.busCh = make(chan eventbus.Event, 64)
	m.bus.Subscribe("tui", func(e eventbus.Event) {
		select {
		case m.busCh <- e:
		default:
			// Drop rather than block the publisher; the next poll/tailer
			// tick will reconcile state regardless.
		}
	})

	return tea.Batch(
		waitForTailer(m.tailer),
		waitForBus(m.busCh),
	)
}

func waitForTailer(tl *tailer.Tailer) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-tl.Events()
		if !ok {
			return nil
		}
		return tailerMsg(ev)
	}
}

func waitForBus(ch <-chan eventbus.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return busMsg(e)
	}
}

// Update dispatches a received message and returns the re-armed Cmds for
// whichever sources it consumed from.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tailerMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
		}
		if msg.Reset {
			m.assembler.Reset()
		}
		for _, line := range msg.Lines {
			ev, ok := events.Parse(line)
			if !ok {
				continue
			}
			if ev.SessionID != "" {
				m.lastSessionID = ev.SessionID
			}
			m.assembler.ProcessOne(&ev)
		}
		return m, waitForTailer(m.tailer)

	case busMsg:
		switch msg.Name {
		case eventbus.EventProcessState:
			if err := m.controller.Err(); err != nil {
				m.setError(err)
			}
		}
		return m, waitForBus(m.busCh)

	case processResultMsg:
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case taskMsg:
		m.TaskFetched = true
		m.Task = msg.task
		m.TaskPresent = msg.isPresent
		m.TaskErr = msg.err
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Dialogs.Interrupt {
		return m.handleInterruptKey(msg)
	}
	if m.Dialogs.Shortcuts || m.Dialogs.SessionPicker || m.Dialogs.Filter {
		return m.handleDialogKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.cycleTab()
	case "s":
		m.SidebarVisible = !m.SidebarVisible
	case "?":
		m.Dialogs.Shortcuts = true
	case "p":
		m.openSessionPicker()
	case "f":
		m.Dialogs.Filter = true
	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)
	case "enter":
		if m.ActiveTab == TabTask && m.tracker != nil {
			return m, m.cmdFetchTask()
		}
		m.openSelectedDetail()
	case "esc":
		m.backToMain()
	case "n":
		return m, m.cmdStartNewSession()
	case "x":
		return m, m.cmdStop()
	case "i":
		if m.controller.State() == process.StateRunning {
			m.interruptInput.SetValue("")
			m.interruptInput.Focus()
			m.Dialogs.Interrupt = true
		}
	}
	return m, nil
}

func (m *Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case m.Dialogs.SessionPicker:
		return m.handleSessionPickerKey(msg)
	case m.Dialogs.Filter:
		return m.handleFilterKey(msg)
	default:
		if msg.String() == "esc" {
			m.Dialogs = Dialogs{}
		}
		return m, nil
	}
}

// openSessionPicker populates the dialog from the archive directory and
// opens it. Selection always starts at the newest (first) entry.
func (m *Model) openSessionPicker() {
	entries, _ := archive.List(m.cfg.Paths.ArchiveDir)
	m.SessionEntries = entries
	m.SessionPickerIndex = 0
	m.Dialogs.SessionPicker = true
}

// handleSessionPickerKey drives the session-picker dialog: up/down moves
// the selection, enter switches the tailer onto the chosen archive and
// resets the assembler so the newly attached file starts from a clean
// conversation state, esc closes without changing anything.
func (m *Model) handleSessionPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Dialogs = Dialogs{}
	case "up", "k":
		if m.SessionPickerIndex > 0 {
			m.SessionPickerIndex--
		}
	case "down", "j":
		if m.SessionPickerIndex < len(m.SessionEntries)-1 {
			m.SessionPickerIndex++
		}
	case "enter":
		if m.SessionPickerIndex >= 0 && m.SessionPickerIndex < len(m.SessionEntries) {
			entry := m.SessionEntries[m.SessionPickerIndex]
			m.tailer.SwitchPath(entry.Path)
			m.assembler.Reset()
			m.SessionStartIndex = -1
			m.SelectedMessageIndex = 0
		}
		m.Dialogs = Dialogs{}
	}
	return m, nil
}

// handleFilterKey toggles one EnabledFilters entry per digit key "1".."8",
// matching the numbered list renderFilterSummary prints.
func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch s := msg.String(); s {
	case "esc":
		m.Dialogs = Dialogs{}
	case "1", "2", "3", "4", "5", "6", "7", "8":
		idx := int(s[0] - '1')
		tag := allFilterTags[idx]
		m.EnabledFilters[tag] = !m.EnabledFilters[tag]
	}
	return m, nil
}

// handleInterruptKey drives the interrupt+resume dialog's text input. Per
// the view model's command contract, every other shortcut is blocked while
// this dialog is open — only esc (cancel) and enter (submit) are handled
// here, everything else is forwarded to the input widget.
func (m *Model) handleInterruptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.interruptInput.Blur()
		m.Dialogs.Interrupt = false
		return m, nil
	case "enter":
		feedback := strings.TrimSpace(m.interruptInput.Value())
		m.interruptInput.Blur()
		m.Dialogs.Interrupt = false
		if feedback == "" {
			return m, nil
		}
		m.SessionStartIndex = len(m.assembler.State().MainMessages)
		return m, m.cmdResume(feedback)
	}

	var cmd tea.Cmd
	m.interruptInput, cmd = m.interruptInput.Update(msg)
	return m, cmd
}

func (m *Model) cycleTab() {
	order := []Tab{TabConversation, TabStats, TabTask}
	for i, t := range order {
		if t == m.ActiveTab {
			m.ActiveTab = order[(i+1)%len(order)]
			return
		}
	}
	m.ActiveTab = TabConversation
}

func (m *Model) moveSelection(delta int) {
	msgs := m.CurrentSessionMessages()
	if len(msgs) == 0 {
		return
	}
	m.SelectedMessageIndex += delta
	if m.SelectedMessageIndex < 0 {
		m.SelectedMessageIndex = 0
	}
	if m.SelectedMessageIndex >= len(msgs) {
		m.SelectedMessageIndex = len(msgs) - 1
	}
}

func (m *Model) openSelectedDetail() {
	msgs := m.CurrentSessionMessages()
	if m.SelectedMessageIndex < 0 || m.SelectedMessageIndex >= len(msgs) {
		return
	}
	msg := msgs[m.SelectedMessageIndex]
	if len(msg.ToolCalls) > 0 {
		m.SelectedToolCall = msg.ToolCalls[0]
		if m.SelectedToolCall.IsSubagent {
			m.SourceTab = m.ActiveTab
			m.View = ViewSubagentDetail
			return
		}
	}
	m.View = ViewMessageDetail
}

func (m *Model) backToMain() {
	switch m.View {
	case ViewSubagentDetail:
		m.ActiveTab = m.SourceTab
	}
	m.View = ViewMain
	m.lastError = nil
}

func (m *Model) cmdStartNewSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), processCmdTimeout)
		defer cancel()
		err := m.StartNewSession(ctx, func() error {
			_, err := archive.Archive(m.cfg.Paths.LiveLog, m.cfg.Paths.ArchiveDir)
			return err
		})
		return processResultMsg{err: err}
	}
}

// cmdResume implements the view model's interrupt command: read the resume
// prompt template, substitute variables, append the user's feedback, then
// hand the combined text (and a pre-encoded synthetic event) to the process
// controller's resume.
func (m *Model) cmdResume(feedback string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), processCmdTimeout)
		defer cancel()

		sessionID := m.lastSessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		projectDir := filepath.Join(m.cfg.Paths.ProjectRoot, m.cfg.Paths.RalphDir, "projects", m.ActiveProject)
		templatePath := fmt.Sprintf(
			filepath.Join(m.cfg.Paths.ProjectRoot, m.cfg.Process.ResumeTemplate),
			m.ActiveProject,
		)

		specials := map[string]string{
			"execute_path":    filepath.Join(projectDir, "execute.md"),
			"assignment_path": filepath.Join(projectDir, "assignment.json"),
		}

		rendered := ""
		if raw, err := os.ReadFile(templatePath); err == nil {
			expanded, perr := template.Process(string(raw), filepath.Dir(templatePath), specials, m.cfg.Variables, nil)
			if perr != nil {
				return processResultMsg{err: fmt.Errorf("resume template: %w", perr)}
			}
			rendered = expanded
		}

		text := feedback
		if rendered != "" {
			text = rendered + "\n" + feedback
		}

		now := time.Now()
		err := m.controller.Resume(ctx, process.ResumePrompt{
			SessionID:    sessionID,
			Text:         text,
			LiveLogEvent: events.EncodeUserEvent(text, sessionID, now),
		})
		if err == nil {
			m.lastSessionID = sessionID
		}
		return processResultMsg{err: err}
	}
}

func (m *Model) cmdStop() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), processCmdTimeout)
		defer cancel()
		err := m.controller.Stop(ctx)
		return processResultMsg{err: err}
	}
}

type processResultMsg struct{ err error }

// taskMsg wraps a tracker.Adapter.FetchTask result delivered through the
// bubbletea event loop.
type taskMsg struct {
	task      tracker.Task
	isPresent bool
	err       error
}

// cmdFetchTask implements the Task tab's "enter" command: ask the
// configured tracker adapter for the active assignment. id is left empty
// — FileAdapter (and any real adapter) resolves the single active task
// for the project rather than requiring the caller to name one.
func (m *Model) cmdFetchTask() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), processCmdTimeout)
		defer cancel()
		task, isPresent, err := m.tracker.FetchTask(ctx, "")
		return taskMsg{task: task, isPresent: isPresent, err: err}
	}
}
