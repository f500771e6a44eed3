package tui

import (
	"fmt"
	"strings"

	"github.com/ralphcli/ralph/internal/conversation"
	"github.com/ralphcli/ralph/internal/stats"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// View renders the current state. bubbletea calls this after every Update.
func (m *Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	switch m.View {
	case ViewErrorDetail:
		return m.renderErrorDetail()
	case ViewMessageDetail:
		return m.renderOverlayedMain(m.renderMessageDetail())
	case ViewSubagentDetail:
		return m.renderOverlayedMain(m.renderSubagentDetail())
	}

	body := m.renderTabBar() + "\n" + m.renderMain() + "\n" + m.renderStatusBar()

	switch {
	case m.Dialogs.Shortcuts:
		return overlayDialog(body, m.renderShortcutsDialog())
	case m.Dialogs.SessionPicker:
		return overlayDialog(body, m.renderSessionPickerDialog())
	case m.Dialogs.Filter:
		return overlayDialog(body, m.renderFilterDialog())
	case m.Dialogs.Interrupt:
		return overlayDialog(body, m.renderInterruptDialog())
	}
	return body
}

func (m *Model) renderOverlayedMain(detail string) string {
	return m.renderTabBar() + "\n" + detail + "\n" + m.renderStatusBar()
}

func (m *Model) renderTabBar() string {
	tabs := []Tab{TabConversation, TabStats, TabTask}
	cells := make([]string, 0, len(tabs))
	for _, t := range tabs {
		label := string(t)
		if t == m.ActiveTab {
			cells = append(cells, tabActiveStyle.Render(label))
		} else {
			cells = append(cells, tabInactiveStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) renderMain() string {
	main := m.renderActiveTab()
	if !m.SidebarVisible {
		return main
	}
	sidebar := m.renderSidebar()
	return lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
}

func (m *Model) renderActiveTab() string {
	switch m.ActiveTab {
	case TabStats:
		return m.renderStatsTab()
	case TabTask:
		return m.renderTaskTab()
	default:
		return m.renderConversationTab()
	}
}

func (m *Model) renderConversationTab() string {
	msgs := m.CurrentSessionMessages()
	initialIdx := stats.InitialPromptIndex(msgs, 0)

	var b strings.Builder
	for i, msg := range msgs {
		tag := stats.Classify(msg, i == initialIdx)
		if !m.EnabledFilters[tag] {
			continue
		}
		line := formatMessageLine(msg, tag)
		if i == m.SelectedMessageIndex {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return dimStyle.Render("no messages yet")
	}
	return b.String()
}

func formatMessageLine(msg *conversation.ProcessedMessage, tag stats.FilterTag) string {
	text := strings.ReplaceAll(msg.Text, "\n", " ")
	text = runewidth.Truncate(text, 100, "…")
	prefix := fmt.Sprintf("[%s]", tag)
	if len(msg.ToolCalls) > 0 {
		prefix += fmt.Sprintf(" (%d tool calls)", len(msg.ToolCalls))
	}
	return prefix + " " + text
}

func (m *Model) renderStatsTab() string {
	s := m.Stats()
	return fmt.Sprintf(
		"messages: %d\ntool calls: %d\nsubagent calls: %d\nerrors: %d\n\ntokens in: %d\ntokens out: %d\ncache read: %d\ncache creation: %d",
		s.MessageCount, s.ToolCallCount, s.SubagentCount, s.ErrorCount,
		s.Tokens.Input, s.Tokens.Output, s.Tokens.CacheRead, s.Tokens.CacheCreation,
	)
}

func (m *Model) renderTaskTab() string {
	if m.tracker == nil {
		return dimStyle.Render("no task tracker configured")
	}
	if !m.TaskFetched {
		return dimStyle.Render("press enter to fetch the assigned task")
	}
	if m.TaskErr != nil {
		return errorStyle.Render("error") + "\n\n" + m.TaskErr.Error() + "\n\n" +
			dimStyle.Render("press enter to retry")
	}
	if !m.TaskPresent {
		return dimStyle.Render("no assigned task") + "\n\n" + dimStyle.Render("press enter to refresh")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id:       %s\n", m.Task.ID)
	fmt.Fprintf(&b, "title:    %s\n", m.Task.Title)
	fmt.Fprintf(&b, "status:   %s\n", m.Task.Status)
	fmt.Fprintf(&b, "type:     %s\n", m.Task.Type)
	if m.Task.Priority != "" {
		fmt.Fprintf(&b, "priority: %s\n", m.Task.Priority)
	}
	b.WriteString("\n" + dimStyle.Render("press enter to refresh"))
	return b.String()
}

func (m *Model) renderSidebar() string {
	state := string(m.controller.State())
	return lipgloss.NewStyle().Width(24).Padding(0, 1).Render(
		"state: " + state + "\n\nfilters:\n" + m.renderFilterSummary(),
	)
}

func (m *Model) renderFilterSummary() string {
	var b strings.Builder
	for i, tag := range allFilterTags {
		mark := " "
		if m.EnabledFilters[tag] {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %d %s\n", mark, i+1, tag)
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	hint := "tab: switch  s: sidebar  n: new session  x: stop  i: interrupt  ?: help  q: quit"
	return statusBarStyle.Render(hint)
}

func (m *Model) renderMessageDetail() string {
	msgs := m.CurrentSessionMessages()
	if m.SelectedMessageIndex < 0 || m.SelectedMessageIndex >= len(msgs) {
		return dimStyle.Render("no message selected")
	}
	msg := msgs[m.SelectedMessageIndex]
	var b strings.Builder
	fmt.Fprintf(&b, "type: %s\n", msg.Type)
	fmt.Fprintf(&b, "time: %s\n\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString(msg.Text)
	if len(msg.ToolCalls) > 0 {
		b.WriteString("\n\ntool calls:\n")
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(&b, "  %s (%s)\n", tc.Name, tc.Status)
		}
	}
	return b.String()
}

func (m *Model) renderSubagentDetail() string {
	tc := m.SelectedToolCall
	if tc == nil {
		return dimStyle.Render("no subagent selected")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "subagent: %s\n", tc.SubagentType)
	fmt.Fprintf(&b, "description: %s\n\n", tc.SubagentDescription)
	for _, msg := range tc.Messages() {
		b.WriteString(formatMessageLine(msg, stats.Classify(msg, false)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderErrorDetail() string {
	err := m.LastError()
	if err == nil {
		return errorStyle.Render("error") + "\n\n(cleared)\n\n" + dimStyle.Render("esc to continue")
	}
	return errorStyle.Render("error") + "\n\n" + err.Error() + "\n\n" + dimStyle.Render("esc to continue")
}

func (m *Model) renderShortcutsDialog() string {
	return "shortcuts\n\n" +
		"tab    switch tab\n" +
		"up/k   move up\n" +
		"down/j move down\n" +
		"enter  open detail\n" +
		"esc    back / close dialog\n" +
		"s      toggle sidebar\n" +
		"p      session picker\n" +
		"f      filter\n" +
		"n      start new session\n" +
		"x      stop agent\n" +
		"i      interrupt + resume\n" +
		"q      quit"
}

func (m *Model) renderSessionPickerDialog() string {
	var b strings.Builder
	b.WriteString("session picker\n\n")
	if len(m.SessionEntries) == 0 {
		b.WriteString(dimStyle.Render("no archived sessions"))
	} else {
		for i, e := range m.SessionEntries {
			label := e.Name
			if e.HasTimestamp {
				label = e.Timestamp.Format("2006-01-02 15:04:05")
			}
			line := "  " + label
			if i == m.SessionPickerIndex {
				line = selectedRowStyle.Render("> " + label)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render("up/down: move  enter: switch  esc: close"))
	return b.String()
}

func (m *Model) renderFilterDialog() string {
	return "filters\n\n" + m.renderFilterSummary() + "\n" +
		dimStyle.Render("1-8: toggle  esc: close")
}

func (m *Model) renderInterruptDialog() string {
	return "interrupt + resume\n\n" + m.interruptInput.View() + "\n\n" +
		dimStyle.Render("enter to send  esc to cancel")
}

func overlayDialog(base, dialog string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Render(dialog)
	return base + "\n\n" + box
}
