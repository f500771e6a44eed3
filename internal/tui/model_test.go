package tui

import (
	"testing"

	"github.com/ralphcli/ralph/internal/config"
	"github.com/ralphcli/ralph/internal/conversation"
	"github.com/ralphcli/ralph/internal/eventbus"
	"github.com/ralphcli/ralph/internal/process"
	"github.com/ralphcli/ralph/internal/tailer"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel() *Model {
	cfg := config.Default()
	return New(cfg, conversation.New(), tailer.New("/dev/null", 0), process.New(process.Config{}), eventbus.New(), nil)
}

func TestCycleTabWrapsAround(t *testing.T) {
	m := newTestModel()
	if m.ActiveTab != TabConversation {
		t.Fatalf("initial tab = %s, want conversation", m.ActiveTab)
	}
	m.cycleTab()
	if m.ActiveTab != TabStats {
		t.Errorf("after one cycle = %s, want stats", m.ActiveTab)
	}
	m.cycleTab()
	if m.ActiveTab != TabTask {
		t.Errorf("after two cycles = %s, want task", m.ActiveTab)
	}
	m.cycleTab()
	if m.ActiveTab != TabConversation {
		t.Errorf("after three cycles = %s, want conversation (wrapped)", m.ActiveTab)
	}
}

func TestMoveSelectionClampsToBounds(t *testing.T) {
	m := newTestModel()
	m.assembler.Ingest(nil) // no-op, keeps state empty

	// With no messages, moveSelection must not panic or go negative.
	m.moveSelection(-1)
	if m.SelectedMessageIndex != 0 {
		t.Errorf("SelectedMessageIndex on empty conversation = %d, want 0", m.SelectedMessageIndex)
	}
}

func TestCurrentSessionMessagesReturnsAllWhenBoundaryUnset(t *testing.T) {
	m := newTestModel()
	if got := m.CurrentSessionMessages(); len(got) != 0 {
		t.Errorf("expected empty conversation, got %d messages", len(got))
	}
}

func TestLastErrorIsOneShot(t *testing.T) {
	m := newTestModel()
	m.setError(nil)
	if m.LastError() != nil {
		t.Errorf("expected nil error for setError(nil)")
	}

	wantErr := errTest{}
	m.setError(wantErr)
	if m.View != ViewErrorDetail {
		t.Errorf("expected setError to switch to ViewErrorDetail")
	}
	if got := m.LastError(); got != wantErr {
		t.Errorf("LastError() = %v, want %v", got, wantErr)
	}
	if got := m.LastError(); got != nil {
		t.Errorf("second LastError() call = %v, want nil (one-shot)", got)
	}
}

type errTest struct{}

func (errTest) Error() string { return "test error" }

func TestInterruptKeyIgnoredWhileIdle(t *testing.T) {
	m := newTestModel()
	m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	if m.Dialogs.Interrupt {
		t.Error("expected interrupt dialog to stay closed while the controller is idle")
	}
}

func TestInterruptDialogEscCancelsWithoutResuming(t *testing.T) {
	m := newTestModel()
	m.Dialogs.Interrupt = true
	m.interruptInput.SetValue("please keep going")

	m.handleInterruptKey(tea.KeyMsg{Type: tea.KeyEsc})

	if m.Dialogs.Interrupt {
		t.Error("expected esc to close the interrupt dialog")
	}
}

func TestInterruptDialogEmptySubmitDoesNotDispatch(t *testing.T) {
	m := newTestModel()
	m.Dialogs.Interrupt = true
	m.interruptInput.SetValue("   ")

	_, cmd := m.handleInterruptKey(tea.KeyMsg{Type: tea.KeyEnter})

	if m.Dialogs.Interrupt {
		t.Error("expected enter to close the dialog regardless of outcome")
	}
	if cmd != nil {
		t.Error("expected no resume command for blank feedback")
	}
}
