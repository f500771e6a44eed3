package conversation

import (
	"testing"

	"github.com/ralphcli/ralph/internal/events"
)

func mustParse(t *testing.T, line string) events.Event {
	t.Helper()
	ev, ok := events.Parse(line)
	if !ok {
		t.Fatalf("failed to parse line: %s", line)
	}
	return ev
}

// S1 — tool-result matching.
func TestToolResultMatching(t *testing.T) {
	a := New()
	a.ProcessOne(ptr(mustParse(t, `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Read","input":{"path":"/a"}}]}}`)))
	a.ProcessOne(ptr(mustParse(t, `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok","is_error":false}]}}`)))

	st := a.State()
	if len(st.MainMessages) != 1 {
		t.Fatalf("expected 1 main message, got %d", len(st.MainMessages))
	}
	tc, ok := st.ToolCallMap["t1"]
	if !ok {
		t.Fatalf("expected tool call t1 to be registered")
	}
	if tc.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", tc.Status)
	}
	if tc.Result != "ok" {
		t.Errorf("result = %q, want ok", tc.Result)
	}
	if tc.IsError {
		t.Errorf("is_error = true, want false")
	}
}

// S2 — subagent nesting.
func TestSubagentNesting(t *testing.T) {
	a := New()
	a.ProcessOne(ptr(mustParse(t, `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"ta","name":"Task","input":{"subagent_type":"Explore","description":"find","prompt":"do"}}]}}`)))
	a.ProcessOne(ptr(mustParse(t, `{"type":"assistant","parent_tool_use_id":"ta","message":{"content":[{"type":"text","text":"found it"}]}}`)))

	st := a.State()
	if len(st.MainMessages) != 1 {
		t.Fatalf("expected 1 main message, got %d", len(st.MainMessages))
	}
	tc := st.MainMessages[0].ToolCalls[0]
	if !tc.IsSubagent {
		t.Fatalf("expected tool call to be marked subagent")
	}
	if tc.SubagentType != "Explore" || tc.SubagentDescription != "find" || tc.SubagentPrompt != "do" {
		t.Errorf("subagent fields not populated: %+v", tc)
	}
	nested := st.SubagentMessages("ta")
	if len(nested) != 1 || nested[0].Text != "found it" {
		t.Fatalf("expected one nested message with text 'found it', got %+v", nested)
	}
	if len(tc.Messages()) != 1 {
		t.Errorf("ToolCall.Messages() should alias subagent_messages_map")
	}
}

func TestUnmatchedToolResultIsIgnored(t *testing.T) {
	a := New()
	a.ProcessOne(ptr(mustParse(t, `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"nope","content":"x","is_error":false}]}}`)))
	st := a.State()
	if len(st.MainMessages) != 0 {
		t.Fatalf("expected no main messages (I3 + no matching tool call), got %d", len(st.MainMessages))
	}
	if len(st.ToolCallMap) != 0 {
		t.Fatalf("expected no tool calls registered")
	}
}

func TestAssistantResultCollapse(t *testing.T) {
	a := New()
	a.ProcessOne(ptr(mustParse(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"  done  "}]}}`)))
	a.ProcessOne(ptr(mustParse(t, `{"type":"result","message":{"content":[{"type":"text","text":"done"}]}}`)))

	st := a.State()
	if len(st.MainMessages) != 1 {
		t.Fatalf("expected collapse to 1 message, got %d", len(st.MainMessages))
	}
	if st.MainMessages[0].Type != MsgAssistant {
		t.Errorf("expected surviving message to be the assistant one, got %s", st.MainMessages[0].Type)
	}
}

func TestLinearityBatchVsOneAtATime(t *testing.T) {
	lines := []string{
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"Read","input":{}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"ok","is_error":false}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
	}

	one := New()
	for _, l := range lines {
		one.ProcessOne(ptr(mustParse(t, l)))
	}

	batch := New()
	var evs []events.Event
	for _, l := range lines {
		evs = append(evs, mustParse(t, l))
	}
	batch.Ingest(evs)

	if len(one.State().MainMessages) != len(batch.State().MainMessages) {
		t.Fatalf("batching changed message count: %d vs %d", len(one.State().MainMessages), len(batch.State().MainMessages))
	}
}

func TestRotationResetClearsState(t *testing.T) {
	a := New()
	a.ProcessOne(ptr(mustParse(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`)))
	if len(a.State().MainMessages) != 1 {
		t.Fatalf("setup failed")
	}
	a.Reset()
	if len(a.State().MainMessages) != 0 || len(a.State().ToolCallMap) != 0 {
		t.Fatalf("Reset did not clear state")
	}
}

func ptr(ev events.Event) *events.Event { return &ev }
