package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ralphcli/ralph/internal/events"
)

// Assembler is the central state machine described in the design: it
// consumes events in arrival order and incrementally builds a State that
// downstream observers can read at any time.
//
// Processing one event at a time or a whole batch at once produces the same
// resulting State — Ingest just loops over ProcessOne.
type Assembler struct {
	state  *State
	nextID uint64
}

// New returns an assembler with empty state.
func New() *Assembler {
	return &Assembler{state: NewState()}
}

// State returns the assembler's live, mutable state. Callers must not
// mutate it directly.
func (a *Assembler) State() *State {
	return a.state
}

// Reset clears all conversation state. Used on tailer rotation/truncation
// and when the view model points at a different log entirely.
func (a *Assembler) Reset() {
	a.state = NewState()
}

// Ingest processes a batch of events in order. Batching never changes the
// resulting state relative to processing the events one at a time.
func (a *Assembler) Ingest(evs []events.Event) {
	for i := range evs {
		a.ProcessOne(&evs[i])
	}
}

// ProcessOne applies a single event to the conversation state.
func (a *Assembler) ProcessOne(ev *events.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	isSubagent := ev.ParentToolUseID != ""

	a.matchToolResults(ev, isSubagent)

	msg, ok := a.buildMessage(ev)
	if !ok {
		return
	}

	if isSubagent {
		a.appendSubagent(ev.ParentToolUseID, msg)
	} else {
		a.appendMain(msg)
	}
}

// buildMessage turns an event into a ProcessedMessage, or reports ok=false
// if the event never becomes a visible message (I3: tool_use/tool_result
// kinds, and user events whose content is entirely tool_result blocks).
func (a *Assembler) buildMessage(ev *events.Event) (*ProcessedMessage, bool) {
	switch ev.Kind {
	case events.KindToolUse, events.KindToolResult:
		return nil, false
	}

	if ev.Kind == events.KindUser {
		allResults := true
		for _, b := range ev.Content {
			if b.Type != events.BlockToolResult {
				allResults = false
				break
			}
		}
		if allResults {
			return nil, false
		}
	}

	var texts []string
	var toolCalls []*ToolCall
	for _, b := range ev.Content {
		switch b.Type {
		case events.BlockText:
			if b.Text != "" {
				texts = append(texts, b.Text)
			}
		case events.BlockToolUse:
			toolCalls = append(toolCalls, a.newToolCall(b, ev.Timestamp))
		}
	}

	msg := &ProcessedMessage{
		ID:        a.newMessageID(),
		Type:      MessageType(ev.Kind),
		Timestamp: ev.Timestamp,
		Text:      strings.Join(texts, "\n"),
		ToolCalls: toolCalls,
	}
	if ev.Usage != nil {
		msg.Usage = &Usage{
			InputTokens:   ev.Usage.InputTokens,
			OutputTokens:  ev.Usage.OutputTokens,
			CacheRead:     ev.Usage.CacheReadInputTokens,
			CacheCreation: ev.Usage.CacheCreationInputTokens,
		}
	}
	return msg, true
}

func (a *Assembler) newToolCall(b events.ContentBlock, ts time.Time) *ToolCall {
	tc := &ToolCall{
		ID:        b.ToolUseID,
		Name:      b.ToolName,
		Input:     b.ToolInput,
		Status:    StatusPending,
		Timestamp: ts,
	}
	if tc.Name == "Task" {
		tc.IsSubagent = true
		populateSubagentFields(tc, b.ToolInput)
	}
	return tc
}

func populateSubagentFields(tc *ToolCall, input json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return
	}
	readString := func(key string) string {
		raw, ok := fields[key]
		if !ok {
			return ""
		}
		var s string
		json.Unmarshal(raw, &s)
		return s
	}
	tc.SubagentType = readString("subagent_type")
	tc.SubagentDescription = readString("description")
	tc.SubagentPrompt = readString("prompt")
}

// appendMain inserts a message into the main conversation, applying the I6
// collapse rule (a result whose trimmed text matches the immediately
// preceding assistant message is dropped) and registering any new tool
// calls it carries.
func (a *Assembler) appendMain(msg *ProcessedMessage) {
	if msg.Type == MsgResult && len(a.state.MainMessages) > 0 {
		last := a.state.MainMessages[len(a.state.MainMessages)-1]
		if last.Type == MsgAssistant && strings.TrimSpace(last.Text) == strings.TrimSpace(msg.Text) {
			return
		}
	}

	a.state.MainMessages = append(a.state.MainMessages, msg)
	for _, tc := range msg.ToolCalls {
		a.register(tc)
	}
}

// register inserts a ToolCall into the main tool-call arena and, for
// subagent calls, links it to its (possibly already-populated) nested
// message list.
func (a *Assembler) register(tc *ToolCall) {
	a.state.ToolCallMap[tc.ID] = tc
	if tc.IsSubagent {
		tc.SubagentMessages = a.subagentList(tc.ID)
	}
}

// subagentList returns the shared slice pointer for a subagent id,
// creating it if this is the first time it's been referenced (by either
// the owning ToolCall or one of its child events, whichever arrives
// first in the stream).
func (a *Assembler) subagentList(id string) *[]*ProcessedMessage {
	if list, ok := a.state.SubagentMessagesMap[id]; ok {
		return list
	}
	list := &[]*ProcessedMessage{}
	a.state.SubagentMessagesMap[id] = list
	return list
}

// appendSubagent appends a message to the nested conversation owned by
// parentID, registering any further-nested Task calls it carries.
func (a *Assembler) appendSubagent(parentID string, msg *ProcessedMessage) {
	list := a.subagentList(parentID)
	*list = append(*list, msg)
	for _, tc := range msg.ToolCalls {
		if tc.IsSubagent {
			tc.SubagentMessages = a.subagentList(tc.ID)
		}
	}
}

// matchToolResults applies (I1): for each tool_result block in the event,
// find the ToolCall with the matching id in the appropriate scope and
// transition it to a terminal status. Unmatched ids are ignored.
func (a *Assembler) matchToolResults(ev *events.Event, isSubagent bool) {
	for _, b := range ev.Content {
		if b.Type != events.BlockToolResult {
			continue
		}
		var tc *ToolCall
		if isSubagent {
			tc = a.findInSubagentScope(ev.ParentToolUseID, b.ResultToolUseID)
		} else {
			tc = a.state.ToolCallMap[b.ResultToolUseID]
		}
		if tc == nil {
			continue
		}
		if tc.Status == StatusCompleted || tc.Status == StatusError {
			continue // terminal; I4 forbids further transitions
		}
		if b.IsError {
			tc.Status = StatusError
		} else {
			tc.Status = StatusCompleted
		}
		tc.IsError = b.IsError
		tc.Result = b.ResultContent
		if !ev.Timestamp.IsZero() && !tc.Timestamp.IsZero() {
			tc.Duration = ev.Timestamp.Sub(tc.Timestamp)
		}
		if tc.IsSubagent {
			tc.SubagentResult = tc.Result
		}
	}
}

// findInSubagentScope builds the transient scope described in the design:
// every ToolCall carried by messages already routed to parentID's nested
// conversation, searched by id.
func (a *Assembler) findInSubagentScope(parentID, toolID string) *ToolCall {
	list, ok := a.state.SubagentMessagesMap[parentID]
	if !ok {
		return nil
	}
	for _, msg := range *list {
		for _, tc := range msg.ToolCalls {
			if tc.ID == toolID {
				return tc
			}
		}
	}
	return nil
}

func (a *Assembler) newMessageID() string {
	a.nextID++
	return fmt.Sprintf("evt-%d", a.nextID)
}
