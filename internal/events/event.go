// Package events decodes the JSONL event stream written by the agent harness.
//
// A line is either dropped (blank, malformed, or an unrecognized kind) or
// turned into an Event. Parsing never fails loudly — a bad line is simply
// not an event.
package events

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the event's `type` field.
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
	KindSystem     Kind = "system"
	KindResult     Kind = "result"
)

func (k Kind) valid() bool {
	switch k {
	case KindUser, KindAssistant, KindToolUse, KindToolResult, KindSystem, KindResult:
		return true
	}
	return false
}

// BlockType discriminates a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a message's content array. Only the fields
// relevant to Type are meaningful; this mirrors the wire shape rather than
// a Go-style tagged union because the assembler only ever switches on Type
// once per block.
type ContentBlock struct {
	Type BlockType

	// text blocks
	Text string

	// tool_use blocks
	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage

	// tool_result blocks
	ResultToolUseID string
	ResultContent   string // empty string stands in for JSON null
	IsError         bool
}

// Usage is the token accounting attached to an assistant/result message.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// Event is one decoded JSONL line.
type Event struct {
	Kind            Kind
	Timestamp       time.Time // zero if the line carried no timestamp
	ParentToolUseID string
	SessionID       string
	Content         []ContentBlock
	Usage           *Usage
}

// wire* types mirror the on-disk JSON shape (see spec §6.1).
type wireEvent struct {
	Type            string          `json:"type"`
	Timestamp       string          `json:"timestamp"`
	ParentToolUseID string          `json:"parent_tool_use_id"`
	SessionID       string          `json:"session_id"`
	Message         *wireMessage    `json:"message"`
	ToolUseID       string          `json:"tool_use_id"`
	Content         json.RawMessage `json:"content"`
	IsError         bool            `json:"is_error"`
}

type wireMessage struct {
	Content []wireBlock `json:"content"`
	Usage   *wireUsage  `json:"usage"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// Parse decodes one line into an Event. ok is false for blank, malformed, or
// unrecognized-kind lines — callers should skip the line and move on.
func Parse(line string) (ev Event, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	var raw wireEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, false
	}

	kind := Kind(raw.Type)
	if !kind.valid() {
		return Event{}, false
	}

	out := Event{
		Kind:            kind,
		ParentToolUseID: raw.ParentToolUseID,
		SessionID:       raw.SessionID,
	}
	if raw.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw.Timestamp); err == nil {
			out.Timestamp = t
		} else if t, err := time.Parse(time.RFC3339, raw.Timestamp); err == nil {
			out.Timestamp = t
		}
	}

	if raw.Message != nil {
		for _, b := range raw.Message.Content {
			out.Content = append(out.Content, decodeBlock(b))
		}
		if raw.Message.Usage != nil {
			out.Usage = &Usage{
				InputTokens:              raw.Message.Usage.InputTokens,
				OutputTokens:             raw.Message.Usage.OutputTokens,
				CacheReadInputTokens:     raw.Message.Usage.CacheReadInputTokens,
				CacheCreationInputTokens: raw.Message.Usage.CacheCreationInputTokens,
			}
		}
		return out, true
	}

	// Bare tool_result events carry their fields at the top level. Lift them
	// into a synthetic one-block content array so the assembler has a single
	// code path for result matching.
	if kind == KindToolResult {
		out.Content = []ContentBlock{{
			Type:            BlockToolResult,
			ResultToolUseID: raw.ToolUseID,
			ResultContent:   decodeOptionalString(raw.Content),
			IsError:         raw.IsError,
		}}
	}

	return out, true
}

// EncodeUserEvent builds the JSONL line for a synthetic user event: the
// interrupt+resume flow appends this to the live log before the resumed
// child is spawned, so the TUI shows exactly what was sent (spec: the
// synthetic event must precede the child's subsequent output).
func EncodeUserEvent(text, sessionID string, ts time.Time) []byte {
	wire := wireEvent{
		Type:      string(KindUser),
		Timestamp: ts.Format(time.RFC3339Nano),
		SessionID: sessionID,
		Message: &wireMessage{
			Content: []wireBlock{{Type: string(BlockText), Text: text}},
		},
	}
	data, _ := json.Marshal(wire)
	return data
}

func decodeBlock(b wireBlock) ContentBlock {
	switch BlockType(b.Type) {
	case BlockToolUse:
		return ContentBlock{
			Type:      BlockToolUse,
			ToolUseID: b.ID,
			ToolName:  b.Name,
			ToolInput: b.Input,
		}
	case BlockToolResult:
		return ContentBlock{
			Type:            BlockToolResult,
			ResultToolUseID: b.ToolUseID,
			ResultContent:   decodeOptionalString(b.Content),
			IsError:         b.IsError,
		}
	default:
		return ContentBlock{Type: BlockText, Text: b.Text}
	}
}

// decodeOptionalString turns a raw `content` field (string or null) into a
// plain string, with "" standing in for null.
func decodeOptionalString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Non-string content (shouldn't happen on a well-formed stream): fall
	// back to its raw JSON form rather than dropping it.
	return string(raw)
}
