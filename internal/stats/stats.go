// Package stats derives per-session token/tool statistics and per-message
// filter tags from an assembled conversation.
package stats

import (
	"time"

	"github.com/ralphcli/ralph/internal/conversation"
)

// Tokens tracks accumulated usage across a message slice. Input includes
// cache_read and cache_creation tokens, per spec; cache counters are also
// tracked separately for display.
type Tokens struct {
	Input         int
	Output        int
	CacheRead     int
	CacheCreation int
}

// Session summarizes a slice of ProcessedMessage.
type Session struct {
	Tokens         Tokens
	MessageCount   int
	ToolCallCount  int
	SubagentCount  int
	ErrorCount     int
	StartTime      *time.Time
	EndTime        *time.Time
}

// Compute walks msgs once, accumulating Session.
func Compute(msgs []*conversation.ProcessedMessage) Session {
	var s Session

	for _, m := range msgs {
		s.MessageCount++

		if m.Usage != nil {
			s.Tokens.Input += m.Usage.InputTokens + m.Usage.CacheRead + m.Usage.CacheCreation
			s.Tokens.Output += m.Usage.OutputTokens
			s.Tokens.CacheRead += m.Usage.CacheRead
			s.Tokens.CacheCreation += m.Usage.CacheCreation
		}

		for _, tc := range m.ToolCalls {
			s.ToolCallCount++
			if tc.IsSubagent {
				s.SubagentCount++
			}
			if tc.IsError {
				s.ErrorCount++
			}
		}

		if !m.Timestamp.IsZero() {
			if s.StartTime == nil {
				t := m.Timestamp
				s.StartTime = &t
			}
			t := m.Timestamp
			s.EndTime = &t
		}
	}

	return s
}

// FilterTag classifies a message for the filter UI.
type FilterTag string

const (
	FilterInitialPrompt FilterTag = "initial-prompt"
	FilterUser          FilterTag = "user"
	FilterThinking      FilterTag = "thinking"
	FilterTool          FilterTag = "tool"
	FilterAssistant     FilterTag = "assistant"
	FilterSubagent      FilterTag = "subagent"
	FilterSystem        FilterTag = "system"
	FilterResult        FilterTag = "result"
)

// Classify derives a message's filter tag. isInitialPrompt is computed by
// the caller: the first non-empty user message at or after the session
// boundary.
func Classify(m *conversation.ProcessedMessage, isInitialPrompt bool) FilterTag {
	if isInitialPrompt {
		return FilterInitialPrompt
	}

	switch m.Type {
	case conversation.MsgUser:
		return FilterUser
	case conversation.MsgSystem:
		return FilterSystem
	case conversation.MsgResult:
		return FilterResult
	}

	// Remaining case: assistant.
	hasText := m.Text != ""
	hasTools := len(m.ToolCalls) > 0

	switch {
	case hasText && !hasTools:
		return FilterThinking
	case hasTools && !hasText:
		if anySubagent(m.ToolCalls) {
			return FilterSubagent
		}
		return FilterTool
	default:
		return FilterAssistant
	}
}

func anySubagent(calls []*conversation.ToolCall) bool {
	for _, tc := range calls {
		if tc.IsSubagent {
			return true
		}
	}
	return false
}

// InitialPromptIndex returns the index (within msgs) of the first
// non-empty user message at or after startIndex, or -1 if none exists.
func InitialPromptIndex(msgs []*conversation.ProcessedMessage, startIndex int) int {
	if startIndex < 0 {
		startIndex = 0
	}
	for i := startIndex; i < len(msgs); i++ {
		if msgs[i].Type == conversation.MsgUser && msgs[i].Text != "" {
			return i
		}
	}
	return -1
}
