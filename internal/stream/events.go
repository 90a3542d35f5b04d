package stream

import "encoding/json"

// Wire event names produced by the response backend.
const (
	EventCreated         = "created"
	EventOutputTextDelta = "output_text.delta"
	EventReasoningDelta  = "reasoning.delta"
	EventToolCallAdded   = "tool_call.added"
	EventToolCallDone    = "tool_call.done"
	EventProgress        = "progress"
	EventCompleted       = "completed"
	EventFailed          = "failed"
)

// Synthesized locally, never seen on the wire.
const (
	// EventDecodeError carries a frame whose payload was not valid JSON.
	EventDecodeError = "decode_error"
	// EventTruncated marks a stream that ended without completed/failed.
	EventTruncated = "truncated"
	// EventUnknown is assigned when no event name could be determined.
	EventUnknown = "unknown"
)

// Event is a single decoded protocol event.
type Event struct {
	Index int             // ordinal within this stream
	Name  string          // wire event name, or a synthetic name above
	Data  json.RawMessage // payload from the data: line(s)
	Raw   string          // original frame text, set for decode_error only
}

// Known reports whether the event name is part of the recognized protocol.
// Unknown names are passed through so callers can log or ignore them without
// losing forward compatibility.
func (e Event) Known() bool {
	switch e.Name {
	case EventCreated, EventOutputTextDelta, EventReasoningDelta,
		EventToolCallAdded, EventToolCallDone, EventProgress,
		EventCompleted, EventFailed,
		EventDecodeError, EventTruncated:
		return true
	}
	return false
}

// Created payload (first event of an exchange; carries the backend id).
type Created struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Model  string `json:"model"`
}

// Delta payload shared by output_text.delta and reasoning.delta.
type Delta struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type ToolCallAdded struct {
	Item struct {
		ID           string          `json:"id"`
		ToolType     string          `json:"tool_type"`
		ToolName     string          `json:"tool_name"`
		Input        json.RawMessage `json:"input"`
		OutputSchema json.RawMessage `json:"output_schema"`
	} `json:"item"`
}

type ToolCallDone struct {
	Item struct {
		ID         string            `json:"id"`
		Status     string            `json:"status"`
		Content    []json.RawMessage `json:"content"`
		Structured json.RawMessage   `json:"structured"`
		Error      json.RawMessage   `json:"error"` // string OR {message, code}
	} `json:"item"`
}

type Progress struct {
	Token    string   `json:"token"`
	Progress float64  `json:"progress"`
	Total    *float64 `json:"total"`
	Message  string   `json:"message"`
}

type Completed struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Model  string `json:"model"`
	Usage  *Usage `json:"usage"`
}

type Failed struct {
	ID    string          `json:"id"`
	Error json.RawMessage `json:"error"` // string OR {message, code}
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Total        int `json:"total"`
}

// ErrorMessage handles both string and {message, code} error forms.
func ErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
