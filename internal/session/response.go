package session

import (
	"encoding/json"
	"time"

	"sessiond/internal/stream"
)

// Status is the lifecycle state of a Response.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusTruncated means the stream ended (or was cancelled) without an
	// explicit terminal event. No error was reported, but completeness cannot
	// be assumed. Distinct from failed.
	StatusTruncated Status = "truncated"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTruncated:
		return true
	}
	return false
}

// Response is one model-generated turn reconstructed from the event stream.
// The backend id is unknown until the created event arrives; until then the
// session's locally generated token identifies the exchange. A Response is
// mutated only by its session, strictly in event-arrival order, and freezes
// once terminal. Partial state stays readable after failed/truncated so
// callers can display what accumulated.
type Response struct {
	ID                   string `json:"id,omitempty"`
	PreviousResponseID   string `json:"previous_response_id,omitempty"`
	ConversationPosition int    `json:"conversation_position"`

	Status           Status        `json:"status"`
	Model            string        `json:"model,omitempty"`
	OutputText       string        `json:"output_text,omitempty"`
	ReasoningSummary string        `json:"reasoning_summary,omitempty"`
	Usage            *stream.Usage `json:"usage,omitempty"`
	Cost             CostBreakdown `json:"cost"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`

	toolCalls map[string]*ToolCall
	toolOrder []string
}

func newResponse() *Response {
	return &Response{
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		toolCalls: make(map[string]*ToolCall),
	}
}

// Terminal reports whether the Response is frozen.
func (r *Response) Terminal() bool {
	return r.Status.Terminal()
}

// ToolCall returns the call with the given id, if any.
func (r *Response) ToolCall(id string) (*ToolCall, bool) {
	tc, ok := r.toolCalls[id]
	return tc, ok
}

// ToolCalls returns calls in registration order.
func (r *Response) ToolCalls() []*ToolCall {
	calls := make([]*ToolCall, 0, len(r.toolOrder))
	for _, id := range r.toolOrder {
		calls = append(calls, r.toolCalls[id])
	}
	return calls
}

func (r *Response) addToolCall(tc *ToolCall) {
	r.toolCalls[tc.ID] = tc
	r.toolOrder = append(r.toolOrder, tc.ID)
}

// runningToolCalls returns calls not yet terminal.
func (r *Response) runningToolCalls() []*ToolCall {
	var running []*ToolCall
	for _, id := range r.toolOrder {
		if tc := r.toolCalls[id]; !tc.Terminal() {
			running = append(running, tc)
		}
	}
	return running
}

func (r *Response) finish(status Status) {
	now := time.Now().UTC()
	r.Status = status
	r.FinishedAt = &now
}

// responseAlias sidesteps the custom (un)marshalers below.
type responseAlias Response

type responseJSON struct {
	*responseAlias
	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`
}

// MarshalJSON includes tool calls in registration order, so a serialized
// Response round-trips through a non-memory Store without losing them.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseJSON{
		responseAlias: (*responseAlias)(r),
		ToolCalls:     r.ToolCalls(),
	})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	aux := responseJSON{responseAlias: (*responseAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.toolCalls = make(map[string]*ToolCall, len(aux.ToolCalls))
	r.toolOrder = nil
	for _, tc := range aux.ToolCalls {
		r.addToolCall(tc)
	}
	return nil
}
