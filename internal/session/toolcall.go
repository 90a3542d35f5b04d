package session

import (
	"encoding/json"
	"time"

	"sessiond/internal/artifact"
	"sessiond/internal/content"
)

// ToolStatus is the lifecycle state of a tool invocation.
type ToolStatus string

const (
	ToolQueued    ToolStatus = "queued"
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

// ToolProgress holds the latest progress notification applied to a call.
// Values are latest-received, not enforced monotonic; out-of-order delivery
// shows the most recent arrival.
type ToolProgress struct {
	Progress  float64   `json:"progress"`
	Total     float64   `json:"total"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolCall is one tool invocation owned by its parent Response. It moves
// queued -> running -> {completed, failed}; no transition leaves a terminal
// state, since duplicate delivery is expected under upstream retry.
type ToolCall struct {
	ID           string          `json:"id"`
	ToolType     string          `json:"tool_type"`
	ToolName     string          `json:"tool_name,omitempty"`
	Status       ToolStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`

	Blocks           []content.Block      `json:"blocks,omitempty"`
	Artifacts        []*artifact.Artifact `json:"artifacts,omitempty"`
	StructuredOutput json.RawMessage      `json:"structured_output,omitempty"`
	Error            string               `json:"error,omitempty"`
	Cost             float64              `json:"cost,omitempty"`
	Progress         *ToolProgress        `json:"progress,omitempty"`
}

func newToolCall(id, toolType, toolName string, input, outputSchema json.RawMessage) *ToolCall {
	return &ToolCall{
		ID:           id,
		ToolType:     toolType,
		ToolName:     toolName,
		Status:       ToolQueued,
		CreatedAt:    time.Now().UTC(),
		Input:        input,
		OutputSchema: outputSchema,
	}
}

// start moves queued -> running. The creation event doubles as the start of
// execution, so the session applies this immediately after registration.
func (t *ToolCall) start() bool {
	if t.Status != ToolQueued {
		return false
	}
	t.Status = ToolRunning
	return true
}

// Terminal reports whether the call reached completed or failed.
func (t *ToolCall) Terminal() bool {
	return t.Status == ToolCompleted || t.Status == ToolFailed
}

// complete applies a successful terminal result. Returns false (unapplied)
// when the call is already terminal.
func (t *ToolCall) complete(blocks []content.Block, artifacts []*artifact.Artifact, structured json.RawMessage) bool {
	if t.Terminal() {
		return false
	}
	now := time.Now().UTC()
	t.Status = ToolCompleted
	t.CompletedAt = &now
	t.Blocks = blocks
	t.Artifacts = artifacts
	t.StructuredOutput = structured
	return true
}

// fail applies a failed terminal result, keeping any partial content already
// classified. Returns false when the call is already terminal.
func (t *ToolCall) fail(errMsg string, blocks []content.Block, artifacts []*artifact.Artifact) bool {
	if t.Terminal() {
		return false
	}
	now := time.Now().UTC()
	t.Status = ToolFailed
	t.CompletedAt = &now
	t.Error = errMsg
	if len(blocks) > 0 {
		t.Blocks = blocks
	}
	if len(artifacts) > 0 {
		t.Artifacts = artifacts
	}
	return true
}

func (t *ToolCall) applyProgress(progress, total float64, message string) bool {
	if t.Terminal() {
		return false
	}
	if total <= 0 {
		total = 1
	}
	t.Progress = &ToolProgress{
		Progress:  progress,
		Total:     total,
		Message:   message,
		UpdatedAt: time.Now().UTC(),
	}
	return true
}

// Fraction returns progress normalized to [0,1].
func (p *ToolProgress) Fraction() float64 {
	if p == nil || p.Total <= 0 {
		return 0
	}
	f := p.Progress / p.Total
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
