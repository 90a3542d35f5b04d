// Package content classifies heterogeneous tool-result payloads into typed
// content blocks. Classification is total: every input maps to exactly one
// block, degrading to a text or annotated-error block instead of failing.
package content

import "encoding/json"

// Kind is the variant tag of a Block.
type Kind string

const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindAudio      Kind = "audio"
	KindResource   Kind = "resource"
	KindStructured Kind = "structured"
)

// Audience marks who a block is intended for.
type Audience string

const (
	AudienceUser      Audience = "user"
	AudienceAssistant Audience = "assistant"
	AudienceBoth      Audience = "both"
)

// Block is one typed unit of a tool result. Kind selects the variant; only
// that variant's fields are populated.
type Block struct {
	Kind Kind `json:"kind"`

	// Text
	Text     string   `json:"text,omitempty"`
	Audience Audience `json:"audience,omitempty"`
	Priority float64  `json:"priority,omitempty"`

	// Image / Audio / blob Resource. Bytes never appear here; media is
	// dereferenced through the artifact sink.
	MIMEType        string  `json:"mime_type,omitempty"`
	Title           string  `json:"title,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Ref             string  `json:"ref,omitempty"`
	ArtifactID      string  `json:"artifact_id,omitempty"`

	// Resource
	URI string `json:"uri,omitempty"`

	// Structured
	Structured json.RawMessage `json:"structured,omitempty"`

	// Err annotates a degraded block (store failure, bad payload). The block
	// keeps its Kind so callers can still render a placeholder.
	Err string `json:"error,omitempty"`
}

// ForAssistant reports whether the block should reach the language model.
func (b Block) ForAssistant() bool {
	return b.Audience == "" || b.Audience == AudienceBoth || b.Audience == AudienceAssistant
}

// ForUser reports whether the block should be shown in the UI.
func (b Block) ForUser() bool {
	return b.Audience == "" || b.Audience == AudienceBoth || b.Audience == AudienceUser
}

// rawItem is the wire shape of one content entry in a tool result.
type rawItem struct {
	Type        string          `json:"type"`
	Text        string          `json:"text"`
	Data        string          `json:"data"` // base64
	MIMEType    string          `json:"mimeType"`
	Annotations *annotations    `json:"annotations"`
	Resource    *rawResource    `json:"resource"`
	Value       json.RawMessage `json:"value"`
}

type annotations struct {
	Audience []string `json:"audience"`
	Priority *float64 `json:"priority"`
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
}

type rawResource struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
	Blob     string `json:"blob"` // base64
}

func (a *annotations) audience() Audience {
	if a == nil || len(a.Audience) == 0 {
		return AudienceBoth
	}
	var user, assistant bool
	for _, aud := range a.Audience {
		switch aud {
		case "user":
			user = true
		case "assistant":
			assistant = true
		}
	}
	switch {
	case user && assistant:
		return AudienceBoth
	case user:
		return AudienceUser
	case assistant:
		return AudienceAssistant
	}
	return AudienceBoth
}

func (a *annotations) priority() float64 {
	if a == nil || a.Priority == nil {
		return 0
	}
	p := *a.Priority
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
