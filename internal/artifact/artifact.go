// Package artifact routes decoded binary payloads to external storage and
// hands back opaque references. The session core never holds raw media bytes;
// it keeps Artifact records pointing at a Sink-issued reference.
package artifact

import (
	"context"
	"errors"
	"time"
)

// ErrTooLarge is returned by sinks when a payload exceeds the configured cap.
var ErrTooLarge = errors.New("artifact: payload exceeds size limit")

// Artifact is the stored-media record attached to a tool call. Only the
// storage reference travels with the conversation; bytes stay in the sink.
type Artifact struct {
	ID               string     `json:"id"`
	SourceToolCallID string     `json:"source_tool_call_id,omitempty"`
	Type             string     `json:"type"` // "image" | "audio" | "resource"
	MIMEType         string     `json:"mime_type"`
	SizeBytes        int64      `json:"size_bytes"`
	Ref              string     `json:"ref"` // opaque handle issued by the sink
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// Sink accepts decoded binary payloads and returns a stable reference.
// Implementations must be safe for concurrent use across sessions.
type Sink interface {
	Store(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ExtensionForMIME maps a MIME type to a file extension for object naming.
func ExtensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	case "audio/wav":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/webm":
		return "webm"
	case "audio/flac":
		return "flac"
	}
	if i := lastSlash(mimeType); i >= 0 && i+1 < len(mimeType) {
		return mimeType[i+1:]
	}
	return "bin"
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
