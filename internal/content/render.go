package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RenderForModel produces the text forwarded to the language model. Media
// blocks collapse to short placeholders carrying the storage reference, which
// is where the bulk of the token-footprint reduction for media-bearing tool
// results comes from. Blocks not addressed to the assistant are skipped.
func RenderForModel(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if !b.ForAssistant() {
			continue
		}
		if s := renderBlock(b, true); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// RenderForUser produces the UI-facing text, honoring user audience
// annotations.
func RenderForUser(blocks []Block) string {
	var parts []string
	for _, b := range blocks {
		if !b.ForUser() {
			continue
		}
		if s := renderBlock(b, false); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func renderBlock(b Block, includeStructured bool) string {
	if b.Err != "" {
		return fmt.Sprintf("[Content error: %s]", b.Err)
	}

	switch b.Kind {
	case KindText:
		return b.Text
	case KindImage:
		if b.Ref != "" {
			return fmt.Sprintf("[Image: %s] (%s)", b.MIMEType, b.Ref)
		}
		return fmt.Sprintf("[Image: %s]", b.MIMEType)
	case KindAudio:
		if b.Ref != "" {
			return fmt.Sprintf("[Audio: %s] (%s)", b.MIMEType, b.Ref)
		}
		return fmt.Sprintf("[Audio: %s]", b.MIMEType)
	case KindResource:
		if b.Ref != "" {
			return fmt.Sprintf("[Resource: %s (%s)] (%s)", b.URI, b.MIMEType, b.Ref)
		}
		if b.Text != "" {
			return fmt.Sprintf("[Resource: %s]\n%s", b.URI, b.Text)
		}
		return fmt.Sprintf("[Resource: %s]", b.URI)
	case KindStructured:
		if !includeStructured {
			return ""
		}
		return "[Structured Data]\n" + compactJSON(b.Structured)
	}
	return ""
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
