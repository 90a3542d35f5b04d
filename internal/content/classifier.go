package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sessiond/internal/artifact"
)

// Classifier maps raw content items to Blocks, routing binary payloads
// through the artifact sink. A Classifier is shared across sessions; it holds
// no per-session state.
type Classifier struct {
	sink artifact.Sink
	ttl  time.Duration // artifact expiry; 0 = never expires
}

func NewClassifier(sink artifact.Sink, ttl time.Duration) *Classifier {
	return &Classifier{sink: sink, ttl: ttl}
}

// Classify turns one raw content item into exactly one Block. It never
// returns an error: unknown types degrade to text, and media whose payload or
// sink store fails keep their Kind with an error annotation. The returned
// Artifact is non-nil only when bytes were stored successfully.
func (c *Classifier) Classify(ctx context.Context, raw json.RawMessage, toolCallID string) (Block, *artifact.Artifact) {
	var item rawItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return Block{
			Kind: KindText,
			Text: string(raw),
			Err:  "unparseable content item",
		}, nil
	}

	switch item.Type {
	case "text":
		return Block{
			Kind:     KindText,
			Text:     item.Text,
			Audience: item.Annotations.audience(),
			Priority: item.Annotations.priority(),
		}, nil

	case "image":
		mime := item.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return c.storeBinary(ctx, KindImage, item, mime, item.Data, "", toolCallID)

	case "audio":
		mime := item.MIMEType
		if mime == "" {
			mime = "audio/wav"
		}
		return c.storeBinary(ctx, KindAudio, item, mime, item.Data, "", toolCallID)

	case "resource":
		return c.classifyResource(ctx, item, toolCallID)

	case "structured":
		value := item.Value
		if len(value) == 0 {
			value = raw
		}
		return Block{Kind: KindStructured, Structured: value}, nil
	}

	// Unknown or missing type: best-effort fallback so future content kinds
	// degrade instead of breaking the pipeline.
	log.Debug().Str("content_type", item.Type).Msg("unknown content type, falling back to text")
	return Block{Kind: KindText, Text: string(raw)}, nil
}

func (c *Classifier) classifyResource(ctx context.Context, item rawItem, toolCallID string) (Block, *artifact.Artifact) {
	res := item.Resource
	if res == nil {
		return Block{Kind: KindResource, Err: "resource entry without resource body"}, nil
	}

	if res.Blob != "" {
		mime := res.MIMEType
		if mime == "" {
			mime = "application/octet-stream"
		}
		block, art := c.storeBinary(ctx, KindResource, item, mime, res.Blob, res.URI, toolCallID)
		return block, art
	}

	return Block{
		Kind:     KindResource,
		URI:      res.URI,
		MIMEType: res.MIMEType,
		Text:     res.Text,
	}, nil
}

// storeBinary decodes the transport encoding and invokes the sink
// synchronously. Failures downgrade the block; they never fail the session.
func (c *Classifier) storeBinary(ctx context.Context, kind Kind, item rawItem, mime, encoded, uri, toolCallID string) (Block, *artifact.Artifact) {
	block := Block{
		Kind:     kind,
		MIMEType: mime,
		URI:      uri,
	}
	if item.Annotations != nil {
		block.Title = item.Annotations.Title
		block.DurationSeconds = item.Annotations.Duration
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		block.Err = fmt.Sprintf("invalid base64 payload: %v", err)
		return block, nil
	}

	ref, err := c.sink.Store(ctx, data, mime)
	if err != nil {
		log.Warn().Err(err).
			Str("tool_call_id", toolCallID).
			Str("mime", mime).
			Msg("artifact store failed, downgrading block")
		block.Err = fmt.Sprintf("artifact store failed: %v", err)
		return block, nil
	}

	art := &artifact.Artifact{
		ID:               uuid.NewString(),
		SourceToolCallID: toolCallID,
		Type:             string(kind),
		MIMEType:         mime,
		SizeBytes:        int64(len(data)),
		Ref:              ref,
		CreatedAt:        time.Now().UTC(),
	}
	if c.ttl > 0 {
		exp := art.CreatedAt.Add(c.ttl)
		art.ExpiresAt = &exp
	}

	block.Ref = ref
	block.ArtifactID = art.ID
	return block, art
}
