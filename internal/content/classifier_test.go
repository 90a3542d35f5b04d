package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessiond/internal/artifact"
)

func classify(t *testing.T, sink artifact.Sink, raw string) (Block, *artifact.Artifact) {
	t.Helper()
	c := NewClassifier(sink, 0)
	return c.Classify(context.Background(), json.RawMessage(raw), "t1")
}

func TestClassify_Text(t *testing.T) {
	block, art := classify(t, artifact.NewMemorySink(), `{"type":"text","text":"hello"}`)

	assert.Equal(t, KindText, block.Kind)
	assert.Equal(t, "hello", block.Text)
	assert.Equal(t, AudienceBoth, block.Audience)
	assert.Nil(t, art)
}

func TestClassify_TextAnnotations(t *testing.T) {
	raw := `{"type":"text","text":"debug dump","annotations":{"audience":["assistant"],"priority":0.9}}`
	block, _ := classify(t, artifact.NewMemorySink(), raw)

	assert.Equal(t, AudienceAssistant, block.Audience)
	assert.InDelta(t, 0.9, block.Priority, 1e-9)
	assert.True(t, block.ForAssistant())
	assert.False(t, block.ForUser())
}

func TestClassify_ImageStoresExactlyOneArtifact(t *testing.T) {
	sink := artifact.NewMemorySink()
	payload := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})
	raw := fmt.Sprintf(`{"type":"image","data":%q,"mimeType":"image/png"}`, payload)

	block, art := classify(t, sink, raw)

	require.NotNil(t, art)
	assert.Equal(t, KindImage, block.Kind)
	assert.Equal(t, "image/png", block.MIMEType)
	assert.Equal(t, art.Ref, block.Ref)
	assert.Equal(t, art.ID, block.ArtifactID)
	assert.Equal(t, "t1", art.SourceToolCallID)
	assert.Equal(t, int64(4), art.SizeBytes)
	assert.Len(t, sink.Objects(), 1)
	// Raw bytes never end up on the block itself.
	assert.Empty(t, block.Text)
	assert.Empty(t, block.Err)
}

func TestClassify_ImageDefaultMIME(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1})
	block, _ := classify(t, artifact.NewMemorySink(), fmt.Sprintf(`{"type":"image","data":%q}`, payload))
	assert.Equal(t, "image/png", block.MIMEType)
}

func TestClassify_SinkFailureDowngradesBlock(t *testing.T) {
	sink := artifact.NewMemorySink()
	sink.FailWith = errors.New("quota exceeded")
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2})
	raw := fmt.Sprintf(`{"type":"audio","data":%q,"mimeType":"audio/wav"}`, payload)

	block, art := classify(t, sink, raw)

	assert.Nil(t, art)
	assert.Equal(t, KindAudio, block.Kind)
	assert.Contains(t, block.Err, "quota exceeded")
	assert.Empty(t, block.Ref)
}

func TestClassify_BadBase64DowngradesBlock(t *testing.T) {
	block, art := classify(t, artifact.NewMemorySink(), `{"type":"image","data":"!!not-base64!!"}`)

	assert.Nil(t, art)
	assert.Equal(t, KindImage, block.Kind)
	assert.Contains(t, block.Err, "invalid base64")
}

func TestClassify_TextResource(t *testing.T) {
	raw := `{"type":"resource","resource":{"uri":"file:///notes.txt","mimeType":"text/plain","text":"contents"}}`
	block, art := classify(t, artifact.NewMemorySink(), raw)

	assert.Nil(t, art)
	assert.Equal(t, KindResource, block.Kind)
	assert.Equal(t, "file:///notes.txt", block.URI)
	assert.Equal(t, "contents", block.Text)
}

func TestClassify_BlobResourceStoresArtifact(t *testing.T) {
	sink := artifact.NewMemorySink()
	payload := base64.StdEncoding.EncodeToString([]byte("pdf-bytes"))
	raw := fmt.Sprintf(`{"type":"resource","resource":{"uri":"doc://1","mimeType":"application/pdf","blob":%q}}`, payload)

	block, art := classify(t, sink, raw)

	require.NotNil(t, art)
	assert.Equal(t, KindResource, block.Kind)
	assert.Equal(t, "doc://1", block.URI)
	assert.Equal(t, art.Ref, block.Ref)
	assert.Equal(t, "application/pdf", art.MIMEType)
}

func TestClassify_Structured(t *testing.T) {
	block, art := classify(t, artifact.NewMemorySink(), `{"type":"structured","value":{"rows":3}}`)

	assert.Nil(t, art)
	assert.Equal(t, KindStructured, block.Kind)
	assert.JSONEq(t, `{"rows":3}`, string(block.Structured))
}

func TestClassify_UnknownTypeFallsBackToText(t *testing.T) {
	raw := `{"type":"hologram","frames":12}`
	block, art := classify(t, artifact.NewMemorySink(), raw)

	assert.Nil(t, art)
	assert.Equal(t, KindText, block.Kind)
	assert.Contains(t, block.Text, "hologram")
	assert.Empty(t, block.Err)
}

func TestClassify_UnparseableItem(t *testing.T) {
	block, art := classify(t, artifact.NewMemorySink(), `not-json`)

	assert.Nil(t, art)
	assert.Equal(t, KindText, block.Kind)
	assert.NotEmpty(t, block.Err)
}

func TestClassifier_ArtifactTTL(t *testing.T) {
	c := NewClassifier(artifact.NewMemorySink(), 3600e9) // 1h
	payload := base64.StdEncoding.EncodeToString([]byte{1})
	raw := json.RawMessage(fmt.Sprintf(`{"type":"image","data":%q}`, payload))

	_, art := c.Classify(context.Background(), raw, "t1")

	require.NotNil(t, art)
	require.NotNil(t, art.ExpiresAt)
	assert.Equal(t, art.CreatedAt.Add(3600e9), *art.ExpiresAt)
}

func TestRenderForModel(t *testing.T) {
	blocks := []Block{
		{Kind: KindText, Text: "result summary"},
		{Kind: KindImage, MIMEType: "image/png", Ref: "s3://b/a.png"},
		{Kind: KindText, Text: "ui only", Audience: AudienceUser},
		{Kind: KindStructured, Structured: json.RawMessage(`{"n": 1}`)},
	}

	got := RenderForModel(blocks)

	assert.Contains(t, got, "result summary")
	assert.Contains(t, got, "[Image: image/png] (s3://b/a.png)")
	assert.NotContains(t, got, "ui only")
	assert.Contains(t, got, "[Structured Data]\n{\"n\":1}")
}

func TestRenderForUser(t *testing.T) {
	blocks := []Block{
		{Kind: KindText, Text: "for everyone"},
		{Kind: KindText, Text: "model only", Audience: AudienceAssistant},
		{Kind: KindAudio, MIMEType: "audio/wav", Ref: "file:///a.wav"},
		{Kind: KindStructured, Structured: json.RawMessage(`{"n":1}`)},
	}

	got := RenderForUser(blocks)

	assert.Contains(t, got, "for everyone")
	assert.NotContains(t, got, "model only")
	assert.Contains(t, got, "[Audio: audio/wav] (file:///a.wav)")
	assert.NotContains(t, got, "[Structured Data]")
}

func TestRender_DegradedBlock(t *testing.T) {
	blocks := []Block{{Kind: KindImage, MIMEType: "image/png", Err: "artifact store failed: quota"}}
	assert.Contains(t, RenderForModel(blocks), "[Content error: artifact store failed: quota]")
}

func TestValidateStructured(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"rows":{"type":"integer"}},"required":["rows"]}`)

	assert.NoError(t, ValidateStructured(schema, json.RawMessage(`{"rows":3}`)))
	assert.Error(t, ValidateStructured(schema, json.RawMessage(`{"rows":"three"}`)))
	assert.Error(t, ValidateStructured(schema, json.RawMessage(`{}`)))
	assert.NoError(t, ValidateStructured(nil, json.RawMessage(`{}`)))
	assert.NoError(t, ValidateStructured(schema, nil))
}
