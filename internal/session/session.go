package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sessiond/internal/artifact"
	"sessiond/internal/content"
	"sessiond/internal/notify"
	"sessiond/internal/stream"
)

// Session reconstructs one Response from its event stream. Two producers
// touch it: the main stream (Feed/CloseStream) and out-of-band progress
// notifications (Progress). A single mutex serializes both; sessions are
// independent of each other.
type Session struct {
	// ID is the locally generated correlation token. It identifies the
	// exchange before the created event delivers the backend id, and keys
	// the notify topic for the session's lifetime.
	ID string

	mu         sync.Mutex
	parser     *stream.Parser
	resp       *Response
	correlator *Correlator
	classifier *content.Classifier
	cost       CostModel
	bus        *notify.Bus
	log        zerolog.Logger
	cancelled  bool
}

// SessionOptions bundles the collaborators shared across sessions.
type SessionOptions struct {
	Classifier *content.Classifier
	Cost       CostModel
	Bus        *notify.Bus
	// ProgressGrace is how long progress tokens stay resolvable after the
	// Response reaches a terminal status.
	ProgressGrace time.Duration
}

func New(opts SessionOptions) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		parser:     stream.NewParser(),
		resp:       newResponse(),
		correlator: NewCorrelator(opts.ProgressGrace),
		classifier: opts.Classifier,
		cost:       opts.Cost,
		bus:        opts.Bus,
		log:        log.With().Str("session_id", id).Logger(),
	}
}

// Feed parses a raw stream chunk and applies the events it completes. Chunk
// boundaries are arbitrary; the parser reassembles frames across them.
func (s *Session) Feed(ctx context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return ErrSessionCancelled
	}
	for _, ev := range s.parser.Feed(chunk) {
		s.apply(ctx, ev)
	}
	return nil
}

// CloseStream signals end of input. A trailing partial frame is flushed and,
// if no terminal event was seen, the Response moves to truncated.
func (s *Session) CloseStream(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.parser.Close() {
		s.apply(ctx, ev)
	}
}

// Progress applies an out-of-band progress notification. Unknown tokens are
// dropped silently: notifications may race call registration or arrive after
// release, and neither case is an error.
func (s *Session) Progress(token string, progress float64, total *float64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	callID, ok := s.correlator.Resolve(token)
	if !ok {
		return
	}
	s.applyToolProgress(callID, progress, total, message)
}

// RegisterProgressToken binds a token to a tool call for correlation of
// future notifications.
func (s *Session) RegisterProgressToken(token, toolCallID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.correlator.Register(token, toolCallID)
}

// Cancel aborts the session. The Response moves to truncated, running tool
// calls fail with the cause, and further Feed calls return
// ErrSessionCancelled. Cancelling a terminal session is a no-op.
func (s *Session) Cancel(cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.resp.Terminal() {
		return
	}

	if cause == "" {
		cause = "session cancelled"
	}
	s.failRunningCalls(cause)
	s.finalize(StatusTruncated)
	s.log.Info().Str("cause", cause).Msg("session cancelled")
}

// Snapshot returns the Response in its current state. The returned value
// shares tool-call pointers with the session; treat it as read-only.
func (s *Session) Snapshot() *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp
}

// Final returns the Response once it has reached a terminal status.
func (s *Session) Final() (*Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resp.Terminal() {
		return nil, false
	}
	return s.resp, true
}

// Done reports whether the Response reached a terminal status.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp.Terminal()
}

// apply dispatches one decoded event. Callers hold s.mu. Events arriving
// after the Response is terminal are logged and ignored, except synthetic
// decode errors which are always just logged.
func (s *Session) apply(ctx context.Context, ev stream.Event) {
	if ev.Name == stream.EventDecodeError {
		s.log.Warn().Int("index", ev.Index).Str("frame", ev.Raw).Msg("undecodable frame")
		return
	}

	if s.resp.Terminal() {
		s.log.Debug().Str("event", ev.Name).Int("index", ev.Index).Msg("event after terminal ignored")
		return
	}

	switch ev.Name {
	case stream.EventCreated:
		s.applyCreated(ev)
	case stream.EventOutputTextDelta:
		s.applyDelta(ev, false)
	case stream.EventReasoningDelta:
		s.applyDelta(ev, true)
	case stream.EventToolCallAdded:
		s.applyToolCallAdded(ev)
	case stream.EventToolCallDone:
		s.applyToolCallDone(ctx, ev)
	case stream.EventProgress:
		s.applyInBandProgress(ev)
	case stream.EventCompleted:
		s.applyCompleted(ev)
	case stream.EventFailed:
		s.applyFailed(ev)
	case stream.EventTruncated:
		s.applyTruncated()
	default:
		s.log.Debug().Str("event", ev.Name).Msg("unknown event ignored")
	}
}

func (s *Session) applyCreated(ev stream.Event) {
	var payload stream.Created
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed created payload")
		return
	}

	if s.resp.Status != StatusQueued {
		s.log.Debug().Str("status", string(s.resp.Status)).Msg("duplicate created ignored")
		return
	}
	s.resp.ID = payload.ID
	s.resp.Model = payload.Model
	s.resp.Status = StatusInProgress

	s.publish(notify.Update{Kind: notify.UpdateStatus, Status: string(StatusInProgress)})
}

func (s *Session) applyDelta(ev stream.Event, reasoning bool) {
	var payload stream.Delta
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Name).Msg("malformed delta payload")
		return
	}

	if reasoning {
		s.resp.ReasoningSummary += payload.Delta.Text
		s.publish(notify.Update{Kind: notify.UpdateReasoningDelta, Text: payload.Delta.Text})
		return
	}
	s.resp.OutputText += payload.Delta.Text
	s.publish(notify.Update{Kind: notify.UpdateTextDelta, Text: payload.Delta.Text})
}

func (s *Session) applyToolCallAdded(ev stream.Event) {
	var payload stream.ToolCallAdded
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed tool_call.added payload")
		return
	}
	item := payload.Item

	if _, exists := s.resp.ToolCall(item.ID); exists {
		s.log.Debug().Str("tool_call_id", item.ID).Msg("duplicate tool_call.added ignored")
		return
	}

	tc := newToolCall(item.ID, item.ToolType, item.ToolName, item.Input, item.OutputSchema)
	s.resp.addToolCall(tc)
	tc.start()

	if token := progressTokenFromInput(item.Input); token != "" {
		s.correlator.Register(token, item.ID)
	}

	s.publish(notify.Update{Kind: notify.UpdateToolAdded, ToolCallID: item.ID, Message: item.ToolName})
}

func (s *Session) applyToolCallDone(ctx context.Context, ev stream.Event) {
	var payload stream.ToolCallDone
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed tool_call.done payload")
		return
	}
	item := payload.Item

	tc, ok := s.resp.ToolCall(item.ID)
	if !ok {
		s.log.Warn().Str("tool_call_id", item.ID).Msg("tool_call.done for unknown call ignored")
		return
	}
	if tc.Terminal() {
		s.log.Debug().Str("tool_call_id", item.ID).Msg("duplicate tool_call.done ignored")
		return
	}

	blocks, artifacts := s.classifyContent(ctx, item.ID, item.Content)

	if item.Status == "failed" || len(item.Error) > 0 {
		tc.fail(stream.ErrorMessage(item.Error), blocks, artifacts)
	} else {
		structured := item.Structured
		if len(structured) > 0 && len(tc.OutputSchema) > 0 {
			if err := content.ValidateStructured(tc.OutputSchema, structured); err != nil {
				// Schema violations degrade: keep the raw value as a text
				// block with an error annotation instead of failing the call.
				s.log.Warn().Err(err).Str("tool_call_id", item.ID).Msg("structured output rejected by schema")
				blocks = append(blocks, content.Block{
					Kind:     content.KindText,
					Text:     string(structured),
					Audience: content.AudienceBoth,
					Priority: 1,
					Err:      "structured output failed schema validation: " + err.Error(),
				})
				structured = nil
			}
		}
		tc.complete(blocks, artifacts, structured)
	}

	s.correlator.ReleaseCall(item.ID)

	for _, a := range artifacts {
		s.publish(notify.Update{Kind: notify.UpdateArtifact, ToolCallID: item.ID, Ref: a.Ref})
	}
	s.publish(notify.Update{Kind: notify.UpdateToolDone, ToolCallID: item.ID, Status: string(tc.Status)})
}

func (s *Session) classifyContent(ctx context.Context, toolCallID string, items []json.RawMessage) ([]content.Block, []*artifact.Artifact) {
	var (
		blocks    []content.Block
		artifacts []*artifact.Artifact
	)
	for _, raw := range items {
		block, art := s.classifier.Classify(ctx, raw, toolCallID)
		blocks = append(blocks, block)
		if art != nil {
			artifacts = append(artifacts, art)
		}
	}
	return blocks, artifacts
}

func (s *Session) applyInBandProgress(ev stream.Event) {
	var payload stream.Progress
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed progress payload")
		return
	}

	callID, ok := s.correlator.Resolve(payload.Token)
	if !ok {
		return
	}
	s.applyToolProgress(callID, payload.Progress, payload.Total, payload.Message)
}

func (s *Session) applyToolProgress(callID string, progress float64, total *float64, message string) {
	tc, ok := s.resp.ToolCall(callID)
	if !ok {
		return
	}

	tot := 0.0
	if total != nil {
		tot = *total
	}
	if !tc.applyProgress(progress, tot, message) {
		return
	}

	s.publish(notify.Update{
		Kind:       notify.UpdateToolProgress,
		ToolCallID: callID,
		Progress:   tc.Progress.Progress,
		Total:      tc.Progress.Total,
		Message:    message,
	})
}

func (s *Session) applyCompleted(ev stream.Event) {
	var payload stream.Completed
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed completed payload")
		return
	}

	if payload.Model != "" {
		s.resp.Model = payload.Model
	}
	s.resp.Usage = payload.Usage

	if running := s.resp.runningToolCalls(); len(running) > 0 {
		// The backend claims completion while calls are still open. Trust the
		// terminal event; the calls stay as delivered for inspection.
		s.log.Warn().Int("running", len(running)).Msg("completed with tool calls still running")
	}

	s.finalize(StatusCompleted)
}

func (s *Session) applyFailed(ev stream.Event) {
	var payload stream.Failed
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.Warn().Err(err).Msg("malformed failed payload")
	}

	s.resp.Error = stream.ErrorMessage(payload.Error)
	s.failRunningCalls("response failed: " + s.resp.Error)
	s.finalize(StatusFailed)
}

func (s *Session) applyTruncated() {
	s.failRunningCalls("stream ended before tool call completed")
	s.finalize(StatusTruncated)
}

func (s *Session) failRunningCalls(cause string) {
	for _, tc := range s.resp.runningToolCalls() {
		tc.fail(cause, nil, nil)
		s.correlator.ReleaseCall(tc.ID)
		s.publish(notify.Update{Kind: notify.UpdateToolDone, ToolCallID: tc.ID, Status: string(ToolFailed)})
	}
}

func (s *Session) finalize(status Status) {
	if s.cost != nil {
		breakdown := s.cost.Cost(s.resp.Model, s.resp.Usage, s.resp.ToolCalls())
		s.resp.Cost = breakdown
		for id, fee := range breakdown.PerTool {
			if tc, ok := s.resp.ToolCall(id); ok {
				tc.Cost = fee
			}
		}
	}

	s.resp.finish(status)
	s.correlator.ReleaseAfterGrace()

	s.log.Info().
		Str("status", string(status)).
		Str("response_id", s.resp.ID).
		Int("tool_calls", len(s.resp.ToolCalls())).
		Msg("response finished")

	s.publish(notify.Update{Kind: notify.UpdateStatus, Status: string(status)})
}

func (s *Session) publish(u notify.Update) {
	if s.bus == nil {
		return
	}
	u.SessionID = s.ID
	s.bus.Publish(u)
}

// progressTokenFromInput extracts the caller-supplied progress token from a
// tool call's input, if present.
func progressTokenFromInput(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var meta struct {
		Meta struct {
			ProgressToken any `json:"progressToken"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(input, &meta); err != nil {
		return ""
	}
	switch v := meta.Meta.ProgressToken.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
