// Package notify delivers incremental response-state updates to subscribers
// (live UI rendering, gateway fan-out). Built on watermill's in-process
// pub/sub; each session publishes to its own topic plus a firehose topic.
package notify

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// UpdateKind discriminates incremental update payloads.
type UpdateKind string

const (
	UpdateStatus         UpdateKind = "status"
	UpdateTextDelta      UpdateKind = "text_delta"
	UpdateReasoningDelta UpdateKind = "reasoning_delta"
	UpdateToolAdded      UpdateKind = "tool_added"
	UpdateToolDone       UpdateKind = "tool_done"
	UpdateToolProgress   UpdateKind = "tool_progress"
	UpdateArtifact       UpdateKind = "artifact"
)

// Update is one incremental change to a session's Response state.
type Update struct {
	SessionID  string     `json:"session_id"`
	Kind       UpdateKind `json:"kind"`
	Status     string     `json:"status,omitempty"`
	Text       string     `json:"text,omitempty"` // delta text
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Progress   float64    `json:"progress,omitempty"`
	Total      float64    `json:"total,omitempty"`
	Message    string     `json:"message,omitempty"`
	Ref        string     `json:"ref,omitempty"` // artifact reference
}

const allTopic = "sessions.all"

func topicFor(sessionID string) string {
	return "sessions." + sessionID
}

// Bus is an injected per-process update bus. It is deliberately not a
// package-level singleton; sessions receive it as a collaborator.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Publish delivers an update to the session topic and the firehose.
// Publishing never blocks event application; slow subscribers drop behind
// their channel buffer.
func (b *Bus) Publish(u Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		log.Error().Err(err).Msg("marshal update")
		return
	}

	for _, topic := range []string{topicFor(u.SessionID), allTopic} {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := b.pubsub.Publish(topic, msg); err != nil {
			log.Debug().Err(err).Str("topic", topic).Msg("publish update")
		}
	}
}

// Subscribe returns updates for a single session. The channel closes when ctx
// is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan Update, error) {
	return b.subscribe(ctx, topicFor(sessionID))
}

// SubscribeAll returns updates for every session on this bus.
func (b *Bus) SubscribeAll(ctx context.Context) (<-chan Update, error) {
	return b.subscribe(ctx, allTopic)
}

func (b *Bus) subscribe(ctx context.Context, topic string) (<-chan Update, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Update, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var u Update
			if err := json.Unmarshal(msg.Payload, &u); err != nil {
				log.Debug().Err(err).Msg("drop undecodable update")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
