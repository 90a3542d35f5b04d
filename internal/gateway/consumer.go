package gateway

import (
	"context"
	"encoding/json"
	"errors"

	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"sessiond/internal/notify"
	"sessiond/internal/session"
	"sessiond/internal/stream"
)

// Publisher is the outbound side of the broker connection. *nats.Conn
// satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Consumer demultiplexes inbound session traffic from the broker into engine
// sessions and mirrors each session's update feed back onto the broker.
// Sessions are keyed by the subject's session segment, so a producer only
// needs to pick a unique key and publish. Once a session's terminal status
// update has been mirrored, its registry entry is released.
type Consumer struct {
	engine *session.Engine
	js     nats.JetStreamContext
	pub    Publisher
	bus    *notify.Bus

	subs []*nats.Subscription
}

func NewConsumer(engine *session.Engine, js nats.JetStreamContext, pub Publisher, bus *notify.Bus) *Consumer {
	return &Consumer{engine: engine, js: js, pub: pub, bus: bus}
}

// Start subscribes to the inbound subjects and launches the update mirror.
// It returns once the subscriptions are in place; message handling runs on
// NATS delivery goroutines until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	type binding struct {
		subject string
		durable string
		handler nats.MsgHandler
	}
	bindings := []binding{
		{SubjectPrefix + "*.chunks", "sessions-chunks", c.handleChunk(ctx)},
		{SubjectPrefix + "*.progress", "sessions-progress", c.handleProgress},
		{SubjectPrefix + "*.done", "sessions-done", c.handleDone(ctx)},
	}

	for _, b := range bindings {
		sub, err := c.js.Subscribe(b.subject, b.handler,
			nats.Durable(b.durable),
			nats.ManualAck(),
		)
		if err != nil {
			c.Stop()
			return err
		}
		c.subs = append(c.subs, sub)
	}

	go c.mirrorUpdates(ctx)
	return nil
}

// Stop unsubscribes the inbound bindings.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Msg("unsubscribe")
		}
	}
	c.subs = nil
}

func (c *Consumer) handleChunk(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer msg.Ack()

		key := sessionKeyFromSubject(msg.Subject)
		if key == "" {
			return
		}
		sess := c.engine.Open(key)
		if err := sess.Feed(ctx, msg.Data); err != nil {
			if !errors.Is(err, session.ErrSessionCancelled) {
				log.Warn().Err(err).Str("session_key", key).Msg("feed chunk")
			}
		}
	}
}

func (c *Consumer) handleProgress(msg *nats.Msg) {
	defer msg.Ack()

	key := sessionKeyFromSubject(msg.Subject)
	if key == "" {
		return
	}
	sess, ok := c.engine.Get(key)
	if !ok {
		return
	}

	var p stream.Progress
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		log.Debug().Err(err).Str("session_key", key).Msg("drop undecodable progress")
		return
	}
	sess.Progress(p.Token, p.Progress, p.Total, p.Message)
}

func (c *Consumer) handleDone(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer msg.Ack()

		key := sessionKeyFromSubject(msg.Subject)
		if key == "" {
			return
		}
		sess, ok := c.engine.Get(key)
		if !ok {
			return
		}
		sess.CloseStream(ctx)
	}
}

// mirrorUpdates republishes every bus update onto the session's update
// subject so out-of-process subscribers can follow along. The terminal status
// update is the last one a session emits, so after mirroring it the session
// is removed from the engine registry; without this the daemon would retain
// every finished conversation for its lifetime.
func (c *Consumer) mirrorUpdates(ctx context.Context) {
	updates, err := c.bus.SubscribeAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("subscribe update firehose")
		return
	}

	for u := range updates {
		payload, err := json.Marshal(u)
		if err != nil {
			continue
		}
		key := c.keyFor(u.SessionID)
		if err := c.pub.Publish(UpdateSubject(key), payload); err != nil {
			log.Debug().Err(err).Str("session_id", u.SessionID).Msg("mirror update")
		}

		if u.Kind == notify.UpdateStatus && session.Status(u.Status).Terminal() {
			c.engine.Remove(key)
			log.Debug().Str("session_key", key).Str("status", u.Status).Msg("session released")
		}
	}
}

// keyFor maps a session id back to the subject key it was opened under.
func (c *Consumer) keyFor(sessionID string) string {
	if key, ok := c.engine.KeyOf(sessionID); ok {
		return key
	}
	return sessionID
}
