package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"sessiond/internal/artifact"
	"sessiond/internal/notify"
	"sessiond/internal/session"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []struct {
		subject string
		data    []byte
	}
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (p *capturePublisher) snapshot() []struct {
	subject string
	data    []byte
} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]struct {
		subject string
		data    []byte
	}(nil), p.msgs...)
}

func (p *capturePublisher) subjects() []string {
	var out []string
	for _, m := range p.snapshot() {
		out = append(out, m.subject)
	}
	return out
}

func TestConsumer_ReleasesSessionAfterTerminalUpdate(t *testing.T) {
	bus := notify.NewBus()
	defer bus.Close()

	engine := session.NewEngine(session.EngineConfig{
		Sink: artifact.NewMemorySink(),
		Bus:  bus,
	})
	pub := &capturePublisher{}
	c := NewConsumer(engine, nil, pub, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.mirrorUpdates(ctx)

	sess := engine.Open("k1")
	if err := sess.Feed(ctx, []byte("event: created\ndata: {\"id\":\"r1\",\"status\":\"in_progress\"}\n\n")); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if _, ok := engine.Get("k1"); !ok {
		t.Fatal("session should be registered while in flight")
	}

	// No terminal event before EOF: the session ends truncated, which is
	// still a terminal status and must release the registry entry.
	sess.CloseStream(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := engine.Get("k1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("finished session was not removed from the engine")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The terminal update reached the session's update subject before release.
	var sawTerminal bool
	for _, m := range pub.snapshot() {
		if m.subject != UpdateSubject("k1") {
			continue
		}
		var u notify.Update
		if err := json.Unmarshal(m.data, &u); err != nil {
			t.Fatalf("undecodable mirrored update: %v", err)
		}
		if u.Kind == notify.UpdateStatus && session.Status(u.Status).Terminal() {
			sawTerminal = true
		}
	}
	if !sawTerminal {
		t.Fatalf("no terminal status update mirrored, subjects: %v", pub.subjects())
	}
}

func TestConsumer_InFlightSessionStaysRegistered(t *testing.T) {
	bus := notify.NewBus()
	defer bus.Close()

	engine := session.NewEngine(session.EngineConfig{
		Sink: artifact.NewMemorySink(),
		Bus:  bus,
	})
	pub := &capturePublisher{}
	c := NewConsumer(engine, nil, pub, bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.mirrorUpdates(ctx)

	sess := engine.Open("k2")
	if err := sess.Feed(ctx, []byte("event: created\ndata: {\"id\":\"r2\",\"status\":\"in_progress\"}\n\n")); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if err := sess.Feed(ctx, []byte("event: output_text.delta\ndata: {\"delta\":{\"text\":\"hi\"}}\n\n")); err != nil {
		t.Fatalf("feed: %v", err)
	}

	// Give the mirror a moment to process the non-terminal updates.
	deadline := time.Now().Add(2 * time.Second)
	for len(pub.subjects()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("updates not mirrored, subjects: %v", pub.subjects())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := engine.Get("k2"); !ok {
		t.Fatal("in-flight session must stay registered")
	}
}
