package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Parser maintains state across chunks to handle partial SSE lines.
// One Parser per stream; it is not restartable against byte replay.
type Parser struct {
	buffer     []byte
	eventName  string
	dataLines  []string
	eventIndex int
	terminal   bool
	closed     bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed processes raw bytes from the stream and yields complete events in
// arrival order. Handles partial lines that span multiple chunks.
func (p *Parser) Feed(chunk []byte) []Event {
	if p.closed {
		return nil
	}
	p.buffer = append(p.buffer, chunk...)
	var events []Event

	for {
		idx := bytes.IndexByte(p.buffer, '\n')
		if idx == -1 {
			break
		}

		line := strings.TrimRight(string(p.buffer[:idx]), "\r")
		p.buffer = p.buffer[idx+1:]

		if ev, ok := p.consumeLine(line); ok {
			events = append(events, ev)
		}
	}

	return events
}

// Close flushes any buffered frame and synthesizes a truncated event when the
// stream ended without an explicit completed/failed. Safe to call once; the
// parser accepts no further input afterwards.
func (p *Parser) Close() []Event {
	if p.closed {
		return nil
	}
	p.closed = true

	var events []Event

	// The final line may have lost its newline when the stream was cut off.
	if len(p.buffer) > 0 {
		line := strings.TrimRight(string(p.buffer), "\r")
		p.buffer = nil
		if ev, ok := p.consumeLine(line); ok {
			events = append(events, ev)
		}
	}
	if ev, ok := p.flush(); ok {
		events = append(events, ev)
	}

	if !p.terminal {
		p.eventIndex++
		events = append(events, Event{Index: p.eventIndex, Name: EventTruncated})
	}

	return events
}

func (p *Parser) consumeLine(line string) (Event, bool) {
	if line == "" {
		// Empty line = frame separator.
		return p.flush()
	}

	if rest, ok := strings.CutPrefix(line, "event:"); ok {
		p.eventName = strings.TrimSpace(rest)
		return Event{}, false
	}

	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		p.dataLines = append(p.dataLines, strings.TrimPrefix(rest, " "))
		return Event{}, false
	}

	// Comment lines and unrecognized fields are ignored per SSE.
	return Event{}, false
}

func (p *Parser) flush() (Event, bool) {
	if p.eventName == "" && len(p.dataLines) == 0 {
		return Event{}, false
	}

	name := p.eventName
	data := strings.Join(p.dataLines, "\n")
	p.eventName = ""
	p.dataLines = nil
	p.eventIndex++

	if name == "" {
		name = inferEventName(data)
	}

	if data != "" && !json.Valid([]byte(data)) {
		// Per-event failure: surface the raw frame, keep decoding.
		return Event{Index: p.eventIndex, Name: EventDecodeError, Raw: data}, true
	}

	if name == EventCompleted || name == EventFailed {
		p.terminal = true
	}

	ev := Event{Index: p.eventIndex, Name: name}
	if data != "" {
		ev.Data = json.RawMessage(data)
	}
	return ev, true
}

// inferEventName extracts the "type" field from JSON data without full parsing,
// for frames that arrived without an event: line.
func inferEventName(data string) string {
	idx := strings.Index(data, `"type"`)
	if idx == -1 {
		return EventUnknown
	}

	rest := data[idx+6:]
	rest = strings.TrimLeft(rest, " \t:")
	rest = strings.TrimLeft(rest, " \t")

	if len(rest) > 0 && rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end >= 0 {
			return rest[1 : end+1]
		}
	}
	return EventUnknown
}
