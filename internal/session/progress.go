package session

import (
	"sync"
	"time"
)

// Correlator maps opaque progress tokens to in-flight tool-call ids. Tokens
// are registered when a call starts with progress tracking and released at
// the call's terminal status, or after a grace period once the parent
// Response completes (to absorb straggling notifications). Lookups for
// unknown tokens simply miss; late and duplicate notifications are
// discardable by design.
//
// The correlator has its own lock because progress notifications arrive from
// a second producer, interleaved arbitrarily with the main event stream.
type Correlator struct {
	mu      sync.Mutex
	byToken map[string]string // token -> tool-call id
	byCall  map[string]string // tool-call id -> token
	grace   time.Duration
	timer   *time.Timer
}

func NewCorrelator(grace time.Duration) *Correlator {
	return &Correlator{
		byToken: make(map[string]string),
		byCall:  make(map[string]string),
		grace:   grace,
	}
}

// Register binds a progress token to a tool call. A token registers at most
// one call; re-registration overwrites.
func (c *Correlator) Register(token, toolCallID string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byToken[token] = toolCallID
	c.byCall[toolCallID] = token
}

// Resolve returns the tool-call id for a token, if registered.
func (c *Correlator) Resolve(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byToken[token]
	return id, ok
}

// ReleaseCall removes the token bound to a tool call, if any. Called when
// the call reaches a terminal status.
func (c *Correlator) ReleaseCall(toolCallID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token, ok := c.byCall[toolCallID]; ok {
		delete(c.byToken, token)
		delete(c.byCall, toolCallID)
	}
}

// ReleaseAfterGrace schedules removal of all remaining tokens once the
// parent Response has completed. With a zero grace period the tokens drop
// immediately.
func (c *Correlator) ReleaseAfterGrace() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.grace <= 0 {
		c.clearLocked()
		return
	}
	if c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.clearLocked()
	})
}

func (c *Correlator) clearLocked() {
	c.byToken = make(map[string]string)
	c.byCall = make(map[string]string)
}

// Active returns the number of registered tokens.
func (c *Correlator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byToken)
}
