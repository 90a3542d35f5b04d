package session

import (
	"sync"
	"time"

	"sessiond/internal/artifact"
	"sessiond/internal/content"
	"sessiond/internal/notify"
)

// EngineConfig carries the shared collaborators handed to every session.
type EngineConfig struct {
	Sink          artifact.Sink
	ArtifactTTL   time.Duration
	Cost          CostModel
	Bus           *notify.Bus
	ProgressGrace time.Duration
}

// Engine is the session registry. Sessions are created on first reference,
// looked up by the caller-chosen id (a gateway subject, a request id), and
// removed explicitly once their Response has been consumed.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*Session

	classifier *content.Classifier
	cost       CostModel
	bus        *notify.Bus
	grace      time.Duration
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		sessions:   make(map[string]*Session),
		classifier: content.NewClassifier(cfg.Sink, cfg.ArtifactTTL),
		cost:       cfg.Cost,
		bus:        cfg.Bus,
		grace:      cfg.ProgressGrace,
	}
}

// Open returns the session registered under key, creating it if absent.
func (e *Engine) Open(key string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[key]; ok {
		return s
	}
	s := New(SessionOptions{
		Classifier:    e.classifier,
		Cost:          e.cost,
		Bus:           e.bus,
		ProgressGrace: e.grace,
	})
	e.sessions[key] = s
	return s
}

// Get returns the session registered under key, if any.
func (e *Engine) Get(key string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	return s, ok
}

// KeyOf returns the registry key of the session with the given id.
func (e *Engine) KeyOf(sessionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, s := range e.sessions {
		if s.ID == sessionID {
			return key, true
		}
	}
	return "", false
}

// Remove drops the session from the registry. The session itself stays
// usable by holders of the pointer; this only ends key-based lookup.
func (e *Engine) Remove(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, key)
}

// CancelAll cancels every registered session. Used at shutdown.
func (e *Engine) CancelAll(cause string) {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.Cancel(cause)
	}
}
