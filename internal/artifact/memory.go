package artifact

import (
	"context"
	"fmt"
	"sync"
)

// StoredObject is a recorded write for inspection in tests.
type StoredObject struct {
	Ref      string
	MIMEType string
	Data     []byte
}

// MemorySink keeps payloads in memory. Used in tests and as a dev backend.
type MemorySink struct {
	mu      sync.Mutex
	objects []StoredObject

	// FailWith, when set, makes every Store call fail. Lets tests exercise
	// the degraded-block path without a real backend.
	FailWith error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Store implements Sink.
func (s *MemorySink) Store(_ context.Context, data []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return "", s.FailWith
	}

	ref := fmt.Sprintf("mem://%d.%s", len(s.objects), ExtensionForMIME(mimeType))
	s.objects = append(s.objects, StoredObject{
		Ref:      ref,
		MIMEType: mimeType,
		Data:     append([]byte(nil), data...),
	})
	return ref, nil
}

// Objects returns a snapshot of everything stored so far.
func (s *MemorySink) Objects() []StoredObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoredObject(nil), s.objects...)
}

var _ Sink = (*MemorySink)(nil)
