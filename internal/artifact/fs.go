package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirSink writes payloads to a local directory. References are file:// URLs.
type DirSink struct {
	dir      string
	maxBytes int64 // 0 = no limit
}

func NewDirSink(dir string, maxBytes int64) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DirSink{dir: dir, maxBytes: maxBytes}, nil
}

// Store implements Sink.
func (s *DirSink) Store(_ context.Context, data []byte, mimeType string) (string, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	name := fmt.Sprintf("%s.%s", uuid.NewString(), ExtensionForMIME(mimeType))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}

var _ Sink = (*DirSink)(nil)
