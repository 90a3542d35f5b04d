package gateway

import (
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "SESSIONS"
	SubjectPrefix = "sessions."
)

// EnsureStream creates the work-queue stream that buffers inbound session
// traffic. Update fan-out stays on core NATS and is not captured here.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name: StreamName,
		Subjects: []string{
			SubjectPrefix + "*.chunks",
			SubjectPrefix + "*.progress",
			SubjectPrefix + "*.done",
		},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// ChunkSubject carries raw stream bytes for one session.
func ChunkSubject(sessionKey string) string {
	return SubjectPrefix + sessionKey + ".chunks"
}

// ProgressSubject carries out-of-band progress notifications for one session.
func ProgressSubject(sessionKey string) string {
	return SubjectPrefix + sessionKey + ".progress"
}

// DoneSubject signals end of the session's input stream.
func DoneSubject(sessionKey string) string {
	return SubjectPrefix + sessionKey + ".done"
}

// UpdateSubject carries incremental Response updates for one session.
func UpdateSubject(sessionKey string) string {
	return SubjectPrefix + sessionKey + ".updates"
}

// sessionKeyFromSubject extracts the session key from any of the subjects
// above. Returns "" when the subject does not match the layout.
func sessionKeyFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, SubjectPrefix)
	if !ok {
		return ""
	}
	key, _, ok := strings.Cut(rest, ".")
	if !ok {
		return ""
	}
	return key
}
