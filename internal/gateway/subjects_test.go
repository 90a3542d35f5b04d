package gateway

import "testing"

func TestSubjects(t *testing.T) {
	if got := ChunkSubject("abc"); got != "sessions.abc.chunks" {
		t.Errorf("ChunkSubject = %q", got)
	}
	if got := ProgressSubject("abc"); got != "sessions.abc.progress" {
		t.Errorf("ProgressSubject = %q", got)
	}
	if got := DoneSubject("abc"); got != "sessions.abc.done" {
		t.Errorf("DoneSubject = %q", got)
	}
	if got := UpdateSubject("abc"); got != "sessions.abc.updates" {
		t.Errorf("UpdateSubject = %q", got)
	}
}

func TestSessionKeyFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"sessions.abc.chunks", "abc"},
		{"sessions.abc.progress", "abc"},
		{"sessions.x-1.done", "x-1"},
		{"sessions.noleaf", ""},
		{"other.abc.chunks", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := sessionKeyFromSubject(tc.subject); got != tc.want {
			t.Errorf("sessionKeyFromSubject(%q) = %q, want %q", tc.subject, got, tc.want)
		}
	}
}
