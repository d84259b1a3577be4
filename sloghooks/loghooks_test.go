package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/imgload"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestSamplesHits(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{HitEvery: 3})
	for range 9 {
		h.MemoryHit("abc")
	}
	if n := strings.Count(buf.String(), "imgload.memory_hit"); n != 3 {
		t.Fatalf("logged %d hits, want 3", n)
	}
}

func TestRedactAndFields(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(imgload.Key) string { return "xx" }})
	h.CorruptPayload("secret", imgload.SourceStore)
	h.FetchFailed("secret", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "secret") {
		t.Fatalf("key not redacted: %s", out)
	}
	if !strings.Contains(out, "source=store") || !strings.Contains(out, "err=boom") {
		t.Fatalf("missing fields: %s", out)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.MemoryHit("k")
	h.InvalidateOutage("k", errors.New("a"), errors.New("b"))
}
