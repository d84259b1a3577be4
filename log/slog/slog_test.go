package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/imgload"
)

func TestSlogLoggerSortsFields(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", nil)
	l.Info("fetch completed", imgload.Fields{"req": "r1", "key": imgload.Key("abc"), "bytes": 10})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug must be filtered: %s", out)
	}
	want := `msg="fetch completed" bytes=10 key=abc req=r1`
	if !strings.Contains(out, want) {
		t.Fatalf("got %q, want it to contain %q", out, want)
	}
}
