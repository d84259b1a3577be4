package zerolog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/imgload"
)

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	l.Debug("hidden", imgload.Fields{"key": "x"})
	l.Warn("fetch failed", imgload.Fields{"key": imgload.Key("abc"), "err": errors.New("status 404")})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug must be filtered: %s", out)
	}
	for _, want := range []string{`"level":"warn"`, `"key":"abc"`, `"err":"status 404"`, `"message":"fetch failed"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}
