package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/log"
)

var _ imgload.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Debug(msg string, f imgload.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f imgload.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f imgload.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f imgload.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f imgload.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	s.L.LogAttrs(ctx, level, msg, attrs(f)...)
}

func attrs(f imgload.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	log.Each(f, func(k string, v any) {
		out = append(out, stdslog.Any(k, v))
	})
	return out
}
