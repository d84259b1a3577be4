package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/log"
)

var _ imgload.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f imgload.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f imgload.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f imgload.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f imgload.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f imgload.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	log.Each(f, func(k string, v any) {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			return
		}
		out = append(out, zap.Any(k, v))
	})
	return out
}
