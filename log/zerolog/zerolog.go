package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/log"
)

var _ imgload.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func (z Logger) Debug(msg string, f imgload.Fields) { emit(z.L.Debug(), msg, f) }
func (z Logger) Info(msg string, f imgload.Fields)  { emit(z.L.Info(), msg, f) }
func (z Logger) Warn(msg string, f imgload.Fields)  { emit(z.L.Warn(), msg, f) }
func (z Logger) Error(msg string, f imgload.Fields) { emit(z.L.Error(), msg, f) }

// emit is a no-op for disabled levels (zerolog returns a nil event).
func emit(e *zerolog.Event, msg string, f imgload.Fields) {
	if e == nil {
		return
	}
	log.Each(f, func(k string, v any) {
		if err, ok := v.(error); ok {
			e = e.AnErr(k, err)
			return
		}
		e = e.Interface(k, v)
	})
	e.Msg(msg)
}
