package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/log"
)

var _ imgload.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

func (l LogrusLogger) Debug(msg string, f imgload.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f imgload.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f imgload.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f imgload.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f imgload.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	log.Each(f, func(k string, v any) {
		if k == "err" {
			k = logrus.ErrorKey
		}
		lf[k] = v
	})
	return l.E.WithFields(lf)
}
