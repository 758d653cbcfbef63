// Package logrus adapts a *logrus.Entry to cachekit.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/cachekit"
)

var _ cachekit.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with an "component=cachekit" field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "cachekit")}
}

func (l Logger) with(f cachekit.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}

func (l Logger) Debug(msg string, f cachekit.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f cachekit.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f cachekit.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f cachekit.Fields) { l.with(f).Error(msg) }
