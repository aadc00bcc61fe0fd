// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sbmp

import (
	"github.com/sirupsen/logrus"
)

// Logger is the subset of *logrus.Logger that the endpoint actually calls.
// It is an explicit constructor dependency (WithLogger), not a package
// global, matching the teacher's "callbacks are wired in at construction"
// idiom (newFramer). A nil Logger degrades to silence rather than panicking,
// the same defensive posture the engine takes toward every other optional
// collaborator.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// noopLogger discards everything. Used when WithLogger is never called.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// logrusLogger adapts *logrus.Logger to the Logger interface.
type logrusLogger struct {
	l *logrus.Logger
}

func (a logrusLogger) Debugf(format string, args ...any) { a.l.Debugf(format, args...) }
func (a logrusLogger) Infof(format string, args ...any)  { a.l.Infof(format, args...) }
func (a logrusLogger) Warnf(format string, args ...any)  { a.l.Warnf(format, args...) }
func (a logrusLogger) Errorf(format string, args ...any) { a.l.Errorf(format, args...) }

// NewDefaultLogger returns a Logger backed by a fresh *logrus.Logger using a
// plain text formatter, suitable for WithLogger when the caller doesn't
// already maintain its own logrus instance.
func NewDefaultLogger() Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logrusLogger{l: l}
}

// NewLogger adapts an existing *logrus.Logger (e.g. one already configured
// by a host application, as cmd/sbmpd does) to the Logger interface.
func NewLogger(l *logrus.Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return logrusLogger{l: l}
}
