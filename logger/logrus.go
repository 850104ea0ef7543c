package logger

import "github.com/sirupsen/logrus"

// Logrus wraps a *logrus.Logger to implement talondb's Logger interface.
type Logrus struct {
	l *logrus.Logger
}

// NewLogrus creates a Logger backed by an existing logrus.Logger.
func NewLogrus(l *logrus.Logger) Logger {
	return &Logrus{l: l}
}

func (r *Logrus) Debug(msg string, args ...any) { r.l.WithFields(fields(args)).Debug(msg) }
func (r *Logrus) Info(msg string, args ...any)  { r.l.WithFields(fields(args)).Info(msg) }
func (r *Logrus) Warn(msg string, args ...any)  { r.l.WithFields(fields(args)).Warn(msg) }
func (r *Logrus) Error(msg string, args ...any) { r.l.WithFields(fields(args)).Error(msg) }

// fields turns an alternating key/value slice into logrus.Fields, dropping a
// trailing unpaired key rather than panicking.
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}
