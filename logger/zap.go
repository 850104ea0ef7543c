package logger

import "go.uber.org/zap"

// Zap wraps a *zap.Logger to implement talondb's Logger interface.
type Zap struct {
	l *zap.Logger
}

// NewZap creates a Logger backed by an existing zap.Logger.
func NewZap(l *zap.Logger) Logger {
	return &Zap{l: l}
}

func (z *Zap) Debug(msg string, args ...any) { z.l.Sugar().Debugw(msg, args...) }
func (z *Zap) Info(msg string, args ...any)  { z.l.Sugar().Infow(msg, args...) }
func (z *Zap) Warn(msg string, args ...any)  { z.l.Sugar().Warnw(msg, args...) }
func (z *Zap) Error(msg string, args ...any) { z.l.Sugar().Errorw(msg, args...) }
