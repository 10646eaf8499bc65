package logging

import (
	"io"
	"log/slog"
)

// Logger is the structured logger used across feathersync.
type Logger interface {
	Debug(msg string, keyValues ...any)
	Info(msg string, keyValues ...any)
	Warn(msg string, keyValues ...any)
	Error(msg string, keyValues ...any)
}

// SlogAdapter routes Logger calls to a *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, keyValues ...any) {
	a.logger.Debug(msg, keyValues...)
}

func (a *SlogAdapter) Info(msg string, keyValues ...any) {
	a.logger.Info(msg, keyValues...)
}

func (a *SlogAdapter) Warn(msg string, keyValues ...any) {
	a.logger.Warn(msg, keyValues...)
}

func (a *SlogAdapter) Error(msg string, keyValues ...any) {
	a.logger.Error(msg, keyValues...)
}

// With returns an adapter whose records carry the given attributes.
func (a *SlogAdapter) With(keyValues ...any) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(keyValues...)}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
