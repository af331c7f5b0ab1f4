// Package sink adapts signal events onto concrete recording backends.
package sink

import (
	"time"

	"github.com/fennwick/sigtap/core/signal"
	"github.com/fennwick/sigtap/internal/observability"
)

// LoggerSink forwards signal events into a structured logger. NOTICE maps to
// info, WARNING to warn, FATAL to error.
type LoggerSink struct {
	logger observability.Logger
}

// NewLoggerSink constructs a sink writing to the given logger. A nil logger
// falls back to the process-wide observability logger at emit time.
func NewLoggerSink(logger observability.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Emit records one signal event as a structured log entry.
func (s *LoggerSink) Emit(kind signal.Kind, text string) {
	logger := s.logger
	if logger == nil {
		logger = observability.Log()
	}
	fields := []observability.Field{
		{Key: "signal", Value: string(kind)},
		{Key: "raised_at", Value: time.Now().UTC()},
	}
	switch kind {
	case signal.KindWarning:
		logger.Warn(text, fields...)
	case signal.KindFatal:
		logger.Error(text, fields...)
	default:
		logger.Info(text, fields...)
	}
}
