package observability

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// WatermillAdapter routes watermill logs into slog.
type WatermillAdapter struct {
	logger *slog.Logger
}

func NewWatermillAdapter(l *slog.Logger) *WatermillAdapter {
	if l == nil {
		l = Logger()
	}
	return &WatermillAdapter{logger: l.With("component", "events")}
}

func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(attrs(fields), "error", err)...)
}

// Info is logged at debug level, watermill is chatty.
func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{logger: w.logger.With(attrs(fields)...)}
}

var _ watermill.LoggerAdapter = &WatermillAdapter{}

func attrs(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
