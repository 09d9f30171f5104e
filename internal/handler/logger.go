package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wirasena/kommobridge/internal/logging"
)

// EventLogger is the default handler: it observes every event and records a
// summary, leaving processing to the specialized handlers. It never fails.
type EventLogger struct {
	log *logging.Logger
}

// NewEventLogger creates the logging handler.
func NewEventLogger(log *logging.Logger) *EventLogger {
	return &EventLogger{log: log.Sub("events")}
}

// Name implements Handler.
func (h *EventLogger) Name() string { return "event-logger" }

// CanHandle implements Handler. The event logger accepts everything; as the
// default handler it runs regardless.
func (h *EventLogger) CanHandle(path string, data any) bool { return true }

// Handle implements Handler.
func (h *EventLogger) Handle(ctx context.Context, path string, data any) error {
	h.log.Info().
		Str("path", path).
		Str("type", fmt.Sprintf("%T", data)).
		Int("size", payloadSize(data)).
		Msg("event received")

	if raw, err := json.Marshal(data); err == nil {
		h.log.Debug().Str("path", path).RawJSON("payload", raw).Msg("event payload")
	}
	return nil
}

// payloadSize gives a rough magnitude for the summary line: entry count for
// containers, byte length for strings.
func payloadSize(data any) int {
	switch v := data.(type) {
	case map[string]any:
		return len(v)
	case []any:
		return len(v)
	case string:
		return len(v)
	case nil:
		return 0
	default:
		return 1
	}
}
