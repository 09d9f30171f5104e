package handler

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirasena/kommobridge/internal/logging"
)

// --- Event logger tests ---

func TestEventLogger_AcceptsEverything(t *testing.T) {
	h := NewEventLogger(silentLog())

	for _, data := range []any{
		map[string]any{"k": "v"},
		"plain string",
		[]any{1, 2},
		nil,
	} {
		assert.True(t, h.CanHandle("/x", data))
	}
}

func TestEventLogger_NeverFails(t *testing.T) {
	h := NewEventLogger(silentLog())

	for _, data := range []any{
		map[string]any{"k": "v"},
		"plain string",
		nil,
		make(chan int), // not marshalable; the payload dump is skipped
	} {
		assert.NoError(t, h.Handle(context.Background(), "/x", data))
	}
}

func TestEventLogger_LogsPathAndSummary(t *testing.T) {
	var buf bytes.Buffer
	h := NewEventLogger(logging.New(&buf, "debug", true))

	err := h.Handle(context.Background(), "/inbox/m1", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "/inbox/m1")
	assert.Contains(t, out, "event received")
	assert.Contains(t, out, `"size":2`)
}

func TestPayloadSize(t *testing.T) {
	tests := []struct {
		name string
		data any
		want int
	}{
		{"map", map[string]any{"a": 1, "b": 2, "c": 3}, 3},
		{"list", []any{1, 2}, 2},
		{"string", "hello", 5},
		{"nil", nil, 0},
		{"scalar", 42, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payloadSize(tt.data))
		})
	}
}
