package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestEventLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(l *EventLogger)
		want  map[string]any
	}{
		{
			level: "debug",
			log:   func(l *EventLogger) { l.Debug("emitting", "kind", "select", "subscribers", 2) },
			want:  map[string]any{"message": "emitting", "kind": "select", "subscribers": float64(2)},
		},
		{
			level: "info",
			log:   func(l *EventLogger) { l.Info("connected", "status", "ok") },
			want:  map[string]any{"message": "connected", "status": "ok"},
		},
		{
			level: "error",
			log:   func(l *EventLogger) { l.Error("handler failed", "code", 500, "reason", "internal") },
			want:  map[string]any{"message": "handler failed", "code": float64(500), "reason": "internal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewEventLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestEventLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestEventLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(zerolog.New(&buf))

	l.Info("odd", "kept", 1, "dangling", 7, "trailing")

	entry := decodeLine(t, &buf)
	assert.Equal(t, float64(1), entry["kept"])
	assert.Equal(t, float64(7), entry["dangling"])
	assert.Equal(t, "trailing", entry[badKey])
}

func TestToFields_BadKeys(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1, badKey: 2, "b": 3}, toFields([]any{"a", 1, 2, "b", 3}))
	assert.Equal(t, map[string]any{badKey: "b"}, toFields([]any{"b"}))
	assert.Empty(t, toFields(nil))
}
