package logging

import "github.com/rs/zerolog"

// EventLogger adapts zerolog.Logger to the small Debug/Info/Error logger
// interface of the event registry and the message dispatcher.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates a new EventLogger wrapping a zerolog.Logger.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Debug logs a debug message with optional key-value pairs.
func (l *EventLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

// Info logs an info message with optional key-value pairs.
func (l *EventLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

// Error logs an error message with optional key-value pairs.
func (l *EventLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// badKey holds a value that has no string key, as slog does.
const badKey = "!BADKEY"

// toFields converts key-value pairs to a map for zerolog.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || i+1 == len(keysAndValues) {
			fields[badKey] = keysAndValues[i]
			i--
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
