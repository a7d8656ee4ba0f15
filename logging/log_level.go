package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLevel parses a level name, case-insensitively. "warning" is accepted
// as an alias for warn. An empty string yields def.
func ParseLevel(s string, def zapcore.Level) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return def, fmt.Errorf("unknown log level %q (want debug, info, warn, error or fatal)", s)
	}
}

// DefaultLevel is debug in development mode and info otherwise.
func DefaultLevel(development bool) zapcore.Level {
	if development {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
