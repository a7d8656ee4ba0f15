package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log entries to the console and, when file is non-nil, to
// a log file. The file always receives JSON; the console gets colored text in
// development mode and JSON otherwise.
func NewMultiCore(level zapcore.LevelEnabler, console, file zapcore.WriteSyncer, development bool) zapcore.Core {
	var consoleEncoder zapcore.Encoder
	if development {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, console, level)}

	if file != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), file, level))
	}
	return zapcore.NewTee(cores...)
}
