package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Development selects colored console output and, unless Level is set,
	// debug logging.
	Development bool
	// Level overrides the default level for the mode.
	Level *zapcore.Level
	// FilePath enables a rotating JSON log file. Empty disables it.
	FilePath string
	File     FileWriterConfig
	// Console defaults to stderr so stdout stays free for command output.
	Console zapcore.WriteSyncer
}

// Logger is the application logger: a zap.Logger writing to the console and an
// optional rotating file, with secrets scrubbed from every entry.
//
//	logger, err := logging.NewLogger(logging.Options{Development: true, FilePath: "upscaler.log"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Info("server started", zap.String("addr", addr))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel

	development bool
	filePath    string
}

// NewLogger builds a Logger from opts.
func NewLogger(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(DefaultLevel(opts.Development))
	if opts.Level != nil {
		level.SetLevel(*opts.Level)
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}
	var file zapcore.WriteSyncer
	if opts.FilePath != "" {
		cfg := opts.File
		if cfg == (FileWriterConfig{}) {
			cfg = DefaultFileWriterConfig()
		}
		file = NewFileWriter(opts.FilePath, cfg)
	}

	core := NewRedactingCore(NewMultiCore(level, console, file, opts.Development))
	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Development {
		z = z.WithOptions(zap.Development())
	}
	return wrap(z, level, opts.Development, opts.FilePath), nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop(), zap.NewAtomicLevel(), false, "")
}

func wrap(z *zap.Logger, level zap.AtomicLevel, development bool, filePath string) *Logger {
	return &Logger{
		zap:         z,
		sugar:       z.Sugar(),
		level:       level,
		development: development,
		filePath:    filePath,
	}
}

// Zap returns the underlying logger, for handing to packages that take a
// *zap.Logger.
func (l *Logger) Zap() *zap.Logger { return l.zap }

// Sugar returns the printf-style logger.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

// Named returns a child logger with name appended to the logger name.
func (l *Logger) Named(name string) *Logger {
	return wrap(l.zap.Named(name), l.level, l.development, l.filePath)
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return wrap(l.zap.With(fields...), l.level, l.development, l.filePath)
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level zapcore.Level) { l.level.SetLevel(level) }

// Level returns the current level.
func (l *Logger) Level() zapcore.Level { return l.level.Level() }

func (l *Logger) IsDevelopment() bool { return l.development }
func (l *Logger) LogFilePath() string { return l.filePath }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	if err := l.zap.Sync(); err != nil && !isTerminalSyncError(err) {
		return err
	}
	return nil
}
