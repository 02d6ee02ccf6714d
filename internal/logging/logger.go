package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the log file created inside the log directory.
const LogFileName = "bridge.log"

// RotationConfig controls size-based rotation of the log file.
type RotationConfig struct {
	MaxSizeMB  int  // rotate once the file reaches this size
	MaxBackups int  // rotated files to keep, 0 keeps all
	Compress   bool // gzip rotated files
}

// DefaultRotationConfig returns the rotation settings used by NewLogger.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		Compress:   false,
	}
}

// sink is the shared output of a logger and all of its children.
type sink struct {
	mu  sync.Mutex
	out io.Closer
}

func (s *sink) close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	sink   *sink
	attrs  []slog.Attr // Persistent attributes (session, operation, channel)
}

// NewLogger creates a new Logger that writes JSON-formatted logs to
// {logDir}/bridge.log using the default rotation settings.
//
// The level parameter controls which messages are logged:
//   - DEBUG: All messages, including peer stdout/stderr
//   - INFO: Info, Warn, and Error messages
//   - WARN: Warn and Error messages
//   - ERROR: Only Error messages
//
// If logDir is empty, logs will be written to stderr.
func NewLogger(logDir string, level string) (*Logger, error) {
	return NewRotatingLogger(logDir, level, DefaultRotationConfig())
}

// NewRotatingLogger is NewLogger with explicit rotation settings.
func NewRotatingLogger(logDir string, level string, rotation RotationConfig) (*Logger, error) {
	if logDir == "" {
		return NewWriterLogger(os.Stderr, level), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)

	// lumberjack opens lazily; create the file now so permission problems
	// surface at startup instead of on the first write.
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	_ = f.Close()

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: parseLevel(level)})

	return &Logger{
		logger: slog.New(handler),
		sink:   &sink{out: rotator},
		attrs:  make([]slog.Attr, 0),
	}, nil
}

// NewWriterLogger creates a Logger that writes JSON lines to w.
// Close does not close w.
func NewWriterLogger(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{
		logger: slog.New(handler),
		attrs:  make([]slog.Attr, 0),
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSession returns a new Logger with the session ID added to all log entries.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.withAttr(slog.String("session_id", sessionID))
}

// WithOperation returns a new Logger with the modeller tool namespace added
// to all log entries.
func (l *Logger) WithOperation(operation string) *Logger {
	return l.withAttr(slog.String("operation", operation))
}

// WithChannel returns a new Logger with the channel name added to all log entries.
func (l *Logger) WithChannel(channel string) *Logger {
	return l.withAttr(slog.String("channel", channel))
}

// With returns a new Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	newAttrs = append(newAttrs, l.attrs...)

	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		newAttrs = append(newAttrs, slog.Any(key, args[i+1]))
	}

	return &Logger{
		logger: l.logger,
		sink:   l.sink,
		attrs:  newAttrs,
	}
}

func (l *Logger) withAttr(attr slog.Attr) *Logger {
	newAttrs := make([]slog.Attr, len(l.attrs)+1)
	copy(newAttrs, l.attrs)
	newAttrs[len(l.attrs)] = attr

	return &Logger{
		logger: l.logger,
		sink:   l.sink,
		attrs:  newAttrs,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	l.logger.Log(context.Background(), level, msg, allArgs...)
}

// Close flushes and closes the log file. Closing any logger derived from
// the same root closes the shared file; further calls are no-ops.
func (l *Logger) Close() error {
	return l.sink.close()
}

// LineWriter returns an io.Writer that logs every complete line written to
// it as a DEBUG entry tagged with stream=name. It is used to capture the
// modeller process's stdout and stderr. Call Flush on the returned writer
// to emit a trailing line without a newline.
func (l *Logger) LineWriter(name string) *LineWriter {
	return &LineWriter{logger: l.With("stream", name)}
}

// LineWriter splits written bytes into lines and logs each one.
type LineWriter struct {
	logger *Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf.Next(idx+1)), "\r\n")
		if line != "" {
			w.logger.Debug("peer output", "line", line)
		}
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return
	}
	line := strings.TrimRight(w.buf.String(), "\r\n")
	w.buf.Reset()
	if line != "" {
		w.logger.Debug("peer output", "line", line)
	}
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return NewWriterLogger(io.Discard, LevelError)
}
