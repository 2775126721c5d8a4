package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/doridoridoriand/wifiwatch/internal/state"
)

// Level represents log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var slogLevels = map[Level]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// Format selects the handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures a Logger.
type Options struct {
	Level   Level
	Format  Format
	Output  io.Writer
	NoColor bool
}

// Logger provides structured logging on top of slog.
type Logger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger creates a console logger writing to stderr.
func NewLogger(level Level) *Logger {
	return New(Options{Level: level, Format: FormatText, Output: os.Stderr})
}

// New builds a logger from opts.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	lv := new(slog.LevelVar)
	lv.Set(slogLevels[opts.Level])

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lv})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      lv,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	}
	return &Logger{logger: slog.New(handler), level: lv}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(Options{Output: io.Discard, NoColor: true, Level: LevelError})
}

// With returns a child logger tagged with a component name.
func (l *Logger) With(component string) *Logger {
	return &Logger{logger: l.logger.With("component", component), level: l.level}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.level.Set(slogLevels[level])
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

func (l *Logger) log(level Level, message string, fields map[string]interface{}) {
	lv := slogLevels[level]
	if !l.logger.Enabled(context.Background(), lv) {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.logger.LogAttrs(context.Background(), lv, message, attrs...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(LevelDebug, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(LevelInfo, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(LevelWarn, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(LevelError, message, fields)
}

// LogScanFailure logs a failed scanner call. Failures are expected and never
// fatal, so they are warnings.
func (l *Logger) LogScanFailure(call string, status string, err error) {
	fields := map[string]interface{}{
		"call":   call,
		"status": status,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("scan failed", fields)
}

// LogSnapshot logs a one-line summary of a tick.
func (l *Logger) LogSnapshot(snap state.Snapshot) {
	fields := map[string]interface{}{
		"seq":      snap.Seq,
		"found":    snap.Found,
		"tracked":  len(snap.Networks),
		"list":     snap.ListStatus,
		"status":   snap.InterfaceStatus,
		"unit":     string(snap.Unit),
		"networks": summarize(snap, 5),
	}
	if snap.Malformed > 0 {
		fields["malformed"] = snap.Malformed
	}
	if snap.Connection.Connected() {
		fields["connected"] = snap.Connection.Identifier
		if snap.Connection.Level != nil {
			fields["connected_level"] = *snap.Connection.Level
		}
	}
	l.Info("tick", fields)
}

// LogConfigLoad logs a config load event
func (l *Logger) LogConfigLoad(success bool, path string, err error) {
	fields := map[string]interface{}{
		"path": path,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	if success {
		l.Info("config loaded", fields)
	} else {
		l.Error("config load failed", fields)
	}
}

// LogError logs a general error
func (l *Logger) LogError(component string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = component
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error("error occurred", fields)
}

// ParseLevel parses a log level string
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func summarize(snap state.Snapshot, limit int) string {
	parts := make([]string, 0, limit)
	for i, series := range snap.Networks {
		if i >= limit {
			break
		}
		latest, ok := series.Latest()
		if !ok {
			continue
		}
		parts = append(parts, series.Identifier+"="+strconv.FormatFloat(latest.Level, 'f', -1, 64)+snap.Unit.Suffix())
	}
	return strings.Join(parts, " ")
}
