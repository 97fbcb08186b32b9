package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// LogLevel defines the severity of the log
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLevel maps "silent", "error", "warn", "info" and "debug" to a level.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("torm: unknown log level %q", s)
}

// LogFormat defines the output format of the log
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logger is the interface for logging SQL and internal messages
type Logger interface {
	SetLevel(level LogLevel)
	SetFormat(format LogFormat)
	SetOutput(w io.Writer)
	WithFields(fields map[string]any) Logger
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SQL(sql string, duration time.Duration, args ...any)
}

// baseLogger contains common logging functionality
type baseLogger struct {
	level  LogLevel
	format LogFormat
	writer io.Writer
	fields map[string]any
	mu     *sync.Mutex
}

func (l *baseLogger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *baseLogger) SetFormat(format LogFormat) {
	l.format = format
}

func (l *baseLogger) SetOutput(w io.Writer) {
	l.writer = w
}

func (l *baseLogger) clone() *baseLogger {
	newFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	return &baseLogger{
		level:  l.level,
		format: l.format,
		writer: l.writer,
		fields: newFields,
		mu:     l.mu,
	}
}

// stdLogger is the default implementation of Logger
type stdLogger struct {
	baseLogger
}

// NewStdLogger creates a new standard logger writing text at Info level to stdout.
func NewStdLogger() Logger {
	return New(os.Stdout, LogLevelInfo, LogFormatText)
}

// New creates a logger with the given output, level and format.
func New(w io.Writer, level LogLevel, format LogFormat) Logger {
	return &stdLogger{
		baseLogger: baseLogger{
			level:  level,
			format: format,
			writer: w,
			fields: make(map[string]any),
			mu:     new(sync.Mutex),
		},
	}
}

// Discard returns a logger that writes nothing.
func Discard() Logger {
	return New(io.Discard, LogLevelSilent, LogFormatText)
}

func (l *stdLogger) WithFields(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	newLogger := &stdLogger{
		baseLogger: *l.clone(),
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

func (l *stdLogger) Debug(format string, args ...any) {
	if l.level >= LogLevelDebug {
		l.log("DEBUG", format, args...)
	}
}

func (l *stdLogger) Info(format string, args ...any) {
	if l.level >= LogLevelInfo {
		l.log("INFO", format, args...)
	}
}

func (l *stdLogger) Warn(format string, args ...any) {
	if l.level >= LogLevelWarn {
		l.log("WARN", format, args...)
	}
}

func (l *stdLogger) Error(format string, args ...any) {
	if l.level >= LogLevelError {
		l.log("ERROR", format, args...)
	}
}

func (l *stdLogger) SQL(sql string, duration time.Duration, args ...any) {
	if l.level < LogLevelInfo {
		return
	}
	if l.format == LogFormatJSON {
		l.write("SQL", map[string]any{"sql": sql, "duration": duration.String(), "args": args}, "")
		return
	}
	msg := fmt.Sprintf("[%v] %s | args: %v", duration, sql, args)
	if l.writer == os.Stdout || l.writer == os.Stderr {
		msg = sqlColor(sql) + msg + ansiReset
	}
	l.write("SQL", nil, msg)
}

func (l *stdLogger) log(level string, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.write(level, nil, msg)
}

func (l *stdLogger) write(level string, extra map[string]any, msg string) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == LogFormatJSON {
		data := make(map[string]any, len(l.fields)+len(extra)+3)
		for k, v := range l.fields {
			data[k] = v
		}
		for k, v := range extra {
			data[k] = v
		}
		data["time"] = now.Format(time.RFC3339)
		data["level"] = level
		if msg != "" {
			data["msg"] = msg
		}
		_ = json.NewEncoder(l.writer).Encode(data)
		return
	}

	fmt.Fprintf(l.writer, "[TORM] %s %s: %s%s\n", now.Format("2006-01-02 15:04:05"), level, msg, l.fieldString())
}

// fieldString renders the fields sorted by key so lines are stable.
func (l *stdLogger) fieldString() string {
	if len(l.fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, l.fields[k])
	}
	return sb.String()
}

func sqlColor(sqlStr string) string {
	s := strings.TrimSpace(strings.ToUpper(sqlStr))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return ansiYellow
	case strings.HasPrefix(s, "INSERT"):
		return ansiGreen
	case strings.HasPrefix(s, "DELETE"):
		return ansiRed
	default:
		return ansiCyan
	}
}
