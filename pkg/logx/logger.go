package logx

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

// Fields is structured log context.
type Fields map[string]any

// Format selects the output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config controls a Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// LoadFromEnv builds a Config from LOG_LEVEL and LOG_FORMAT.
func LoadFromEnv() *Config {
	format := FormatConsole
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		format = FormatJSON
	}
	return &Config{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: format,
		Output: os.Stdout,
	}
}

// Logger writes leveled, structured log lines.
type Logger struct {
	mu       sync.Mutex
	level    Level
	format   Format
	writer   io.Writer
	exitFunc func(int)
}

// NewLogger creates a Logger from config. A nil config uses env defaults.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = LoadFromEnv()
	}
	writer := config.Output
	if writer == nil {
		writer = os.Stdout
	}
	return &Logger{
		level:    config.Level,
		format:   config.Format,
		writer:   writer,
		exitFunc: os.Exit,
	}
}

// SetLevel changes the minimum emitted level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput changes the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

func (l *Logger) log(level Level, msg string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.level.Enabled(level) {
		return
	}

	now := time.Now()
	var line string
	if l.format == FormatJSON {
		entry := map[string]any{
			"time":    now.Format(time.RFC3339Nano),
			"level":   level.String(),
			"message": msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		b, err := json.Marshal(entry)
		if err != nil {
			b = []byte(fmt.Sprintf(`{"level":"ERROR","message":"logx: marshal failed: %v"}`, err))
		}
		line = string(b)
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %-5s %s", now.Format("2006-01-02 15:04:05.000"), level.String(), msg)
		if len(fields) > 0 {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, " %s=%v", k, fields[k])
			}
		}
		line = sb.String()
	}

	fmt.Fprintln(l.writer, line)
	if level == LevelFatal {
		l.exitFunc(1)
	}
}

// WithFields returns an Entry carrying the given fields.
func (l *Logger) WithFields(fields Fields) *Entry {
	e := &Entry{logger: l, fields: make(Fields, len(fields))}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithField returns an Entry carrying a single field.
func (l *Logger) WithField(key string, value any) *Entry {
	return l.WithFields(Fields{key: value})
}

// WithError returns an Entry carrying an error field.
func (l *Logger) WithError(err error) *Entry {
	return l.WithField("error", err)
}

// Entry is a logger with bound fields.
type Entry struct {
	logger *Logger
	fields Fields
}

// WithField adds a field and returns the entry for chaining.
func (e *Entry) WithField(key string, value any) *Entry {
	e.fields[key] = value
	return e
}

// WithError adds an error field.
func (e *Entry) WithError(err error) *Entry { return e.WithField("error", err) }

func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, msg, e.fields) }
func (e *Entry) Info(msg string)  { e.logger.log(LevelInfo, msg, e.fields) }
func (e *Entry) Warn(msg string)  { e.logger.log(LevelWarn, msg, e.fields) }
func (e *Entry) Error(msg string) { e.logger.log(LevelError, msg, e.fields) }

func (e *Entry) Debugf(format string, args ...any) { e.Debug(fmt.Sprintf(format, args...)) }
func (e *Entry) Infof(format string, args ...any)  { e.Info(fmt.Sprintf(format, args...)) }
func (e *Entry) Warnf(format string, args ...any)  { e.Warn(fmt.Sprintf(format, args...)) }
func (e *Entry) Errorf(format string, args ...any) { e.Error(fmt.Sprintf(format, args...)) }
