// Package logging provides leveled, component-scoped console logging.
//
// Lines have the form:
//
//	LEVEL TIMESTAMP [component] message key=value ...
//
// Fields are written in key order so output is stable across runs.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a severity name as it appears in the output.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func (lv Level) rank() int {
	switch lv {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return 1
}

// Logger writes one line per call. Loggers derived from the same root share
// its lock and sink, so their lines never interleave.
type Logger struct {
	sink      *sink
	component string
	traceID   string
}

type sink struct {
	mu  sync.Mutex
	w   io.Writer
	min Level
}

// New returns an INFO logger on stdout.
func New() *Logger {
	return &Logger{sink: &sink{w: os.Stdout, min: LevelInfo}}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{sink: &sink{w: io.Discard, min: LevelError}}
}

// ParseLevel accepts level names in any case; "" is INFO.
func ParseLevel(s string) (Level, error) {
	switch lv := Level(strings.ToUpper(strings.TrimSpace(s))); lv {
	case "":
		return LevelInfo, nil
	case "WARNING":
		return LevelWarn, nil
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return lv, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// WithComponent tags lines with [component].
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, traceID: l.traceID}
}

// WithTraceID appends trace=<id> to every line.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, traceID: traceID}
}

// SetLevel applies to every logger sharing this one's root.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.min = level
	l.sink.mu.Unlock()
}

// SetOutput applies to every logger sharing this one's root.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.w = w
	l.sink.mu.Unlock()
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// appendFields writes " k=v" pairs in key order.
func appendFields(b *strings.Builder, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, fields[k])
	}
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level.rank() < l.sink.min.rank() {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s ", level, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if l.component != "" {
		b.WriteString("[" + l.component + "] ")
	}
	b.WriteString(msg)
	if len(fields) > 0 && fields[0] != nil {
		appendFields(&b, fields[0])
	}
	if l.traceID != "" {
		b.WriteString(" trace=" + l.traceID)
	}
	b.WriteByte('\n')

	io.WriteString(l.sink.w, b.String())
}

// --- Domain logging helpers ---

// Operation logs the outcome of a ledger operation. Writes log at INFO,
// reads at DEBUG.
func (l *Logger) Operation(op, account string, code int, write bool) {
	fields := map[string]interface{}{
		"op":      op,
		"account": account,
		"status":  code,
	}
	if write {
		l.Info("operation", fields)
	} else {
		l.Debug("operation", fields)
	}
}

// AccountOnboarded logs a completed registration.
func (l *Logger) AccountOnboarded(account string, tasks int) {
	l.Info("account_onboarded", map[string]interface{}{
		"account": account,
		"tasks":   tasks,
	})
}

// TaskAppended logs a task added to an account's list.
func (l *Logger) TaskAppended(account string, length int) {
	l.Info("task_appended", map[string]interface{}{
		"account": account,
		"length":  length,
	})
}

// StoreError logs a failed storage call.
func (l *Logger) StoreError(op, key string, err error) {
	l.Error("store_error", map[string]interface{}{
		"op":    op,
		"key":   key,
		"error": err,
	})
}

// EventDropped logs a domain event that could not be published.
func (l *Logger) EventDropped(subject string, err error) {
	l.Warn("event_dropped", map[string]interface{}{
		"subject": subject,
		"error":   err,
	})
}
