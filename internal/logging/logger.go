package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func levelString(l Level) string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "?"
}

var (
	rootInstance *Logger
	rootOnce     sync.Once
)

// Logger provides printf-style leveled logging with a component tag.
type Logger struct {
	mu        sync.Mutex
	out       *log.Logger
	level     Level
	component string
}

// Root returns the process-wide logger, writing to robotbrain-debug.log
// in the user's home directory. Falls back to stderr if the file cannot
// be opened.
func Root() *Logger {
	rootOnce.Do(func() {
		var w io.Writer = os.Stderr
		if home, err := os.UserHomeDir(); err == nil {
			logPath := filepath.Join(home, "robotbrain-debug.log")
			if file, ferr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); ferr == nil {
				w = file
			}
		}
		rootInstance = &Logger{out: log.New(w, "", 0), level: INFO}
	})
	return rootInstance
}

// NewComponentLogger returns the root logger scoped to a component tag.
func NewComponentLogger(component string) *Logger {
	root := Root()
	return &Logger{out: root.out, level: root.level, component: component}
}

// NewWriterLogger builds a logger over an arbitrary writer. Used by tests.
func NewWriterLogger(w io.Writer, component string, level Level) *Logger {
	return &Logger{out: log.New(w, "", 0), level: level, component: component}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{out: log.New(io.Discard, "", 0), level: ERROR + 1}
}

// SetLevel sets the minimum level emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.level || l.out == nil {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "BRAIN"
	}

	// Format: 2025-09-30 12:34:56 [INFO] [kernel] node.go:42 - message
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s [%s] [%s] %s:%d - %s",
		time.Now().Format("2006-01-02 15:04:05"), levelString(level), component, file, line, msg)
}

func (l *Logger) Debug(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.logf(ERROR, format, args...) }
