// Package logging provides component loggers for tend. Every package logs
// through a named component logger; output goes to a rotating file under
// the XDG state directory and, optionally, to stderr.
//
// Before Init is called all loggers are silent:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("operator")
//	logger.Info("removing", "source", "apt", "count", 2)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

// Levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned for an unrecognised level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components overrides the level per component (e.g. "operator": "debug").
	Components map[string]string

	// ConsoleLevel mirrors entries at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string
}

// Entry is a retained log entry. Warnings and errors logged during a run are
// kept so the CLI can summarise them after a reconciliation.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger is a component logger writing to the log file and, when enabled,
// to the console.
type Logger struct {
	component string
	file      *log.Logger
	console   *log.Logger
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args...) }

// Warn logs at warn level. The entry is retained for Recent.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args...) }

// Error logs at error level. The entry is retained for Recent.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	emit(l.file, level, msg, args...)
	if l.console != nil {
		emit(l.console, level, msg, args...)
	}
	if level >= LevelWarn {
		global.retain(Entry{Time: time.Now(), Level: level, Component: l.component, Message: msg})
	}
}

func emit(lg *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		lg.Debug(msg, args...)
	case LevelInfo:
		lg.Info(msg, args...)
	case LevelWarn:
		lg.Warn(msg, args...)
	case LevelError:
		lg.Error(msg, args...)
	}
}

// With returns a logger carrying additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{component: l.component, file: l.file.With(args...)}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger

	console      bool
	consoleLevel Level

	recent *Ring
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
	recent:     NewRing(DefaultRingSize),
}

// Init configures logging. Loggers obtained before Init are rebuilt so
// package-level loggers pick up the new outputs.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		lvl, err := ParseLevel(name)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = lvl
	}

	console := false
	var consoleLevel Level
	if cfg.ConsoleLevel != "" {
		consoleLevel, err = ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLevel = consoleLevel
	global.initialized = true

	for comp, existing := range global.loggers {
		*existing = *build(comp)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use. The
// returned pointer stays valid across Init calls.
func Get(component string) *Logger {
	global.mu.RLock()
	if lg, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return lg
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()
	if lg, ok := global.loggers[component]; ok {
		return lg
	}
	lg := build(component)
	global.loggers[component] = lg
	return lg
}

// build creates a component logger. Callers hold global.mu.
func build(component string) *Logger {
	level := global.level
	if lvl, ok := global.components[component]; ok {
		level = lvl
	}

	if !global.initialized {
		return &Logger{
			component: component,
			file:      log.NewWithOptions(io.Discard, log.Options{Level: level.charm(), Prefix: component}),
		}
	}

	lg := &Logger{
		component: component,
		file: log.NewWithOptions(global.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if global.console {
		lg.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           global.consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return lg
}

// Close flushes and closes the log file. Loggers fall back to discarding.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}
	global.initialized = false

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	for comp, existing := range global.loggers {
		*existing = *build(comp)
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

func (s *state) retain(e Entry) {
	s.recent.Add(e)
}

// Recent returns the warnings and errors retained since the last Reset,
// oldest first.
func Recent() []Entry {
	return global.recent.Entries()
}

// ResetRecent discards retained entries.
func ResetRecent() {
	global.recent.Clear()
}

// DefaultLogPath returns $XDG_STATE_HOME/tend/tend.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "tend", "tend.log")
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
