package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// Level represents the console verbosity level.
type Level int

const (
	// LevelQuiet shows only warnings and errors
	LevelQuiet Level = iota
	// LevelNormal shows standard run progress (default)
	LevelNormal
	// LevelVerbose shows per-step detail
	LevelVerbose
	// LevelDebug shows every provider interaction
	LevelDebug
)

// ParseLevel converts a verbosity name to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "quiet":
		return LevelQuiet, nil
	case "", "normal":
		return LevelNormal, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelNormal, fmt.Errorf("invalid verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", name)
	}
}

// String returns the verbosity name.
func (l Level) String() string {
	switch l {
	case LevelQuiet:
		return "quiet"
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	default:
		return "normal"
	}
}

// Options configures a Logger.
type Options struct {
	// Level filters console output. The log file always receives every entry.
	Level Level

	// Console receives human-readable output. Defaults to os.Stdout.
	Console io.Writer

	// File enables the per-run log file.
	File bool

	// Dir overrides the log directory. Defaults to ~/.archiver/logs.
	Dir string

	// RunID overrides the generated run identifier.
	RunID string
}

// Logger writes levelled messages to the console and, optionally, to a
// per-run log file at <dir>/<run-id>-archiver.log.
//
// Loggers created with With share the same sinks; only the component tag
// differs. Safe for concurrent use.
type Logger struct {
	component string
	level     Level
	sink      *sink
}

type sink struct {
	mu        sync.Mutex
	console   io.Writer
	file      *os.File
	logPath   string
	runID     string
	styles    styles
	closeOnce sync.Once
}

type styles struct {
	success lipgloss.Style
	info    lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	detail  lipgloss.Style
	section lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		info:    r.NewStyle().Foreground(lipgloss.Color("217")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		err:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		detail:  r.NewStyle().Foreground(lipgloss.Color("8")),
		section: r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	}
}

// New creates a root logger.
//
// If the log file cannot be created, New returns a console-only logger along
// with the error, so callers can warn and carry on.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	s := &sink{
		console: console,
		runID:   runID,
		styles:  newStyles(console),
	}
	logger := &Logger{level: opts.Level, sink: s}

	if !opts.File {
		return logger, nil
	}

	dir := opts.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return logger, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".archiver", "logs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return logger, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s-archiver.log", runID))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return logger, fmt.Errorf("failed to open log file: %w", err)
	}
	s.file = file
	s.logPath = logPath
	return logger, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	l, _ := New(Options{Level: LevelQuiet, Console: io.Discard, RunID: "discard"})
	return l
}

// With returns a logger tagged with component that shares this logger's sinks.
func (l *Logger) With(component string) *Logger {
	return &Logger{component: component, level: l.level, sink: l.sink}
}

// Level returns the console verbosity.
func (l *Logger) Level() Level {
	return l.level
}

// Successf logs a completed step.
func (l *Logger) Successf(format string, v ...interface{}) {
	l.emit(LevelNormal, "INFO", l.sink.styles.success, "✓ ", format, v...)
}

// Infof logs standard progress.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.emit(LevelNormal, "INFO", l.sink.styles.info, "", format, v...)
}

// Warnf logs a recoverable problem.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.emit(LevelQuiet, "WARN", l.sink.styles.warn, "⚠ Warning: ", format, v...)
}

// Errorf logs a failure.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.emit(LevelQuiet, "ERROR", l.sink.styles.err, "✗ Error: ", format, v...)
}

// Verbosef logs detail shown only in verbose mode.
func (l *Logger) Verbosef(format string, v ...interface{}) {
	l.emit(LevelVerbose, "INFO", l.sink.styles.detail, "→ ", format, v...)
}

// Debugf logs internals shown only in debug mode.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.emit(LevelDebug, "DEBUG", l.sink.styles.detail, "[DEBUG] ", format, v...)
}

// Section prints a section divider.
func (l *Logger) Section(title string) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeFile(l.component, "INFO", "== "+title+" ==")
	if l.level < LevelNormal {
		return
	}
	fmt.Fprintln(s.console)
	fmt.Fprintln(s.console, s.styles.section.Render("▶ "+title))
	fmt.Fprintln(s.console, s.styles.detail.Render(strings.Repeat("─", 50)))
}

// RunID returns the identifier shared by every logger of this run.
func (l *Logger) RunID() string {
	return l.sink.runID
}

// LogPath returns the path to the log file, or "" when file logging is off.
func (l *Logger) LogPath() string {
	return l.sink.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.sink.closeOnce.Do(func() {
		l.sink.mu.Lock()
		defer l.sink.mu.Unlock()
		if l.sink.file != nil {
			err = l.sink.file.Close()
			l.sink.file = nil
		}
	})
	return err
}

func (l *Logger) emit(min Level, tag string, style lipgloss.Style, prefix, format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeFile(l.component, tag, message)
	if l.level < min {
		return
	}

	line := prefix + message
	if l.component != "" && l.level >= LevelVerbose {
		line = s.styles.detail.Render("["+l.component+"] ") + style.Render(line)
	} else {
		line = style.Render(line)
	}
	fmt.Fprintln(s.console, line)
}

// writeFile appends a timestamped entry. Callers hold s.mu.
func (s *sink) writeFile(component, tag, message string) {
	if s.file == nil {
		return
	}
	if component == "" {
		component = "archiver"
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(s.file, "[%s] [%s] [%s] %s\n", timestamp, component, tag, message)
}
