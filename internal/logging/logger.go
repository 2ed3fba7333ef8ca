// Package logging provides colour-coded, structured log output for trail
// components: the daemon, the batching engine, the HTTP API and the CLI.
//
// All output goes through two charmbracelet loggers following Unix
// conventions: INFO and SUCCESS on stdout, DEBUG, WARN and ERROR on stderr.
// When a log file is configured both loggers write to it instead.
//
// LOGGING FEATURES:
//   - Color-coded levels: DEBUG (purple), INFO (blue), WARN (yellow), ERROR (red), SUCCESS (green)
//   - Library interception: serf/memberlist output and the standard library logger are reformatted
//   - Output control: file redirection, CLI suppression and restoration
package logging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	stdlog "log"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	mu sync.RWMutex

	// INFO/SUCCESS
	stdoutLogger = newLogger(os.Stdout)

	// DEBUG/WARN/ERROR
	stderrLogger = newLogger(os.Stderr)

	stdoutOutput io.Writer = os.Stdout

	cliConfigured = false
)

// newLogger builds a timestamped logger with the trail level palette.
func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	l.SetStyles(levelStyles())
	return l
}

// levelStyles returns the colour palette used for every level. Colours are
// chosen to stay readable on light and dark terminals.
func levelStyles() *log.Styles {
	styles := log.DefaultStyles()

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(lipgloss.Color("#7F6DFF"))
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(lipgloss.Color("#42E7FF"))
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Foreground(lipgloss.Color("#FFE763"))
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(lipgloss.Color("#FF4473"))

	return styles
}

func loggers() (*log.Logger, *log.Logger) {
	mu.RLock()
	defer mu.RUnlock()
	return stdoutLogger, stderrLogger
}

// Info logs informational messages about batches, requests and lifecycle events.
func Info(format string, v ...any) {
	out, _ := loggers()
	out.Info(fmt.Sprintf(format, v...))
}

// Warn logs recoverable problems such as failed dispatch attempts.
func Warn(format string, v ...any) {
	_, errOut := loggers()
	errOut.Warn(fmt.Sprintf(format, v...))
}

// Error logs failures that need operator attention.
func Error(format string, v ...any) {
	_, errOut := loggers()
	errOut.Error(fmt.Sprintf(format, v...))
}

// Debug logs detailed tracing output.
func Debug(format string, v ...any) {
	_, errOut := loggers()
	errOut.Debug(fmt.Sprintf(format, v...))
}

// Success logs completed operations in green. It is an INFO message with a
// SUCCESS label, so INFO level filtering applies.
func Success(format string, v ...any) {
	mu.RLock()
	level := stdoutLogger.GetLevel()
	w := stdoutOutput
	mu.RUnlock()

	if level > log.InfoLevel {
		return
	}

	styles := levelStyles()
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("SUCCESS").
		Foreground(lipgloss.Color("#60F281"))

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
	l.SetStyles(styles)
	l.Info(fmt.Sprintf(format, v...))
}

// SetLevel sets the minimum level on both loggers. Unknown levels fall back
// to INFO; callers validate first with ValidateLogLevel.
func SetLevel(level string) {
	logLevel := parseLevel(level)

	mu.Lock()
	defer mu.Unlock()
	stdoutLogger.SetLevel(logLevel)
	stderrLogger.SetLevel(logLevel)
}

// GetLevel returns the current level name.
func GetLevel() string {
	out, _ := loggers()
	return strings.ToUpper(out.GetLevel().String())
}

func parseLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetOutput sends all log output to w, overriding the stdout/stderr split.
// A nil writer suppresses everything.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		stdoutLogger.SetLevel(log.FatalLevel + 1)
		stderrLogger.SetLevel(log.FatalLevel + 1)
		return
	}

	level := stdoutLogger.GetLevel()
	stdoutLogger = newLogger(w)
	stderrLogger = newLogger(w)
	stdoutLogger.SetLevel(level)
	stderrLogger.SetLevel(level)
	stdoutOutput = w
}

// SuppressOutput keeps only ERROR output. Used by trailctl.
func SuppressOutput() {
	mu.Lock()
	defer mu.Unlock()
	stdoutLogger.SetLevel(log.ErrorLevel)
	stderrLogger.SetLevel(log.ErrorLevel)
	cliConfigured = true
}

// RestoreOutput resets both loggers to stdout/stderr at INFO level.
func RestoreOutput() {
	mu.Lock()
	defer mu.Unlock()
	stdoutLogger = newLogger(os.Stdout)
	stderrLogger = newLogger(os.Stderr)
	stdoutOutput = os.Stdout
	cliConfigured = true
}

// IsConfiguredByCLI returns true if logging has been explicitly configured by CLI tools.
func IsConfiguredByCLI() bool {
	mu.RLock()
	defer mu.RUnlock()
	return cliConfigured
}

// ============================================================================
// SERF LOG INTEGRATION - Capture and reformat serf and memberlist logs
// ============================================================================

var serfLineRegex = regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \[(\w+)\] (.+)$`)

// SerfLogWriter reformats serf and memberlist log lines into trail's log
// format with a "(gossip)" prefix.
type SerfLogWriter struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	done   chan struct{}
}

// NewSerfLogWriter starts a background goroutine that consumes serf output
// until Close is called.
func NewSerfLogWriter() *SerfLogWriter {
	r, w := io.Pipe()
	sw := &SerfLogWriter{reader: r, writer: w, done: make(chan struct{})}
	go sw.process()
	return sw
}

// Write implements io.Writer.
func (sw *SerfLogWriter) Write(p []byte) (int, error) {
	return sw.writer.Write(p)
}

// Close stops processing and waits for buffered lines to be flushed.
func (sw *SerfLogWriter) Close() error {
	err := sw.writer.Close()
	<-sw.done
	return err
}

func (sw *SerfLogWriter) process() {
	defer close(sw.done)

	scanner := bufio.NewScanner(sw.reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		level, message := ParseSerfLine(line)
		logAt(level, "(gossip) "+message)
	}
}

// ParseSerfLine extracts level and message from a serf/memberlist log line.
// Lines that do not match the library format are reported at INFO verbatim.
func ParseSerfLine(line string) (string, string) {
	matches := serfLineRegex.FindStringSubmatch(line)
	if len(matches) != 3 {
		return "INFO", line
	}

	message := matches[2]
	for _, prefix := range []string{"serf: ", "memberlist: "} {
		if strings.HasPrefix(strings.ToLower(message), prefix) {
			message = strings.TrimSpace(message[len(prefix):])
			break
		}
	}

	switch level := strings.ToUpper(matches[1]); level {
	case "WARNING":
		return "WARN", message
	case "ERR":
		return "ERROR", message
	default:
		return level, message
	}
}

func logAt(level, msg string) {
	switch level {
	case "DEBUG":
		Debug("%s", msg)
	case "WARN":
		Warn("%s", msg)
	case "ERROR":
		Error("%s", msg)
	default:
		Info("%s", msg)
	}
}

// ============================================================================
// GENERIC LOG INTEGRATION
// ============================================================================

// LevelWriter forwards each written line to a fixed level with an optional prefix.
type LevelWriter struct {
	level  string
	prefix string
}

// NewLevelWriter creates a writer that logs each line at the specified level with prefix.
// Valid levels: DEBUG, INFO, WARN, ERROR
func NewLevelWriter(level, prefix string) io.Writer {
	return &LevelWriter{level: strings.ToUpper(level), prefix: prefix}
}

// Write implements io.Writer.
func (w *LevelWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if w.prefix != "" {
			line = w.prefix + ": " + line
		}
		logAt(w.level, line)
	}
	return len(p), nil
}

// RedirectStandardLog routes the standard library logger (used by some
// dependencies) into w. Passing nil discards it.
func RedirectStandardLog(w io.Writer) {
	if w == nil {
		stdlog.SetOutput(io.Discard)
		return
	}
	stdlog.SetFlags(0)
	stdlog.SetOutput(w)
}
