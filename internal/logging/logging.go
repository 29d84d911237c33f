// Package logging provides structured diagnostic logging over zerolog. It
// is strictly the ambient diagnostic channel: agent output (text deltas,
// tool results, permission prompts) flows through agentchan's typed
// broadcast instead, never through here.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger instance.
var Logger zerolog.Logger

var logFile *os.File

// Level is a zerolog level, re-exported so callers don't import zerolog
// directly for the common case.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls Init.
type Config struct {
	// Level is the minimum level that reaches Output.
	Level Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty switches on zerolog's human-readable console writer.
	Pretty bool
	// TimeFormat defaults to time.RFC3339.
	TimeFormat string
	// LogToFile additionally writes every event to a timestamped file.
	LogToFile bool
	// LogDir defaults to /tmp when LogToFile is set.
	LogDir string
}

// DefaultConfig is what init() applies before any caller configures
// logging explicitly.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		Pretty:     false,
		TimeFormat: time.RFC3339,
		LogToFile:  false,
		LogDir:     "/tmp",
	}
}

// Init (re-)builds the global Logger from cfg. Safe to call more than
// once; a previously opened log file is closed first.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/tmp"
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var writers []io.Writer

	var console io.Writer = cfg.Output
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}
	writers = append(writers, console)

	if cfg.LogToFile {
		if logFile != nil {
			logFile.Close()
		}
		timestamp := time.Now().Format("20060102-150405")
		logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("agentcore-%s.log", timestamp))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			logFile = f
			writers = append(writers, logFile)
		}
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	Logger = zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// GetLogFilePath returns the active log file's path, or "" if LogToFile
// was never enabled.
func GetLogFilePath() string {
	if logFile != nil {
		return logFile.Name()
	}
	return ""
}

// Close closes the active log file, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ParseLevel parses a case-insensitive level name, defaulting to
// InfoLevel for anything unrecognized (including "").
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }
func Fatal() *zerolog.Event { return Logger.Fatal() }

// With starts a child-logger builder carrying extra fields.
func With() zerolog.Context { return Logger.With() }

func init() {
	Init(DefaultConfig())
}
