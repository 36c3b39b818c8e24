// Package log is the process-wide leveled logger. Messages are written to
// stderr as a message followed by key/value pairs.
package log

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	Prefix: "fmcmd",
	Level:  charmlog.InfoLevel,
})

// Setup configures the logger. With verbose set, debug messages are emitted
// together with timestamps.
func Setup(verbose bool) {
	SetupWriter(os.Stderr, verbose)
}

// SetupWriter is Setup with a custom destination.
func SetupWriter(w io.Writer, verbose bool) {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}

	logger = charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          "fmcmd",
		Level:           level,
		ReportTimestamp: verbose,
	})
}

func Debug(msg string, keyvals ...any) {
	logger.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...any) {
	logger.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...any) {
	logger.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...any) {
	logger.Error(msg, keyvals...)
}
