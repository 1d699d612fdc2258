// Package logging provides genisynth's structured logger, a thin wrapper
// around charmbracelet/log matching the charm-ecosystem style already
// used by the TUI commands in cmd/.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds a leveled logger writing to stderr, parsing levelName
// (debug/info/warn/error, case-insensitive); an unrecognized or empty
// name falls back to info.
func New(levelName string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})

	level, err := log.ParseLevel(levelName)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
