// Package logging builds the structured loggers used across cppkg.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Environment variables consulted by NewLogger.
const (
	EnvLevel = "CPPKG_LOG_LEVEL"
	EnvJSON  = "CPPKG_JSON_LOG"
)

// NewLogger returns a logger named name writing to out. An empty level
// falls back to $CPPKG_LOG_LEVEL and then to "info".
func NewLogger(name, level string, out io.Writer) hclog.Logger {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		Output:     out,
		JSONFormat: jsonEnabled(os.Getenv(EnvJSON)),
	})
}

// Discard returns a logger that drops everything.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

func jsonEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
