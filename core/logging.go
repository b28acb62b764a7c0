package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// SetupLogging configures zerolog output to both stdout and a file in
// cfg.LogDir, at the level named by cfg.LogLevel. Caller should close the
// returned io.Closer on shutdown. This mirrors the teacher's SetupLogging
// (same dir/file/tee contract) but targets zerolog's leveled logger instead
// of stdlib log + gin's writer hooks, since the tool's own -l/--log_level
// flag is a direct match for zerolog's level API.
func SetupLogging(cfg Config, filename string) (zerolog.Logger, io.Closer, error) {
	dir := cfg.LogDir
	if dir == "" {
		dir = "./probcheck-logs"
	}
	if filename == "" {
		filename = "verifyproblem.log"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	mw := zerolog.MultiLevelWriter(console, f)

	level := levelFromName(cfg.LogLevel)
	logger := zerolog.New(mw).Level(level).With().Timestamp().Logger()

	return logger, f, nil
}

// levelFromName maps the tool's -l/--log_level vocabulary
// (debug|info|warning|error|critical) onto zerolog's levels.
func levelFromName(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
