package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/config"
)

// New returns the root logger. Output goes to cfg.LogFile so log lines never
// interleave with interactive menus; if the file cannot be opened the logger
// falls back to stderr at warn level. The returned closer releases the file.
func New(cfg config.Config) (hclog.Logger, io.Closer) {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	f, err := openLogFile(cfg.LogFile)
	if err != nil {
		logger := hclog.New(&hclog.LoggerOptions{
			Name:   "localcloud",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})
		logger.Warn("log file unavailable, logging to stderr", "path", cfg.LogFile, "error", err)
		return logger, nopCloser{}
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "localcloud",
		Level:  level,
		Output: f,
	}), f
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Discard is a logger for tests and dry runs.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
