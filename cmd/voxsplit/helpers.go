package main

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"voxsplit/internal/config"
	"voxsplit/internal/logging"
)

// newLogger routes structured logs to the log file, and additionally to
// stderr when stderr is not a terminal. On a terminal stderr belongs to the
// interactive progress line.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	paths := []string{defaultLogPath(cfg.Paths.LogDir)}
	if !stderrIsTerminal() {
		paths = append(paths, "stderr")
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}
