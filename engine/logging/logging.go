// Package logging builds the slog loggers used by kiln programs.
//
// Engine packages take an optional *slog.Logger and stay silent when given
// none; this package is for the application side, where logs go to a
// size-rotated JSON file plus (optionally) stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// New creates a logger writing rotated JSON logs under dir. level is one of
// "debug", "info", "warn", "error"; anything else falls back to info. An
// empty dir places logs next to the user config directory.
func New(level, dir string, alsoStderr bool) *Logger {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to find user config dir: %v\n", err)
			base = "."
		}
		dir = filepath.Join(base, "kiln")
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "kiln.slog"),
		MaxSize:    32, // MB
		MaxBackups: 1,
	}
	if level == "debug" {
		w.MaxSize = 256
	}

	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level, using info\n", level)
	}

	var out io.Writer = w
	if alsoStderr {
		out = io.MultiWriter(w, os.Stderr)
	}

	l := &Logger{
		Logger:  slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})),
		LogFile: w.Filename,
		Start:   time.Now(),
	}

	l.Info("logging started",
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()))

	return l
}

// Discard returns a logger that drops everything; the engine default.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
