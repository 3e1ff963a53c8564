// Package logging создаёт структурированный логгер команд.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger создаёт логгер для stderr: текстовый на терминале,
// JSON при перенаправлении вывода. verbose включает уровень Debug.
//
// Логгер уточняется через With:
//
//	logger := logging.NewCommandLogger(verbose).With("command", "install")
func NewCommandLogger(verbose bool) *slog.Logger {
	return New(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

// New создаёт логгер поверх произвольного writer
func New(w io.Writer, text, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}
