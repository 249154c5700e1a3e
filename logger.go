package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a structured JSON logger at level. With a non-empty
// logFile, records also go to a size-rotated file. The returned closer is
// never nil.
func NewLogger(level slog.Leveler, logFile string) (*slog.Logger, func() error) {
	return newLogger(os.Stdout, level, logFile)
}

func newLogger(stdout io.Writer, level slog.Leveler, logFile string) (*slog.Logger, func() error) {
	w := stdout
	closer := func() error { return nil }
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    16,
			MaxBackups: 3,
			Compress:   true,
		}
		w = io.MultiWriter(stdout, rotating)
		closer = rotating.Close
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), closer
}
