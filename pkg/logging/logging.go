// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger  = zerolog.Nop()
	logFile *os.File
	mu      sync.RWMutex
)

// Options selects where logs go. The TUI owns the terminal, so it runs
// with Console disabled and logs to File only, if at all.
type Options struct {
	Level   string
	File    string
	Console bool
	Out     io.Writer // console destination, defaults to stderr
}

// ParseLevel parses level, falling back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Init replaces the global logger and returns it.
func Init(opts Options) (zerolog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	var writers []io.Writer
	if opts.Console {
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		if opts.Out != nil {
			cw.Out = opts.Out
			cw.NoColor = true
		}
		writers = append(writers, cw)
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return logger, err
		}
		logFile = f
		writers = append(writers, f)
	}
	if len(writers) == 0 {
		logger = zerolog.New(io.Discard)
		return logger, nil
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
	return logger, nil
}

// Get returns the global logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
		logger = zerolog.Nop()
	}
}
