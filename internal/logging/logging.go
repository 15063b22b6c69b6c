package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.Mutex
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init configures the process logger. Pretty selects a console writer for
// development; otherwise one JSON object per line is written to stdout.
func Init(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var l zerolog.Logger
	if pretty {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		l = zerolog.New(out).With().Timestamp().Logger()
	} else {
		l = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	mu.Lock()
	root = l
	mu.Unlock()
	return l
}

// Component returns the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.With().Str("component", name).Logger()
}
