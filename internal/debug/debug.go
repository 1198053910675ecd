package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

const logPathEnv = "SIDEKICK_DEBUG_LOG"

var (
	once   sync.Once
	logger *slog.Logger
)

// GetLogger returns a singleton slog logger. Logging goes to the file named
// by SIDEKICK_DEBUG_LOG; when the variable is unset everything is discarded,
// so call sites never need to guard.
func GetLogger() *slog.Logger {
	once.Do(func() {
		var w io.Writer = io.Discard
		if path := os.Getenv(logPathEnv); path != "" {
			f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err == nil {
				w = f
			}
		}
		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
	})
	return logger
}
