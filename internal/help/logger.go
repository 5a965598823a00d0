package help

import (
	"log/slog"
	"os"
)

func Logger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	h := slog.NewJSONHandler(os.Stdout, opts)

	return slog.New(h).With(
		slog.String("service", "imgCache"),
		slog.String("env", "test"),
	)
}

// Quiet drops every record; for tests that spin up many caches.
func Quiet() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
