package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services receive it as an
// explicit dependency rather than reaching for the slog default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
