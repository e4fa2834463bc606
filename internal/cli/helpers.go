package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/internal/logging"
)

// createLogger configures the application logger. Quiet runs only report errors.
func createLogger(w io.Writer, level, format string, quiet bool) (*slog.Logger, error) {
	if quiet {
		level = "error"
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch logging.Format(format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return logging.NewWithFormat(w, l, logging.Format(format)), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// solversPath picks the solver registry. An unchanged default is looked up in
// the working directory, then in the recipe library.
func solversPath(path string, explicit bool, dir, library string) string {
	if explicit || path == "" {
		return path
	}
	for _, base := range []string{dir, library} {
		if base == "" {
			continue
		}
		candidate := filepath.Join(base, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}
