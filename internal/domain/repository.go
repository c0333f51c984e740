package domain

import (
	"context"
	"errors"
)

// ErrNoDirectory is returned when the log directory does not exist or is not a directory.
var ErrNoDirectory = errors.New("log directory not found")

// LogSource provides the raw lines of a set of log files.
type LogSource interface {
	// ListFiles returns the names of the log files, in a stable order.
	ListFiles(ctx context.Context) ([]string, error)

	// ReadLines returns every line of the named file, without line terminators.
	ReadLines(ctx context.Context, name string) ([]string, error)
}

// SessionRepository persists a reconstructed session map.
type SessionRepository interface {
	SaveSessions(ctx context.Context, sessions *SessionMap) error
}

// LabelRepository persists a BIP-329 label export.
type LabelRepository interface {
	SaveLabels(ctx context.Context, labels []Label) error
}

// RunStats summarizes one reconstruction run.
type RunStats struct {
	Files     int
	Lines     int
	Records   map[EventType]int
	Fallbacks map[EventType]int
	Sessions  int
	Labels    map[LabelType]int
}
