package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/V4T54L/jmlog/internal/domain"
)

const (
	filePerm = 0644
	dirPerm  = 0755
)

// SessionRepository writes the session map as an indented JSON document.
type SessionRepository struct {
	path   string
	logger *slog.Logger
}

// NewSessionRepository creates a SessionRepository writing to path.
func NewSessionRepository(path string, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{path: path, logger: logger.With("component", "file_session_repository")}
}

// SaveSessions replaces the output file with the given sessions.
func (r *SessionRepository) SaveSessions(ctx context.Context, sessions *domain.SessionMap) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if err := writeFile(r.path, func(w *bufio.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return err
	}
	r.logger.Info("wrote sessions", "path", r.path, "sessions", sessions.Len())
	return nil
}

// LabelRepository writes labels as BIP-329 JSON lines.
type LabelRepository struct {
	path   string
	logger *slog.Logger
}

// NewLabelRepository creates a LabelRepository writing to path.
func NewLabelRepository(path string, logger *slog.Logger) *LabelRepository {
	return &LabelRepository{path: path, logger: logger.With("component", "file_label_repository")}
}

// SaveLabels replaces the output file with one JSON object per line.
func (r *LabelRepository) SaveLabels(ctx context.Context, labels []domain.Label) error {
	if err := writeFile(r.path, func(w *bufio.Writer) error {
		for i, l := range labels {
			data, err := json.Marshal(l)
			if err != nil {
				return fmt.Errorf("failed to marshal label %s: %w", l.Ref, err)
			}
			if i > 0 {
				if err := w.WriteByte('\n'); err != nil {
					return err
				}
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	r.logger.Info("wrote labels", "path", r.path, "labels", len(labels))
	return nil
}

// writeFile writes to a temporary file next to path and renames it into place.
func writeFile(path string, fill func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary output file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place at %s: %w", path, err)
	}
	return nil
}
