package logfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/jmlog/internal/domain"
)

const maxLineSize = 16 << 20 // obtained tx dumps can be long single lines

// Source reads log files from one directory. Files ending in .gz or .zst are
// decompressed on the fly.
type Source struct {
	dir    string
	glob   string
	logger *slog.Logger
}

// NewSource creates a Source for dir. A non-empty glob restricts the file names read.
func NewSource(dir, glob string, logger *slog.Logger) (*Source, error) {
	if glob != "" {
		if _, err := filepath.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("invalid file glob %q: %w", glob, err)
		}
	}
	return &Source{
		dir:    dir,
		glob:   glob,
		logger: logger.With("component", "logfile_source"),
	}, nil
}

// ListFiles returns the regular, non-hidden files of the directory in name order.
func (s *Source) ListFiles(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoDirectory, s.dir)
		}
		return nil, fmt.Errorf("failed to stat log directory %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrNoDirectory, s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory %s: %w", s.dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if s.glob != "" {
			if ok, _ := filepath.Match(s.glob, name); !ok {
				continue
			}
		}
		files = append(files, name)
	}
	sort.Strings(files)
	s.logger.Debug("listed log files", "dir", s.dir, "count", len(files))
	return files, nil
}

// ReadLines returns all lines of the named file.
func (s *Source) ReadLines(ctx context.Context, name string) ([]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(name, f)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream: %w", filepath.Ext(name), err)
	}
	defer closeFn()

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning log file %s: %w", name, err)
	}
	return lines, nil
}

func decompress(name string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { zr.Close() }, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}
