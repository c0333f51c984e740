package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/jmlog/internal/domain"
)

// ReconstructOptions configures a ReconstructUseCase.
type ReconstructOptions struct {
	Mode     domain.Mode
	Location *time.Location
	// ReadConcurrency bounds the concurrent file reads; 0 reads all files at once.
	ReadConcurrency int
}

// Result is the outcome of one reconstruction run.
type Result struct {
	Sessions *domain.SessionMap
	Labels   []domain.Label
	Stats    domain.RunStats
}

// ReconstructUseCase reads a set of log files and rebuilds sessions and labels.
type ReconstructUseCase struct {
	source      domain.LogSource
	sessionSink []domain.SessionRepository
	labelSink   []domain.LabelRepository
	assembler   *Assembler
	normalizer  *Normalizer
	opts        ReconstructOptions
	logger      *slog.Logger
}

// NewReconstructUseCase creates a new ReconstructUseCase.
func NewReconstructUseCase(source domain.LogSource, sessionSink []domain.SessionRepository, labelSink []domain.LabelRepository, opts ReconstructOptions, logger *slog.Logger) *ReconstructUseCase {
	if opts.Mode == "" {
		opts.Mode = domain.ModeFull
	}
	return &ReconstructUseCase{
		source:      source,
		sessionSink: sessionSink,
		labelSink:   labelSink,
		assembler:   NewAssembler(NewClassifier(opts.Mode), opts.Location),
		normalizer:  NewNormalizer(logger),
		opts:        opts,
		logger:      logger,
	}
}

// Reconstruct runs the whole pipeline without persisting anything.
func (uc *ReconstructUseCase) Reconstruct(ctx context.Context) (*Result, error) {
	files, err := uc.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	stats := domain.RunStats{
		Files:     len(files),
		Records:   make(map[domain.EventType]int),
		Fallbacks: make(map[domain.EventType]int),
		Labels:    make(map[domain.LabelType]int),
	}

	// 1. Read and assemble every file concurrently; nothing is shared until Wait.
	perFile := make([][]*domain.LogRecord, len(files))
	lineCounts := make([]int, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if uc.opts.ReadConcurrency > 0 {
		g.SetLimit(uc.opts.ReadConcurrency)
	}
	for i, name := range files {
		i, name := i, name
		g.Go(func() error {
			lines, err := uc.source.ReadLines(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			lineCounts[i] = len(lines)
			perFile[i] = uc.assembler.Assemble(name, lines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, n := range lineCounts {
		stats.Lines += n
		uc.logger.Debug("assembled log file", "file", files[i], "lines", n, "records", len(perFile[i]))
	}

	// 2. Merge and normalize.
	records := uc.normalizer.Merge(perFile)
	for _, rec := range records {
		stats.Records[rec.Type]++
		if !uc.normalizer.Normalize(rec) {
			stats.Fallbacks[rec.Type]++
		}
	}

	// 3. Correlate.
	sessions := Correlate(records)
	stats.Sessions = sessions.Len()

	// 4. Labels, full mode only.
	var labels []domain.Label
	if uc.opts.Mode == domain.ModeFull {
		labels = DeriveLabels(sessions)
		for _, l := range labels {
			stats.Labels[l.Type]++
		}
	}

	return &Result{Sessions: sessions, Labels: labels, Stats: stats}, nil
}

// Run reconstructs sessions and writes them, and the labels in full mode, to every sink.
func (uc *ReconstructUseCase) Run(ctx context.Context) (*Result, error) {
	res, err := uc.Reconstruct(ctx)
	if err != nil {
		return nil, err
	}

	for _, sink := range uc.sessionSink {
		if err := sink.SaveSessions(ctx, res.Sessions); err != nil {
			return res, fmt.Errorf("failed to save sessions: %w", err)
		}
	}
	if uc.opts.Mode == domain.ModeFull {
		for _, sink := range uc.labelSink {
			if err := sink.SaveLabels(ctx, res.Labels); err != nil {
				return res, fmt.Errorf("failed to save labels: %w", err)
			}
		}
	}

	uc.logger.Info("reconstruction finished",
		"files", res.Stats.Files,
		"lines", res.Stats.Lines,
		"records", sum(res.Stats.Records),
		"fallbacks", sum(res.Stats.Fallbacks),
		"sessions", res.Stats.Sessions,
		"labels", len(res.Labels),
	)
	return res, nil
}

func sum[K comparable](m map[K]int) int {
	var n int
	for _, v := range m {
		n += v
	}
	return n
}
