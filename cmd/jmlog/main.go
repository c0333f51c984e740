package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/jmlog/internal/adapter/logfile"
	"github.com/V4T54L/jmlog/internal/adapter/metrics"
	"github.com/V4T54L/jmlog/internal/adapter/repository/file"
	"github.com/V4T54L/jmlog/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/jmlog/internal/adapter/repository/redis"
	"github.com/V4T54L/jmlog/internal/domain"
	"github.com/V4T54L/jmlog/internal/pkg/config"
	"github.com/V4T54L/jmlog/internal/pkg/logger"
	"github.com/V4T54L/jmlog/internal/usecase"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <log-dir> [output.json]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flag.Usage = usage
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "operating mode: full or reduced (taker only, no labels)")
	flag.StringVar(&cfg.LabelsPath, "labels", cfg.LabelsPath, "BIP-329 label output path (full mode)")
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		usage()
		os.Exit(2)
	}
	dir := flag.Arg(0)
	if flag.NArg() == 2 {
		cfg.OutputPath = flag.Arg(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}

	runID := uuid.NewString()
	log := logger.New(cfg.LogLevel).With("run_id", runID)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, dir, runID, log); err != nil {
		log.Error("reconstruction failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dir, runID string, log *slog.Logger) error {
	start := time.Now()
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	source, err := logfile.NewSource(dir, cfg.FileGlob, log)
	if err != nil {
		return err
	}

	sessionSinks := []domain.SessionRepository{file.NewSessionRepository(cfg.OutputPath, log)}
	labelSinks := []domain.LabelRepository{file.NewLabelRepository(cfg.LabelsPath, log)}

	// --- Optional Redis export ---
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		repo := redisrepo.NewRepository(client, log, cfg.RedisKeyPrefix, runID, cfg.RedisWriteRate)
		sessionSinks = append(sessionSinks, repo)
		labelSinks = append(labelSinks, repo)
		log.Info("redis export enabled", "prefix", cfg.RedisKeyPrefix)
	}

	// --- Optional PostgreSQL export ---
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to open postgres connection: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		repo := postgres.NewExportRepository(db, log, runID)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		sessionSinks = append(sessionSinks, repo)
		labelSinks = append(labelSinks, repo)
		log.Info("postgres export enabled")
	}

	uc := usecase.NewReconstructUseCase(source, sessionSinks, labelSinks, usecase.ReconstructOptions{
		Mode:            domain.Mode(cfg.Mode),
		Location:        loc,
		ReadConcurrency: cfg.ReadConcurrency,
	}, log)

	log.Info("starting reconstruction", "dir", dir, "mode", cfg.Mode, "output", cfg.OutputPath)
	res, err := uc.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.MetricsTextfile != "" {
		m := metrics.NewRunMetrics()
		m.Observe(res.Stats, time.Since(start))
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	return nil
}
