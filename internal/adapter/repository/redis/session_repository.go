package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/V4T54L/jmlog/internal/domain"
)

const pipelineBatchSize = 500

// Repository exports a run's sessions and labels to Redis.
//
// Layout, for run id R and prefix P:
//
//	P:R:sessions  hash, field = session key, value = JSON array of records
//	P:R:labels    list of BIP-329 JSON objects, in derivation order
//	P:latest      string, id of the most recently completed run
type Repository struct {
	client  redis.Cmdable
	logger  *slog.Logger
	prefix  string
	runID   string
	limiter *rate.Limiter
}

// NewRepository creates a Redis export repository. writesPerSecond limits the
// pipelined batches sent per second; 0 means unlimited.
func NewRepository(client redis.Cmdable, logger *slog.Logger, prefix, runID string, writesPerSecond float64) *Repository {
	limit := rate.Inf
	if writesPerSecond > 0 {
		limit = rate.Limit(writesPerSecond)
	}
	return &Repository{
		client:  client,
		logger:  logger.With("component", "redis_repository"),
		prefix:  prefix,
		runID:   runID,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *Repository) key(suffix string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, r.runID, suffix)
}

// SaveSessions writes every session into the run's hash and marks the run as latest.
func (r *Repository) SaveSessions(ctx context.Context, sessions *domain.SessionMap) error {
	hashKey := r.key("sessions")
	keys := sessions.Keys()
	for start := 0; start < len(keys); start += pipelineBatchSize {
		end := min(start+pipelineBatchSize, len(keys))
		values := make(map[string]interface{}, end-start)
		for _, k := range keys[start:end] {
			payload, err := json.Marshal(sessions.Get(k))
			if err != nil {
				return fmt.Errorf("failed to marshal session %s: %w", k, err)
			}
			values[k] = payload
		}
		if err := r.exec(ctx, func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, hashKey, values)
		}); err != nil {
			return fmt.Errorf("failed to HSET sessions: %w", err)
		}
	}

	if err := r.exec(ctx, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, r.prefix+":latest", r.runID, 0)
		pipe.HSet(ctx, r.key("meta"), "sessions", len(keys), "written_at", time.Now().UTC().Format(time.RFC3339))
	}); err != nil {
		return fmt.Errorf("failed to record run metadata: %w", err)
	}
	r.logger.Info("exported sessions to redis", "key", hashKey, "sessions", len(keys))
	return nil
}

// SaveLabels replaces the run's label list.
func (r *Repository) SaveLabels(ctx context.Context, labels []domain.Label) error {
	listKey := r.key("labels")
	if err := r.client.Del(ctx, listKey).Err(); err != nil {
		return fmt.Errorf("failed to reset label list: %w", err)
	}
	for start := 0; start < len(labels); start += pipelineBatchSize {
		end := min(start+pipelineBatchSize, len(labels))
		values := make([]interface{}, 0, end-start)
		for _, l := range labels[start:end] {
			payload, err := json.Marshal(l)
			if err != nil {
				return fmt.Errorf("failed to marshal label %s: %w", l.Ref, err)
			}
			values = append(values, payload)
		}
		if err := r.exec(ctx, func(pipe redis.Pipeliner) {
			pipe.RPush(ctx, listKey, values...)
		}); err != nil {
			return fmt.Errorf("failed to RPUSH labels: %w", err)
		}
	}
	r.logger.Info("exported labels to redis", "key", listKey, "labels", len(labels))
	return nil
}

func (r *Repository) exec(ctx context.Context, fill func(pipe redis.Pipeliner)) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fill(pipe)
		return nil
	})
	return err
}
