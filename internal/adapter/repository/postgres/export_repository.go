package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/jmlog/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS jm_sessions (
	run_id      TEXT        NOT NULL,
	session_key TEXT        NOT NULL,
	position    INTEGER     NOT NULL,
	records     JSONB       NOT NULL,
	PRIMARY KEY (run_id, session_key)
);
CREATE TABLE IF NOT EXISTS jm_labels (
	run_id    TEXT    NOT NULL,
	position  INTEGER NOT NULL,
	type      TEXT    NOT NULL,
	ref       TEXT    NOT NULL,
	label     TEXT    NOT NULL,
	spendable BOOLEAN,
	PRIMARY KEY (run_id, position)
);`

// ExportRepository writes sessions and labels of one run to PostgreSQL.
type ExportRepository struct {
	db     *sql.DB
	logger *slog.Logger
	runID  string
}

// NewExportRepository creates a PostgreSQL export repository for runID.
func NewExportRepository(db *sql.DB, logger *slog.Logger, runID string) *ExportRepository {
	return &ExportRepository{db: db, logger: logger.With("component", "postgres_repository"), runID: runID}
}

// Migrate creates the export tables if they do not exist.
func (r *ExportRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create export tables: %w", err)
	}
	return nil
}

// SaveSessions stages the sessions with COPY and upserts them, keyed by run and session key.
func (r *ExportRepository) SaveSessions(ctx context.Context, sessions *domain.SessionMap) error {
	rows := make([][]interface{}, 0, sessions.Len())
	for i, key := range sessions.Keys() {
		payload, err := json.Marshal(sessions.Get(key))
		if err != nil {
			return fmt.Errorf("failed to marshal session %s: %w", key, err)
		}
		rows = append(rows, []interface{}{r.runID, key, i, string(payload)})
	}

	err := r.copyUpsert(ctx, "jm_sessions", []string{"run_id", "session_key", "position", "records"}, rows, `
		INSERT INTO jm_sessions (run_id, session_key, position, records)
		SELECT run_id, session_key, position, records FROM jm_sessions_import
		ON CONFLICT (run_id, session_key) DO UPDATE SET
			position = EXCLUDED.position,
			records = EXCLUDED.records;`)
	if err != nil {
		return err
	}
	r.logger.Info("exported sessions to postgres", "run_id", r.runID, "sessions", len(rows))
	return nil
}

// SaveLabels stages the labels with COPY and upserts them, keyed by run and position.
func (r *ExportRepository) SaveLabels(ctx context.Context, labels []domain.Label) error {
	rows := make([][]interface{}, 0, len(labels))
	for i, l := range labels {
		var spendable sql.NullBool
		if l.Spendable != nil {
			spendable = sql.NullBool{Bool: *l.Spendable, Valid: true}
		}
		rows = append(rows, []interface{}{r.runID, i, string(l.Type), l.Ref, l.Label, spendable})
	}

	err := r.copyUpsert(ctx, "jm_labels", []string{"run_id", "position", "type", "ref", "label", "spendable"}, rows, `
		INSERT INTO jm_labels (run_id, position, type, ref, label, spendable)
		SELECT run_id, position, type, ref, label, spendable FROM jm_labels_import
		ON CONFLICT (run_id, position) DO UPDATE SET
			type = EXCLUDED.type,
			ref = EXCLUDED.ref,
			label = EXCLUDED.label,
			spendable = EXCLUDED.spendable;`)
	if err != nil {
		return err
	}
	r.logger.Info("exported labels to postgres", "run_id", r.runID, "labels", len(rows))
	return nil
}

// copyUpsert loads rows into a temporary copy of table and runs upsert from it.
func (r *ExportRepository) copyUpsert(ctx context.Context, table string, columns []string, rows [][]interface{}, upsert string) error {
	if len(rows) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // no-op after Commit

	tempTable := table + "_import"
	if _, err := txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTable+` (LIKE `+table+` INCLUDING DEFAULTS) ON COMMIT DROP;`); err != nil {
		return fmt.Errorf("failed to create staging table for %s: %w", table, err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(tempTable, columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare COPY into %s: %w", tempTable, err)
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to COPY row into %s: %w", tempTable, err)
		}
	}
	// Flush the buffered COPY data.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("failed to flush COPY into %s: %w", tempTable, err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	if _, err := txn.ExecContext(ctx, upsert); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", table, err)
	}
	return txn.Commit()
}
