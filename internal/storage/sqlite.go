package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/clusterizer/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		source_key TEXT,
		summary TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_source_key ON runs(source_key);

	CREATE TABLE IF NOT EXISTS assignments (
		run_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		id_unico TEXT,
		client TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		umap_1 REAL NOT NULL,
		umap_2 REAL NOT NULL,
		ood INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, row_index),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_id_unico ON assignments(id_unico, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun persists the prediction summary and every assignment in one transaction.
// sourceKey identifies the input file for watched runs and may be empty.
func (s *SQLiteStorage) SaveRun(ctx context.Context, p *models.Prediction, sourceKey string) (*models.Run, error) {
	summaryJSON, err := json.Marshal(p.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, source_key, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.RunID, p.Source, nullString(sourceKey), string(summaryJSON), created,
	); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assignments (run_id, row_index, id_unico, client, cluster, umap_1, umap_2, ood, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, a := range p.Assignments {
		clientJSON, err := json.Marshal(a.Client)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal client: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.RunID, a.Row, nullString(a.Client.IDUnico), string(clientJSON),
			a.Cluster, a.UMAP1, a.UMAP2, a.OutOfDistribution, created,
		); err != nil {
			return nil, fmt.Errorf("failed to insert assignment row %d: %w", a.Row, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.Run{ID: p.RunID, Source: p.Source, SourceKey: sourceKey, Summary: p.Summary, CreatedAt: created}, nil
}

const runColumns = `id, source, COALESCE(source_key, ''), summary, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.Run, error) {
	var run models.Run
	var summaryJSON string
	if err := sc.Scan(&run.ID, &run.Source, &run.SourceKey, &summaryJSON, &run.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summaryJSON), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &run, nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// GetRunBySourceKey returns the most recent run recorded for a watched input file.
func (s *SQLiteStorage) GetRunBySourceKey(ctx context.Context, sourceKey string) (*models.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE source_key = ? ORDER BY created_at DESC LIMIT 1`, sourceKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run for source %s: %w", sourceKey, ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs newest first with offset and limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const assignmentColumns = `run_id, row_index, client, cluster, umap_1, umap_2, ood, created_at`

func scanAssignment(sc scanner) (*models.ClientAssignment, error) {
	var a models.ClientAssignment
	var clientJSON string
	if err := sc.Scan(&a.RunID, &a.Row, &clientJSON, &a.Cluster, &a.UMAP1, &a.UMAP2, &a.OOD, &a.AssignedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(clientJSON), &a.Client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &a, nil
}

// GetRunAssignments returns the assignments of a run ordered by input row.
func (s *SQLiteStorage) GetRunAssignments(ctx context.Context, runID string) ([]*models.ClientAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ClientAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetClientAssignment returns the latest assignment for a client identifier.
func (s *SQLiteStorage) GetClientAssignment(ctx context.Context, idUnico string) (*models.ClientAssignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id_unico = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, idUnico))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", idUnico, ErrNotFound)
	}
	return a, err
}

// DeleteRunsBefore removes runs created before cutoff along with their assignments
// and returns the deleted run IDs.
func (s *SQLiteStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := deleteRunTx(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	return ids, tx.Commit()
}

// DeleteRun removes a run and its assignments.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteRunTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteRunTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE run_id = ?`, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// CountRuns returns the total number of runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// CountAssignments returns the total number of stored assignments.
func (s *SQLiteStorage) CountAssignments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
