package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/freewebtopdf/uerename/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	project_root TEXT NOT NULL,
	final_root TEXT NOT NULL,
	project_name TEXT NOT NULL,
	old_name TEXT NOT NULL,
	new_name TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	operation_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_final_root ON sessions(final_root);
CREATE INDEX IF NOT EXISTS idx_sessions_project_root ON sessions(project_root);
`

// SQLiteStore keeps history in a SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path. ":memory:" is accepted.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, summary domain.SessionSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, kind, project_root, final_root, project_name,
			old_name, new_name, started_at, finished_at, outcome, operation_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.SessionID,
		string(summary.Kind),
		filepath.Clean(summary.ProjectRoot),
		filepath.Clean(summary.FinalRoot),
		summary.ProjectName,
		summary.OldName,
		summary.NewName,
		summary.StartedAt.UnixNano(),
		summary.FinishedAt.UnixNano(),
		string(summary.Outcome),
		summary.OperationCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastName(ctx context.Context, root string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, project_name, new_name FROM sessions
		WHERE final_root = ? AND outcome = ?
		ORDER BY seq DESC LIMIT 1`,
		filepath.Clean(root), string(domain.OutcomeApplied),
	)

	var e domain.SessionSummary
	var kind string
	err := row.Scan(&kind, &e.ProjectName, &e.NewName)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query history: %w", err)
	}
	e.Kind = domain.SessionKind(kind)
	return nameAfter(e), true, nil
}

func (s *SQLiteStore) Entries(ctx context.Context, root string) ([]domain.SessionSummary, error) {
	query := `SELECT session_id, kind, project_root, final_root, project_name, old_name, new_name,
		started_at, finished_at, outcome, operation_count FROM sessions`
	var args []any
	if root != "" {
		query += ` WHERE project_root = ? OR final_root = ?`
		clean := filepath.Clean(root)
		args = append(args, clean, clean)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []domain.SessionSummary{}
	for rows.Next() {
		var e domain.SessionSummary
		var kind, outcome string
		var started, finished int64
		if err := rows.Scan(&e.SessionID, &kind, &e.ProjectRoot, &e.FinalRoot, &e.ProjectName,
			&e.OldName, &e.NewName, &started, &finished, &outcome, &e.OperationCount); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Kind = domain.SessionKind(kind)
		e.Outcome = domain.SessionOutcome(outcome)
		e.StartedAt = time.Unix(0, started).UTC()
		e.FinishedAt = time.Unix(0, finished).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) domain.HealthStatus {
	if err := s.db.PingContext(ctx); err != nil {
		return unhealthy("History database is unreachable", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return unhealthy("History database query failed", err)
	}
	return healthy("History database is operational", map[string]any{
		"backend": BackendSQLite,
		"path":    s.path,
		"entries": count,
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
