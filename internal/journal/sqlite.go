package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"reshape/internal/operation"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates or opens a journal database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			batch_id TEXT,
			type TEXT,
			selector_name TEXT,
			selector_file TEXT,
			success INTEGER,
			error TEXT,
			error_kind TEXT,
			affected_files JSON,
			result JSON,
			created_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_batch ON operations(batch_id);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_created ON operations(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, batchID string, res *operation.Result) (string, error) {
	affected, err := json.Marshal(res.AffectedFiles)
	if err != nil {
		return "", fmt.Errorf("failed to marshal affected files: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (id, batch_id, type, selector_name, selector_file, success, error, error_kind, affected_files, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, batchID, string(res.Operation.Type), res.Operation.Selector.Name, res.Operation.Selector.FilePath,
		res.Success, res.Error, string(res.ErrorKind), string(affected), string(raw), s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to record operation: %w", err)
	}
	return id, nil
}

const selectEntries = `
	SELECT id, batch_id, type, selector_name, selector_file, success, error, error_kind, affected_files, result, created_at
	FROM operations`

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectEntries+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SQLiteStore) Batch(ctx context.Context, batchID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+` WHERE batch_id = ? ORDER BY created_at ASC, rowid ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			typ, kind string
			affected  string
			raw       string
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &typ, &e.SelectorName, &e.SelectorFile, &e.Success, &e.Error, &kind, &affected, &raw, &created); err != nil {
			return nil, err
		}
		e.Type = operation.Type(typ)
		e.ErrorKind = operation.ErrorKind(kind)
		e.CreatedAt = time.Unix(0, created)
		if err := json.Unmarshal([]byte(affected), &e.AffectedFiles); err != nil {
			return nil, fmt.Errorf("failed to decode affected files of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
