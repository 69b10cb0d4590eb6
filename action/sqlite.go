package action

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tbxark/actionblock/types"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records, preferences and conversation state in a
// local SQLite file so completed blocks and their transcript survive a reload.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ RecordStore = (*SQLiteStore)(nil)
	_ Preferences = (*SQLiteStore)(nil)
)

func OpenSQLite(path string) (*SQLiteStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS action_records (
  record_key TEXT PRIMARY KEY,
  block_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  created_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_action_records_created ON action_records(created_at_unix_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS preferences (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS conversation_state (
  state_key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key types.InstanceKey) (*types.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT record_key, block_type, payload, summary, created_at_unix_ms
FROM action_records
WHERE record_key = ?
`, string(key))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec *types.Record) (bool, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO action_records (record_key, block_type, payload, summary, created_at_unix_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(record_key) DO NOTHING
`, string(rec.Key), string(rec.BlockType), string(rec.Payload), rec.Summary, created.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, fn func(rec *types.Record) bool) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT record_key, block_type, payload, summary, created_at_unix_ms
FROM action_records
ORDER BY created_at_unix_ms DESC, rowid DESC
`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	var recs []*types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, rec := range recs {
		if !fn(rec) {
			break
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*types.Record, error) {
	var (
		key, blockType, payload, summary string
		createdMs                        int64
	)
	if err := row.Scan(&key, &blockType, &payload, &summary, &createdMs); err != nil {
		return nil, err
	}
	return &types.Record{
		Key:       types.InstanceKey(key),
		BlockType: types.BlockType(blockType),
		Payload:   []byte(payload),
		Summary:   summary,
		CreatedAt: time.UnixMilli(createdMs).UTC(),
	}, nil
}

func (s *SQLiteStore) GetPreference(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetPreference(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO preferences (name, value, updated_at_unix_ms)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at_unix_ms = excluded.updated_at_unix_ms
`, name, value, time.Now().UnixMilli())
	return err
}

// GetState returns the raw value stored under key.
func (s *SQLiteStore) GetState(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM conversation_state WHERE state_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversation_state (state_key, value, updated_at_unix_ms)
VALUES (?, ?, ?)
ON CONFLICT(state_key) DO UPDATE SET value = excluded.value, updated_at_unix_ms = excluded.updated_at_unix_ms
`, key, value, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE state_key = ?`, key)
	return err
}
