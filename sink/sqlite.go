package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vacancies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date_add TEXT NOT NULL,
	ver INTEGER NOT NULL,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT,
	salary TEXT,
	firm TEXT,
	place TEXT,
	description TEXT,
	fields_json TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(date_add, ver, url)
);

CREATE INDEX IF NOT EXISTS idx_vacancies_day_ver ON vacancies(date_add, ver);
`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path. MemoryDSN opens an
// in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite has a single writer, and each :memory:
	// connection would otherwise see its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if path != MemoryDSN {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database location the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// NextVersion returns 1 + the highest version stored for day.
func (s *SQLiteStore) NextVersion(ctx context.Context, day string) (int, error) {
	var ver int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ver), 0) + 1 FROM vacancies WHERE date_add = ?`, day,
	).Scan(&ver)
	if err != nil {
		return 0, fmt.Errorf("query max version: %w", err)
	}
	return ver, nil
}

// Commit inserts records in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO vacancies
		(date_add, ver, run_id, url, title, salary, firm, place, description, fields_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		row, err := newRow(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row.args()...); err != nil {
			return fmt.Errorf("insert %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored rows for day and version.
func (s *SQLiteStore) Count(ctx context.Context, day string, ver int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vacancies WHERE date_add = ? AND ver = ?`, day, ver,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// row is the column form of a Record shared by the SQL stores.
type row struct {
	dateAdd     string
	ver         int
	runID       string
	url         string
	title       string
	salary      string
	firm        string
	place       string
	description string
	fieldsJSON  string
}

func newRow(r Record) (row, error) {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return row{}, fmt.Errorf("encode fields of %s: %w", r.Key, err)
	}
	return row{
		dateAdd:     r.DateAdd,
		ver:         r.Version,
		runID:       r.RunID,
		url:         r.Key,
		title:       StringField(r.Fields, "title"),
		salary:      StringField(r.Fields, "salary"),
		firm:        StringField(r.Fields, "firm"),
		place:       StringField(r.Fields, "place"),
		description: StringField(r.Fields, "description"),
		fieldsJSON:  string(fields),
	}, nil
}

func (r row) args() []any {
	return []any{
		r.dateAdd, r.ver, r.runID, r.url,
		r.title, r.salary, r.firm, r.place, r.description, r.fieldsJSON,
	}
}
