package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS vacancies (
	id BIGSERIAL PRIMARY KEY,
	date_add DATE NOT NULL,
	ver INTEGER NOT NULL,
	run_id UUID NOT NULL,
	url TEXT NOT NULL,
	title TEXT,
	salary TEXT,
	firm TEXT,
	place TEXT,
	description TEXT,
	fields_json JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (date_add, ver, url)
)`,
	`CREATE INDEX IF NOT EXISTS idx_vacancies_day_ver ON vacancies (date_add, ver)`,
}

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and ensures the vacancies table exists.
// maxConns below 1 falls back to 2.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// NextVersion returns 1 + the highest version stored for day.
func (s *PostgresStore) NextVersion(ctx context.Context, day string) (int, error) {
	var ver int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(ver), 0) + 1 FROM vacancies WHERE date_add = $1::date`, day,
	).Scan(&ver)
	if err != nil {
		return 0, fmt.Errorf("query max version: %w", err)
	}
	return ver, nil
}

// Commit sends records as one batch inside a transaction.
func (s *PostgresStore) Commit(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range records {
		rw, err := newRow(r)
		if err != nil {
			return err
		}
		b.Queue(`
			INSERT INTO vacancies
			(date_add, ver, run_id, url, title, salary, firm, place, description, fields_json)
			VALUES ($1::date, $2, $3::uuid, $4, $5, $6, $7, $8, $9, $10::jsonb)
			ON CONFLICT (date_add, ver, url) DO NOTHING`,
			rw.args()...,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, b)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
