package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_VersionsAndCommit(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(MemoryDSN)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	ver, err := store.NextVersion(ctx, "2026-03-14")
	if err != nil {
		t.Fatalf("NextVersion() error = %v", err)
	}
	if ver != 1 {
		t.Errorf("NextVersion() on empty table = %d, want 1", ver)
	}

	stamp := Stamp{DateAdd: "2026-03-14", Version: 1, RunID: "run-1"}
	records := []Record{
		{Stamp: stamp, Key: "https://hh.ru/vacancy/1", Fields: map[string]any{"title": "Go", "firm": "Ромашка"}},
		{Stamp: stamp, Key: "https://hh.ru/vacancy/2", Fields: map[string]any{"title": "Rust"}},
		{Stamp: stamp, Key: "https://hh.ru/vacancy/1", Fields: map[string]any{"title": "Go again"}},
	}
	if err := store.Commit(ctx, records); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	n, err := store.Count(ctx, "2026-03-14", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("stored %d rows, want 2 (duplicate key ignored)", n)
	}

	ver, err = store.NextVersion(ctx, "2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if ver != 2 {
		t.Errorf("NextVersion() after run 1 = %d, want 2", ver)
	}
	if ver, _ := store.NextVersion(ctx, "2026-03-15"); ver != 1 {
		t.Errorf("NextVersion() for a new day = %d, want 1", ver)
	}

	var firm string
	err = store.db.QueryRowContext(ctx, `SELECT firm FROM vacancies WHERE url = ?`, "https://hh.ru/vacancy/1").Scan(&firm)
	if err != nil {
		t.Fatal(err)
	}
	if firm != "Ромашка" {
		t.Errorf("firm = %q, want Ромашка", firm)
	}
}

func TestSQLiteStore_WithBatcher(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "facetcrawl.db")

	for run := 1; run <= 2; run++ {
		store, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		b, err := NewBatcher(ctx, store, WithFlushSize(2), WithClock(fixedClock), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("NewBatcher() error = %v", err)
		}
		if b.Stamp().Version != run {
			t.Errorf("run %d got version %d", run, b.Stamp().Version)
		}
		for _, k := range []string{"a", "b", "c"} {
			if err := b.Submit(ctx, testItem{key: k}); err != nil {
				t.Fatal(err)
			}
		}
		if err := b.Close(ctx); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("FACETCRAWL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("FACETCRAWL_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	store, err := OpenPostgres(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	day := "1999-01-01"
	ver, err := store.NextVersion(ctx, day)
	if err != nil {
		t.Fatalf("NextVersion() error = %v", err)
	}
	stamp := Stamp{DateAdd: day, Version: ver, RunID: "6f1c5a8e-7a43-4d8e-9d55-1c0b8a57a001"}
	records := []Record{
		{Stamp: stamp, Key: "https://hh.ru/vacancy/1", Fields: map[string]any{"title": "Go"}},
		{Stamp: stamp, Key: "https://hh.ru/vacancy/1", Fields: map[string]any{"title": "Go"}},
	}
	if err := store.Commit(ctx, records); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	next, err := store.NextVersion(ctx, day)
	if err != nil {
		t.Fatal(err)
	}
	if next != ver+1 {
		t.Errorf("NextVersion() = %d, want %d", next, ver+1)
	}
}
