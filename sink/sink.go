// Package sink receives extracted items and persists them in batches.
package sink

import (
	"context"
	"errors"
)

// Submit errors.
var (
	// ErrClosed is returned by Submit after the sink has been closed.
	ErrClosed = errors.New("sink closed")
	// ErrDuplicate is returned by a deduplicating sink for an item whose key
	// was already submitted. The item was not stored.
	ErrDuplicate = errors.New("duplicate item")
)

// Item is one extracted record. Key is its stable identity, used for
// deduplication and as the unique column of record stores.
type Item interface {
	Key() string
	Fields() map[string]any
}

// Sink accepts items from concurrent producers.
type Sink interface {
	Submit(ctx context.Context, item Item) error
	Close(ctx context.Context) error
}

// Stamp identifies the crawl run a record was written by.
type Stamp struct {
	DateAdd string // UTC day, 2006-01-02
	Version int    // 1 + highest version already stored for DateAdd
	RunID   string
}

// Record is a stamped item ready to commit.
type Record struct {
	Stamp
	Key    string
	Fields map[string]any
}

// Store is the persistent side of a Batcher.
type Store interface {
	// NextVersion returns 1 + the highest version stored for day.
	NextVersion(ctx context.Context, day string) (int, error)
	// Commit writes records atomically. Records whose (day, version, key)
	// already exist are skipped.
	Commit(ctx context.Context, records []Record) error
	Close() error
}

// StringField returns fields[name] when it holds a string.
func StringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}
