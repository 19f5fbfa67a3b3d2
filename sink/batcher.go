package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultFlushSize is the number of records buffered before a commit.
const DefaultFlushSize = 1000

// DateLayout is the format of Stamp.DateAdd.
const DateLayout = "2006-01-02"

// Option configures a Batcher.
type Option func(*Batcher)

// WithLogger sets the logger used for flush events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithFlushSize sets how many records are buffered before a commit.
// Values below 1 keep the default.
func WithFlushSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.flushSize = n
		}
	}
}

// WithClock overrides the clock used to stamp the run's day.
func WithClock(now func() time.Time) Option {
	return func(b *Batcher) {
		if now != nil {
			b.now = now
		}
	}
}

// Batcher is a Sink that stamps every item with the run's day, version and
// ID, buffers the records and commits them to a Store in batches.
// It is safe for concurrent use.
type Batcher struct {
	store     Store
	logger    *slog.Logger
	flushSize int
	now       func() time.Time

	stamp Stamp

	mu      sync.Mutex
	buf     []Record
	closed  bool
	flushes int

	committed atomic.Int64
	unsaved   atomic.Int64
}

var _ Sink = (*Batcher)(nil)

// NewBatcher opens a batch pipeline on store. The run version is computed
// once here, so every record of the run carries the same stamp.
func NewBatcher(ctx context.Context, store Store, opts ...Option) (*Batcher, error) {
	b := &Batcher{
		store:     store,
		logger:    slog.Default(),
		flushSize: DefaultFlushSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	day := b.now().UTC().Format(DateLayout)
	ver, err := store.NextVersion(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("compute run version for %s: %w", day, err)
	}
	b.stamp = Stamp{DateAdd: day, Version: ver, RunID: uuid.NewString()}
	b.buf = make([]Record, 0, b.flushSize)

	b.logger.Info("sink opened", "date_add", day, "ver", ver, "run_id", b.stamp.RunID)
	return b, nil
}

// Stamp returns the stamp applied to this run's records.
func (b *Batcher) Stamp() Stamp { return b.stamp }

// Committed returns the number of records handed to the store successfully.
func (b *Batcher) Committed() int64 { return b.committed.Load() }

// Unsaved returns the number of accepted records lost to failed commits.
func (b *Batcher) Unsaved() int64 { return b.unsaved.Load() }

// Submit buffers item and commits the buffer once it reaches the flush size.
func (b *Batcher) Submit(ctx context.Context, item Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.buf = append(b.buf, Record{Stamp: b.stamp, Key: item.Key(), Fields: item.Fields()})
	if len(b.buf) < b.flushSize {
		return nil
	}
	return b.flushLocked(ctx)
}

// Flush commits whatever is buffered.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return b.flushLocked(ctx)
}

// flushLocked commits the buffer. A failed batch is dropped and its error
// returned. Must be called with mu held.
func (b *Batcher) flushLocked(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	b.buf = make([]Record, 0, b.flushSize)

	if err := b.store.Commit(ctx, batch); err != nil {
		b.unsaved.Add(int64(len(batch)))
		b.logger.Error("sink flush failed", "items", len(batch), "ver", b.stamp.Version, "error", err)
		return fmt.Errorf("commit %d records: %w", len(batch), err)
	}
	b.flushes++
	b.committed.Add(int64(len(batch)))
	b.logger.Info("sink flushed",
		"items", len(batch),
		"date_add", b.stamp.DateAdd,
		"ver", b.stamp.Version,
		"flush", b.flushes,
	)
	return nil
}

// Close commits the remaining buffer and closes the store. It is idempotent.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.flushLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := b.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close batcher: %w", errors.Join(errs...))
	}
	return nil
}
