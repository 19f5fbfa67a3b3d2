package sink

import (
	"context"
	"errors"
	"fmt"
)

// Deduper forwards each item key to the wrapped Sink at most once. Approximate
// splits may place one listing under several sibling queries; the Deduper
// keeps those repeats out of the store.
type Deduper struct {
	next Sink
	keys *keySet
}

var _ Sink = (*Deduper)(nil)

// NewDeduper wraps next with a bloom filter sized for the defaults.
func NewDeduper(next Sink) (*Deduper, error) {
	return NewDeduperSized(next, DefaultExpectedKeys, DefaultFalsePositive)
}

// NewDeduperSized wraps next with a bloom filter sized for expected keys at
// the given false positive rate.
func NewDeduperSized(next Sink, expected uint, fpRate float64) (*Deduper, error) {
	keys, err := newKeySet(expected, fpRate)
	if err != nil {
		return nil, fmt.Errorf("open dedup filter: %w", err)
	}
	return &Deduper{next: next, keys: keys}, nil
}

// Submit forwards item unless its key was seen before, in which case it
// returns ErrDuplicate.
func (d *Deduper) Submit(ctx context.Context, item Item) error {
	if !d.keys.addIfNew(item.Key()) {
		return fmt.Errorf("%w: %s", ErrDuplicate, item.Key())
	}
	return d.next.Submit(ctx, item)
}

// Close closes the wrapped Sink and releases the filter.
func (d *Deduper) Close(ctx context.Context) error {
	var errs []error
	if err := d.next.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.keys.close(); err != nil {
		errs = append(errs, fmt.Errorf("close dedup filter: %w", err))
	}
	return errors.Join(errs...)
}
