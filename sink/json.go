package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// JSONWriter is a Sink that streams items as one JSON array. Each element is
// the item's fields plus its "key". HTML escaping is off so Cyrillic text and
// URLs stay readable.
type JSONWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	enc    *json.Encoder
	count  int
	closed bool
}

var _ Sink = (*JSONWriter)(nil)

// NewJSONWriter writes to w. If w is also an io.Closer it is closed by Close.
func NewJSONWriter(w io.Writer) *JSONWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	jw := &JSONWriter{w: bw, enc: enc}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// Submit appends item to the array.
func (j *JSONWriter) Submit(_ context.Context, item Item) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	obj := make(map[string]any, len(item.Fields())+1)
	for k, v := range item.Fields() {
		obj[k] = v
	}
	obj["key"] = item.Key()

	sep := ",\n"
	if j.count == 0 {
		sep = "[\n"
	}
	if _, err := j.w.WriteString(sep); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	if err := j.enc.Encode(obj); err != nil {
		return fmt.Errorf("encode %s: %w", item.Key(), err)
	}
	j.count++
	return nil
}

// Count returns the number of items written.
func (j *JSONWriter) Count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Close terminates the array and flushes. An empty run writes "[]".
func (j *JSONWriter) Close(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	tail := "]\n"
	if j.count == 0 {
		tail = "[]\n"
	}
	var errs []error
	if _, err := j.w.WriteString(tail); err != nil {
		errs = append(errs, fmt.Errorf("write json: %w", err))
	}
	if err := j.w.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush json: %w", err))
	}
	if j.closer != nil {
		if err := j.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close json output: %w", err))
		}
	}
	return errors.Join(errs...)
}
