package sink

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// Default bloom filter sizing for item keys.
const (
	DefaultExpectedKeys  = 500000
	DefaultFalsePositive = 0.001
)

// keySet is a bloom filter of item keys mirrored to a memory-mapped temp
// file. False positives drop a fresh item; there are no false negatives.
type keySet struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	pending   uint64 // keys added since the last sync
	syncEvery uint64
	lastErr   error
}

func newKeySet(expected uint, fpRate float64) (*keySet, error) {
	filter := bloom.NewWithEstimates(expected, fpRate)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "facetcrawl-keys-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}

	// MarshalBinary carries a header plus the bit set, so size the file to
	// the marshaled form rather than to Cap().
	if err := tmpFile.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}

	mapped, err := mmap.MapRegion(tmpFile, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}
	copy(mapped, data)

	return &keySet{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

// addIfNew reports whether key was absent, adding it in the same step.
func (s *keySet) addIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestOrAddString(key) {
		return false
	}
	s.pending++
	if s.pending >= s.syncEvery {
		if err := s.syncLocked(); err != nil {
			s.lastErr = err
		}
	}
	return true
}

func (s *keySet) syncLocked() error {
	data, err := s.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) <= len(s.mmap) {
		copy(s.mmap, data)
	}
	if err := s.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	s.pending = 0
	return nil
}

func (s *keySet) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.lastErr != nil {
		errs = append(errs, s.lastErr)
	}
	if s.mmap != nil {
		if s.pending > 0 {
			if err := s.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		s.mmap = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		s.file = nil
	}
	if s.tmpPath != "" {
		if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		s.tmpPath = ""
	}
	return errors.Join(errs...)
}
