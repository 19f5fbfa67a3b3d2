package partition

import "sync/atomic"

// CrawlStats holds the crawl-wide counters used for the loss estimate.
// All methods are safe for concurrent use; each update is one atomic operation.
type CrawlStats struct {
	maxObserved  atomic.Int64
	totalEmitted atomic.Int64
}

// NewCrawlStats returns zeroed counters.
func NewCrawlStats() *CrawlStats {
	return &CrawlStats{}
}

// RecordObserved raises the maximum observed single-query count to count.
func (s *CrawlStats) RecordObserved(count int) {
	c := int64(count)
	for {
		cur := s.maxObserved.Load()
		if c <= cur {
			return
		}
		if s.maxObserved.CompareAndSwap(cur, c) {
			return
		}
	}
}

// RecordEmitted adds n to the number of emitted records.
func (s *CrawlStats) RecordEmitted(n int) {
	if n <= 0 {
		return
	}
	s.totalEmitted.Add(int64(n))
}

// MaxObserved returns the largest count recorded so far.
func (s *CrawlStats) MaxObserved() int64 { return s.maxObserved.Load() }

// TotalEmitted returns the number of records emitted so far.
func (s *CrawlStats) TotalEmitted() int64 { return s.totalEmitted.Load() }

// LossEstimate returns max observed minus total emitted. It is only meaningful
// once the crawl has drained and may be negative before that, or when
// approximate splits emitted duplicates.
func (s *CrawlStats) LossEstimate() int64 {
	return s.maxObserved.Load() - s.totalEmitted.Load()
}
