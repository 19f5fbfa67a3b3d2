package crawler

import (
	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
)

// EventKind tells which job a CrawlEvent reports on.
type EventKind string

const (
	EventDecision EventKind = "decision" // a partition job was evaluated
	EventWalk     EventKind = "walk"     // a walk job finished
)

// CrawlEvent reports progress after one finished job.
type CrawlEvent struct {
	Kind          EventKind
	Outcome       partition.Outcome // for EventDecision
	Reason        partition.AbortReason
	URL           string
	Query         string
	Count         int // reported total for decisions, listings emitted for walks
	Depth         int
	Children      int
	Pages         int
	Emitted       int64
	MaxObserved   int64
	Pending       int
	Throttles     int // 429 responses so far
	Error         string
	ErrorCategory result.ErrorCategory
}
