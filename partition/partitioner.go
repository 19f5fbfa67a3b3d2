package partition

import (
	"errors"
	"fmt"
)

// Outcome is the kind of decision the Partitioner reached for a task.
type Outcome int

const (
	// OutcomeWalk hands the query to the page walker.
	OutcomeWalk Outcome = iota
	// OutcomeExactSplit splits on a facet whose option counts add up to the total.
	OutcomeExactSplit
	// OutcomeApproximateSplit splits on a facet without count confirmation.
	OutcomeApproximateSplit
	// OutcomeAbort abandons the branch; Decision.Abort carries the lost count.
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWalk:
		return "walk"
	case OutcomeExactSplit:
		return "exact_split"
	case OutcomeApproximateSplit:
		return "approximate_split"
	case OutcomeAbort:
		return "abort"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AbortReason classifies why a branch was abandoned.
type AbortReason string

const (
	ReasonOverCapacity      AbortReason = "over_capacity"
	ReasonInventoryMismatch AbortReason = "inventory_mismatch"
	ReasonFetchFailure      AbortReason = "fetch_failure"
	ReasonMalformedCount    AbortReason = "malformed_count"
)

// Abort describes an abandoned branch.
type Abort struct {
	Reason AbortReason
	Lost   int   // Listings the branch is believed to hold
	Known  bool  // false when the size of the loss is unknown
	Err    error // Underlying fetch or parse error, if any
}

// Decision is the result of evaluating one PartitionTask.
type Decision struct {
	Task     PartitionTask
	Outcome  Outcome
	Count    int             // Total the fetched page reported
	Facet    string          // Facet split on, for split outcomes
	Children []PartitionTask // One per eligible option, for split outcomes
	Abort    *Abort          // Set for OutcomeAbort
}

// Limits is the walkable page window of the search service.
type Limits struct {
	MaxPages     int // Pages a single query can walk
	ItemsPerPage int // Listings per result page
}

// Capacity is MaxPages × ItemsPerPage.
func (l Limits) Capacity() int {
	return l.MaxPages * l.ItemsPerPage
}

// Threshold is 95% of Capacity, the largest count admitted for walking.
func (l Limits) Threshold() float64 {
	return 0.95 * float64(l.Capacity())
}

// Fits reports whether count ≤ Threshold. Integer arithmetic keeps the
// boundary exact.
func (l Limits) Fits(count int) bool {
	return int64(count)*100 <= int64(l.Capacity())*95
}

// Partitioner decides how each fetched query result is handled. It is safe for
// concurrent use; its only mutable state is the shared CrawlStats.
type Partitioner struct {
	limits Limits
	stats  *CrawlStats
}

// NewPartitioner creates a Partitioner for the given window. A nil stats gets
// a private CrawlStats.
func NewPartitioner(limits Limits, stats *CrawlStats) *Partitioner {
	if stats == nil {
		stats = NewCrawlStats()
	}
	return &Partitioner{limits: limits, stats: stats}
}

// Limits returns the window the Partitioner admits against.
func (p *Partitioner) Limits() Limits { return p.limits }

// Stats returns the counters the Partitioner records into.
func (p *Partitioner) Stats() *CrawlStats { return p.stats }

// Evaluate applies the partitioning rules to a fetched result of task with
// reported total count and the facet inventory visible on the page.
//
// Rules, in order: walk when count fits the window; abort when no facets are
// left; exact split on the first remaining facet whose eligible option counts
// sum to count; approximate split on the first remaining facet present in the
// inventory; otherwise abort.
func (p *Partitioner) Evaluate(task PartitionTask, count int, inv FacetInventory) Decision {
	d := Decision{Task: task, Count: count}
	if count < 0 {
		return p.malformed(d, fmt.Errorf("%w: negative total %d", ErrMalformedCount, count))
	}

	p.stats.RecordObserved(count)

	if p.limits.Fits(count) {
		d.Outcome = OutcomeWalk
		return d
	}

	if !task.HasRemaining() {
		d.Outcome = OutcomeAbort
		d.Abort = &Abort{Reason: ReasonOverCapacity, Lost: count, Known: true}
		return d
	}

	var fallback *FacetGroup
	for _, name := range task.remaining {
		group, ok := inv.Group(name)
		if !ok || len(group.EligibleOptions()) == 0 {
			continue
		}
		if group.ReportedSum() == count {
			return p.split(d, OutcomeExactSplit, group)
		}
		if fallback == nil {
			fallback = &group
		}
	}

	if fallback != nil {
		return p.split(d, OutcomeApproximateSplit, *fallback)
	}

	d.Outcome = OutcomeAbort
	d.Abort = &Abort{Reason: ReasonInventoryMismatch, Lost: count, Known: true}
	return d
}

// EvaluatePage evaluates a parsed search page, turning an unparseable total
// into a MalformedCount abort.
func (p *Partitioner) EvaluatePage(task PartitionTask, page *SearchPage) Decision {
	if page == nil {
		return p.Fail(task, errors.New("nil search page"))
	}
	if page.TotalErr != nil {
		d := Decision{Task: task}
		err := page.TotalErr
		if !errors.Is(err, ErrMalformedCount) {
			err = fmt.Errorf("%w: %w", ErrMalformedCount, err)
		}
		return p.malformed(d, err)
	}
	return p.Evaluate(task, page.Total, page.Facets)
}

// Fail records a fetch failure for task. The lost count is the total the
// parent page reported for the task's option; it is unknown for the root.
func (p *Partitioner) Fail(task PartitionTask, err error) Decision {
	return Decision{
		Task:    task,
		Outcome: OutcomeAbort,
		Abort: &Abort{
			Reason: ReasonFetchFailure,
			Lost:   task.ObservedTotal(),
			Known:  task.Depth() > 0,
			Err:    err,
		},
	}
}

func (p *Partitioner) malformed(d Decision, err error) Decision {
	d.Outcome = OutcomeAbort
	d.Abort = &Abort{Reason: ReasonMalformedCount, Lost: 0, Known: false, Err: err}
	return d
}

func (p *Partitioner) split(d Decision, outcome Outcome, group FacetGroup) Decision {
	options := group.EligibleOptions()
	d.Outcome = outcome
	d.Facet = group.Name
	d.Children = make([]PartitionTask, 0, len(options))
	for _, opt := range options {
		d.Children = append(d.Children, d.Task.child(group.Name, opt))
	}
	return d
}
