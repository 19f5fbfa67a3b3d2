package partition

// PartitionTask is one unit of partitioning work: a query, the facet names
// still eligible to split on (in priority order), the result count the parent
// page reported for this query, and the depth below the root.
//
// Every child carries the parent's remaining facets minus the facet it was
// split on, so depth never exceeds the number of facets the root started with.
type PartitionTask struct {
	query         Query
	remaining     []string
	observedTotal int
	depth         int
}

// NewRootTask seeds a crawl: facets is the ordered list of eligible facet
// names. Duplicate names are dropped.
func NewRootTask(query Query, facets []string) PartitionTask {
	seen := make(map[string]bool, len(facets))
	remaining := make([]string, 0, len(facets))
	for _, f := range facets {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		remaining = append(remaining, f)
	}
	return PartitionTask{query: query, remaining: remaining}
}

// Query returns the task's query.
func (t PartitionTask) Query() Query { return t.query }

// RemainingFacets returns a copy of the facet names still eligible, in priority order.
func (t PartitionTask) RemainingFacets() []string {
	out := make([]string, len(t.remaining))
	copy(out, t.remaining)
	return out
}

// HasRemaining reports whether any facet is left to split on.
func (t PartitionTask) HasRemaining() bool { return len(t.remaining) > 0 }

// ObservedTotal is the count the parent page reported for this query's option,
// zero for the root task.
func (t PartitionTask) ObservedTotal() int { return t.observedTotal }

// Depth is the number of splits between the root and this task.
func (t PartitionTask) Depth() int { return t.depth }

// child builds the task for option of facet.
func (t PartitionTask) child(facet string, option FacetOption) PartitionTask {
	remaining := make([]string, 0, len(t.remaining))
	for _, f := range t.remaining {
		if f != facet {
			remaining = append(remaining, f)
		}
	}
	return PartitionTask{
		query:         t.query.With(facet, option),
		remaining:     remaining,
		observedTotal: option.ReportedCount,
		depth:         t.depth + 1,
	}
}
