// Package result holds the outcome of a crawl and renders it for people and
// machines.
package result

import "time"

// AbortRecord describes one abandoned branch of the partition tree.
type AbortRecord struct {
	URL      string        `json:"url"`
	Query    string        `json:"query"`
	Reason   string        `json:"reason"`
	Lost     int           `json:"lost"`
	Known    bool          `json:"known"` // false when the size of the loss is unknown
	Depth    int           `json:"depth"`
	Category ErrorCategory `json:"category,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report is the complete outcome of a crawl.
type Report struct {
	StartURL      string        `json:"start_url"`
	Emitted       int64         `json:"emitted"`
	MaxObserved   int64         `json:"max_observed"`
	LossEstimate  int64         `json:"loss_estimate"`
	Duplicates    int64         `json:"duplicates"`
	Pages         int           `json:"pages"`
	FailedPages   int           `json:"failed_pages"`
	Walks         int           `json:"walks"`
	ExactSplits   int           `json:"exact_splits"`
	ApproxSplits  int           `json:"approximate_splits"`
	Aborts        []AbortRecord `json:"aborts"`
	MaxDepth      int           `json:"max_depth"`
	Duration      time.Duration `json:"duration_ns"`
	Canceled      bool          `json:"canceled"`
	ParseFailures int           `json:"parse_failures"`
	// Unsaved counts accepted listings lost to failed sink commits.
	Unsaved   int64 `json:"unsaved"`
	Throttles int   `json:"throttles"`  // 429 responses from the host
	FinalRate int   `json:"final_rate"` // requests per second at the end
}

// KnownLoss adds up the Lost counts of aborts with a known size.
func (r *Report) KnownLoss() int {
	n := 0
	for _, a := range r.Aborts {
		if a.Known {
			n += a.Lost
		}
	}
	return n
}

// UnknownAborts counts aborts whose loss could not be sized.
func (r *Report) UnknownAborts() int {
	n := 0
	for _, a := range r.Aborts {
		if !a.Known {
			n++
		}
	}
	return n
}

// Complete reports whether nothing is believed missing. A run that split
// approximately and then met repeated listings is never complete: the
// overlapping sibling counts say nothing about the listings no sibling held.
func (r *Report) Complete() bool {
	if r.ApproxSplits > 0 && r.Duplicates > 0 {
		return false
	}
	return r.LossEstimate <= 0 && len(r.Aborts) == 0 && !r.Canceled && r.Unsaved == 0
}

// RecordUnsaved folds n listings lost after emission into the totals.
func (r *Report) RecordUnsaved(n int64) {
	if n <= 0 {
		return
	}
	r.Unsaved += n
	r.Emitted -= n
	r.LossEstimate += n
}

// AbortsByReason groups abort counts by reason.
func (r *Report) AbortsByReason() map[string]int {
	out := make(map[string]int)
	for _, a := range r.Aborts {
		out[a.Reason]++
	}
	return out
}
