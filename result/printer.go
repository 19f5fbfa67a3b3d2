package result

import (
	"fmt"
	"io"
	"sort"
)

// PrintReport writes a plain-text crawl summary followed by the abandoned
// branches to w.
func PrintReport(w io.Writer, r *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Emitted %d listings in %s (%d pages, %d failed)\n",
		r.Emitted, r.Duration.Round(1e6), r.Pages, r.FailedPages)
	writef("Largest reported total: %d\n", r.MaxObserved)
	writef("Loss estimate: %d\n", r.LossEstimate)
	if r.Duplicates > 0 {
		writef("Duplicates dropped: %d\n", r.Duplicates)
	}
	if r.Unsaved > 0 {
		writef("Lost to failed sink commits: %d\n", r.Unsaved)
	}
	if r.Throttles > 0 {
		writef("Throttled by the host %d times, final rate %d req/s\n", r.Throttles, r.FinalRate)
	}
	writef("Walks: %d, exact splits: %d, approximate splits: %d, max depth: %d\n",
		r.Walks, r.ExactSplits, r.ApproxSplits, r.MaxDepth)
	if r.Canceled {
		writef("Crawl was canceled before the tree was exhausted\n")
	}

	if len(r.Aborts) == 0 {
		writef("No branches abandoned\n")
		return
	}

	byReason := r.AbortsByReason()
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	writef("\nAbandoned branches (%d, %d listings known lost, %d of unknown size):\n",
		len(r.Aborts), r.KnownLoss(), r.UnknownAborts())
	for _, reason := range reasons {
		writef("  %s: %d\n", reason, byReason[reason])
	}
	writef("\n")
	for i, a := range r.Aborts {
		writef("  URL: %s\n", a.URL)
		writef("  Reason: %s\n", a.Reason)
		if a.Known {
			writef("  Lost: %d\n", a.Lost)
		} else {
			writef("  Lost: unknown\n")
		}
		if a.Error != "" {
			writef("  Error: %s (%s)\n", a.Error, FormatCategory(a.Category))
		}
		if i < len(r.Aborts)-1 {
			writef("\n")
		}
	}
}
