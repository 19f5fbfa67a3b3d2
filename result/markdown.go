package result

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
)

// WriteMarkdown renders the report as a Markdown document with a summary
// table, an abort breakdown and the abandoned branch list.
func WriteMarkdown(w io.Writer, r *Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("facetcrawl report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + r.StartURL + "`"},
			{"Emitted", strconv.FormatInt(r.Emitted, 10)},
			{"Max observed total", strconv.FormatInt(r.MaxObserved, 10)},
			{"Loss estimate", strconv.FormatInt(r.LossEstimate, 10)},
			{"Duplicates dropped", strconv.FormatInt(r.Duplicates, 10)},
			{"Pages fetched", strconv.Itoa(r.Pages)},
			{"Walks", strconv.Itoa(r.Walks)},
			{"Exact splits", strconv.Itoa(r.ExactSplits)},
			{"Approximate splits", strconv.Itoa(r.ApproxSplits)},
			{"Max depth", strconv.Itoa(r.MaxDepth)},
			{"Unsaved listings", strconv.FormatInt(r.Unsaved, 10)},
			{"Throttled (429)", strconv.Itoa(r.Throttles)},
			{"Duration", r.Duration.Round(1e6).String()},
		},
	})
	md.PlainText("")

	switch {
	case r.Canceled:
		md.Warningf("Crawl was canceled; the listing set is partial.")
	case r.LossEstimate > 0:
		md.Warningf("An estimated %d listings were not collected.", r.LossEstimate)
	case len(r.Aborts) > 0:
		md.Note("Some branches were abandoned but the loss estimate is not positive.")
	case !r.Complete():
		md.Note("Approximate splits overlapped; completeness cannot be confirmed.")
	default:
		md.Tip("Every reported listing was collected.")
	}
	md.PlainText("")

	if len(r.Aborts) == 0 {
		return build(md)
	}

	md.H2("Abandoned branches")
	md.PlainText("")

	byReason := r.AbortsByReason()
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	summary := make([][]string, 0, len(reasons))
	for _, reason := range reasons {
		summary = append(summary, []string{reason, strconv.Itoa(byReason[reason])})
	}
	md.Table(markdown.TableSet{Header: []string{"Reason", "Count"}, Rows: summary})
	md.PlainText("")

	rows := make([][]string, 0, len(r.Aborts))
	for _, a := range r.Aborts {
		rows = append(rows, []string{
			"`" + a.URL + "`",
			a.Reason,
			lostLabel(a),
			strconv.Itoa(a.Depth),
			string(a.Category),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason", "Lost", "Depth", "Category"},
		Rows:   rows,
	})

	return build(md)
}

func build(md *markdown.Markdown) error {
	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}
	return nil
}

func lostLabel(a AbortRecord) string {
	if !a.Known {
		return "unknown"
	}
	return strconv.Itoa(a.Lost)
}
