package partition

import "errors"

// ErrMalformedCount reports that a page's total result count could not be
// parsed. Parsers wrap it into SearchPage.TotalErr.
var ErrMalformedCount = errors.New("malformed result count")

// FacetOption is one value of a facet group as rendered on a result page.
type FacetOption struct {
	Label         string // Visible option label
	ReportedCount int    // Result count the service reports for the option
	Link          string // Absolute URL of the query restricted to this option
	Selected      bool   // Option is already applied to the current query
	Expander      bool   // "Show more" control rendered as an option
}

// Eligible reports whether the option can become a child query.
func (o FacetOption) Eligible() bool {
	return !o.Selected && !o.Expander && o.Link != ""
}

// FacetGroup is a named facet with its options in page order.
type FacetGroup struct {
	Name    string
	Options []FacetOption
}

// EligibleOptions returns the options that can become child queries.
func (g FacetGroup) EligibleOptions() []FacetOption {
	out := make([]FacetOption, 0, len(g.Options))
	for _, opt := range g.Options {
		if opt.Eligible() {
			out = append(out, opt)
		}
	}
	return out
}

// ReportedSum adds up the reported counts of the eligible options. An option
// without a link cannot become a child, so its listings would be out of reach
// of an exact split; leaving it out makes such a group at best approximate.
func (g FacetGroup) ReportedSum() int {
	sum := 0
	for _, opt := range g.EligibleOptions() {
		sum += opt.ReportedCount
	}
	return sum
}

// FacetInventory is the set of facet groups offered on one fetched page.
type FacetInventory []FacetGroup

// Group returns the group called name.
func (inv FacetInventory) Group(name string) (FacetGroup, bool) {
	for _, g := range inv {
		if g.Name == name {
			return g, true
		}
	}
	return FacetGroup{}, false
}

// Listing is one result row of a search page: the link to the item detail
// page plus contextual annotations taken from the row (e.g. "place").
type Listing struct {
	URL         string
	Annotations map[string]string
}

// SearchPage is the parsed form of one fetched result page.
type SearchPage struct {
	URL      string
	Total    int
	TotalErr error // non-nil when the reported total could not be parsed
	Facets   FacetInventory
	Listings []Listing
	Next     string // URL of the next result page, empty on the last page
}
