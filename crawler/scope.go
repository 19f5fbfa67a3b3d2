package crawler

import (
	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/urlutil"
)

// inScope reports whether link may be followed from a crawl of host.
// Subdomains of host are in scope.
func inScope(link, host string) bool {
	return urlutil.IsHTTPScheme(link) && urlutil.IsSameDomain(link, host)
}

// scopePage removes the links of page that leave host: listings are dropped,
// facet options lose their link and so cannot become child queries, and an
// off-host next link ends pagination. It returns the number of listings
// dropped. An empty host keeps everything.
func scopePage(page *partition.SearchPage, host string) int {
	if page == nil || host == "" {
		return 0
	}

	kept := page.Listings[:0:0]
	for _, l := range page.Listings {
		if inScope(l.URL, host) {
			kept = append(kept, l)
		}
	}
	dropped := len(page.Listings) - len(kept)
	if dropped > 0 {
		page.Listings = kept
	}

	for gi, group := range page.Facets {
		var opts []partition.FacetOption
		for oi, opt := range group.Options {
			if opt.Link == "" || inScope(opt.Link, host) {
				continue
			}
			if opts == nil {
				opts = append([]partition.FacetOption(nil), group.Options...)
			}
			opts[oi].Link = ""
		}
		if opts != nil {
			page.Facets[gi].Options = opts
		}
	}

	if page.Next != "" && !inScope(page.Next, host) {
		page.Next = ""
	}
	return dropped
}
