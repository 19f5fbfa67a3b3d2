package crawler

import (
	"io"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/sink"
)

// SearchParser turns a fetched result page into its count, facets, listings
// and next-page link.
type SearchParser interface {
	ParseSearchPage(r io.Reader, pageURL string) (*partition.SearchPage, error)
}

// RecordParser extracts the item of one listing's detail page.
type RecordParser interface {
	ParseRecord(r io.Reader, listing partition.Listing) (sink.Item, error)
}

// Parser is the site-specific half of the crawler.
type Parser interface {
	SearchParser
	RecordParser
}
