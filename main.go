// Package main provides the facetcrawl CLI entrypoint.
//
// facetcrawl collects every vacancy of an hh.ru search by splitting the search
// along its facets until each branch fits the page window the site will
// paginate through.
//
// Usage:
//
//	facetcrawl [flags] [start-url]
//	facetcrawl init
//	facetcrawl version
package main

func main() {
	Execute()
}
