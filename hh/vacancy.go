package hh

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/sink"
	"github.com/lukemcguire/facetcrawl/urlutil"
)

// Vacancy detail selectors.
const (
	titleSelector   = "h1.header"
	salarySelector  = "p.vacancy-salary"
	firmSelector    = ".vacancy-company-name span"
	sectionSelector = ".vacancy-section"
)

// ErrNoDescription is returned when a vacancy page has no description section.
var ErrNoDescription = errors.New("vacancy description section not found")

// Vacancy is the record extracted from one vacancy detail page.
type Vacancy struct {
	Title       string `json:"title"`
	Salary      string `json:"salary"`
	Firm        string `json:"firm"`
	Place       string `json:"place"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

var _ sink.Item = (*Vacancy)(nil)

// Key identifies the vacancy by its canonical URL.
func (v *Vacancy) Key() string {
	if canonical, err := urlutil.CanonicalItemURL(v.URL); err == nil {
		return canonical
	}
	return v.URL
}

// Fields returns the vacancy as a flat column map.
func (v *Vacancy) Fields() map[string]any {
	return map[string]any{
		"title":       v.Title,
		"salary":      v.Salary,
		"firm":        v.Firm,
		"place":       v.Place,
		"url":         v.URL,
		"description": v.Description,
	}
}

// ParseVacancy extracts a Vacancy from a detail page fetched for listing.
// The place comes from the listing row annotation, as the detail page does not
// render it consistently.
func ParseVacancy(r io.Reader, listing partition.Listing) (*Vacancy, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse vacancy page %s: %w", listing.URL, err)
	}

	section := doc.Find(sectionSelector).First()
	if section.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", listing.URL, ErrNoDescription)
	}

	return &Vacancy{
		Title:       CleanText(doc.Find(titleSelector).First().Text()),
		Salary:      CleanText(doc.Find(salarySelector).First().Text()),
		Firm:        CleanText(doc.Find(firmSelector).First().Text()),
		Place:       listing.Annotations[AnnotationPlace],
		URL:         listing.URL,
		Description: CleanText(sectionText(section.Nodes[0])),
	}, nil
}

// sectionText joins the text nodes under n with newlines, skipping style and
// script content.
func sectionText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			parts = append(parts, node.Data)
			return
		case html.ElementNode:
			if node.Data == "style" || node.Data == "script" {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

// Parser adapts the hh.ru page parsers to the crawler's parser interfaces.
type Parser struct{}

// ParseSearchPage implements crawler.SearchParser.
func (Parser) ParseSearchPage(r io.Reader, pageURL string) (*partition.SearchPage, error) {
	u, err := parseBase(pageURL)
	if err != nil {
		return nil, err
	}
	return ParseSearchPage(r, u)
}

// ParseRecord implements crawler.RecordParser.
func (Parser) ParseRecord(r io.Reader, listing partition.Listing) (sink.Item, error) {
	v, err := ParseVacancy(r, listing)
	if err != nil {
		return nil, err
	}
	return v, nil
}
