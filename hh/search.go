// Package hh parses hh.ru vacancy search and vacancy detail pages.
package hh

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/urlutil"
)

// Search page selectors.
const (
	totalSelector       = ".header.HH-SearchVacancyDropClusters-Header"
	groupSelector       = ".clusters-group"
	groupTitleSelector  = ".clusters-group-title"
	optionSelector      = "a.clusters-value"
	optionNameSelector  = ".clusters-value__name"
	optionCountSelector = ".clusters-value__count"
	selectedClass       = "clusters-value_selected"
	moreClass           = "clusters-list__item_more"
	rowSelector         = ".vacancy-serp-item"
	rowLinkSelector     = ".resume-search-item__name a"
	rowPlaceSelector    = "span.vacancy-serp-item__meta-info"
	nextSelector        = "a.bloko-button.HH-Pager-Controls-Next.HH-Pager-Control"
)

// AnnotationPlace is the listing annotation carrying the row's location hint.
const AnnotationPlace = "place"

// ParseSearchPage parses one vacancy search result page. pageURL is used to
// resolve facet, listing and pager links. An unparseable total is reported in
// SearchPage.TotalErr rather than as an error.
func ParseSearchPage(r io.Reader, pageURL *url.URL) (*partition.SearchPage, error) {
	if pageURL == nil {
		return nil, errors.New("parse search page: nil page URL")
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	page := &partition.SearchPage{URL: pageURL.String()}

	totalText := doc.Find(totalSelector).First().Text()
	page.Total, page.TotalErr = parseCount(totalText)

	doc.Find(groupSelector).Each(func(_ int, sel *goquery.Selection) {
		page.Facets = append(page.Facets, parseGroup(sel, pageURL))
	})

	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		place := CleanPlace(row.Find(rowPlaceSelector).First().Text())
		row.Find(rowLinkSelector).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			link, resolveErr := urlutil.ResolveReference(pageURL, href)
			if resolveErr != nil {
				return
			}
			listing := partition.Listing{URL: link}
			if place != "" {
				listing.Annotations = map[string]string{AnnotationPlace: place}
			}
			page.Listings = append(page.Listings, listing)
		})
	})

	if href, ok := doc.Find(nextSelector).First().Attr("href"); ok {
		if next, resolveErr := urlutil.ResolveReference(pageURL, href); resolveErr == nil {
			page.Next = next
		}
	}

	return page, nil
}

func parseGroup(sel *goquery.Selection, pageURL *url.URL) partition.FacetGroup {
	group := partition.FacetGroup{Name: CleanText(sel.Find(groupTitleSelector).First().Text())}
	sel.Find(optionSelector).Each(func(_ int, a *goquery.Selection) {
		opt := partition.FacetOption{
			Selected: a.HasClass(selectedClass),
			Expander: a.HasClass(moreClass),
		}

		name := a.Find(optionNameSelector)
		if name.Length() > 0 {
			opt.Label = CleanText(name.First().Text())
		} else {
			opt.Label = CleanText(a.Text())
		}
		if count, err := parseCount(a.Find(optionCountSelector).First().Text()); err == nil {
			opt.ReportedCount = count
		}
		if href, ok := a.Attr("href"); ok {
			if link, err := urlutil.ResolveReference(pageURL, href); err == nil {
				opt.Link = link
			}
		}
		group.Options = append(group.Options, opt)
	})
	return group
}

// parseCount keeps the digits of text, so "12 345 вакансий" reads as 12345.
func parseCount(text string) (int, error) {
	var digits strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("%w: no digits in %q", partition.ErrMalformedCount, strings.TrimSpace(text))
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", partition.ErrMalformedCount, err)
	}
	return n, nil
}

func parseBase(pageURL string) (*url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	return u, nil
}
