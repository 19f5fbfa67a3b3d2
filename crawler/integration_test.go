package crawler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lukemcguire/facetcrawl/crawler"
	"github.com/lukemcguire/facetcrawl/hh"
	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/sink"
)

const clusterTotal = `<h1 class="header HH-SearchVacancyDropClusters-Header">Найдено %d вакансий</h1>`

func regionGroup() string {
	return `<div class="clusters-group"><div class="clusters-group-title">Регион</div>
<a class="clusters-value clusters-value_selected" href="?area=113"><span class="clusters-value__name">Россия</span><span class="clusters-value__count">5</span></a>
<a class="clusters-value" href="?area=1"><span class="clusters-value__name">Москва</span><span class="clusters-value__count">3</span></a>
<a class="clusters-value" href="?area=2"><span class="clusters-value__name">Санкт-Петербург</span><span class="clusters-value__count">2</span></a>
</div>`
}

func row(href, place string) string {
	return fmt.Sprintf(`<div class="vacancy-serp-item"><div class="resume-search-item__name"><a href="%s">Vacancy</a></div><span class="vacancy-serp-item__meta-info">%s</span></div>`, href, place)
}

const nextLink = `<a class="bloko-button HH-Pager-Controls-Next HH-Pager-Control" href="%s">дальше</a>`

// newSearchSite serves a region-clustered search: 5 vacancies in Russia, 3 in
// Moscow over two pages and 2 in St Petersburg. Vacancy 3 is listed in both
// cities with different tracking parameters.
func newSearchSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"area=113":      fmt.Sprintf(clusterTotal, 5) + regionGroup() + row("/vacancy/1", "Москва"),
		"area=1":        fmt.Sprintf(clusterTotal, 3) + row("/vacancy/1?query=msk", "Москва") + row("/vacancy/2?query=msk", "Москва") + fmt.Sprintf(nextLink, "?area=1&page=1"),
		"area=1&page=1": fmt.Sprintf(clusterTotal, 3) + row("/vacancy/3?query=msk", "Москва"),
		"area=2":        fmt.Sprintf(clusterTotal, 2) + row("/vacancy/3?query=spb", "Санкт-Петербург") + row("/vacancy/4", "Санкт-Петербург"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/vacancy", func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.RawQuery]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	})
	mux.HandleFunc("/vacancy/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/vacancy/")
		_, _ = fmt.Fprintf(w, `<html><body><h1 class="header">Вакансия %s</h1>
<p class="vacancy-salary">от 100 000 руб.</p>
<div class="vacancy-company-name"><span>Фирма %s</span></div>
<div class="vacancy-section"><p>Описание %s</p></div></body></html>`, id, id, id)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCrawlSearchSite(t *testing.T) {
	server := newSearchSite(t)

	var buf bytes.Buffer
	writer := sink.NewJSONWriter(&buf)
	dedup, err := sink.NewDeduperSized(writer, 1000, 0.001)
	if err != nil {
		t.Fatalf("NewDeduperSized() error = %v", err)
	}

	cfg := crawler.Config{
		StartURL:    server.URL + "/search/vacancy?area=113",
		Facets:      []string{"Регион"},
		Limits:      partition.Limits{MaxPages: 2, ItemsPerPage: 2},
		Concurrency: 2,
		RateLimit:   50,
		RetryPolicy: crawler.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := crawler.New(cfg, hh.Parser{}, dedup, nil, crawler.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := dedup.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if report.ExactSplits != 1 || report.Walks != 2 {
		t.Errorf("ExactSplits = %d, Walks = %d, want 1 and 2", report.ExactSplits, report.Walks)
	}
	// vacancy/3 is listed in both cities, so the site's 5 covers only 4
	// distinct vacancies and the repeat is not counted as emitted.
	if report.Emitted != 4 || report.MaxObserved != 5 {
		t.Errorf("Emitted = %d, MaxObserved = %d, want 4 and 5", report.Emitted, report.MaxObserved)
	}
	if report.Duplicates != 1 || report.LossEstimate != 1 {
		t.Errorf("Duplicates = %d, LossEstimate = %d, want 1 and 1", report.Duplicates, report.LossEstimate)
	}
	if report.ParseFailures != 0 || len(report.Aborts) != 0 {
		t.Errorf("ParseFailures = %d, Aborts = %+v, want none", report.ParseFailures, report.Aborts)
	}
	if report.FinalRate != 50 || report.Throttles != 0 {
		t.Errorf("FinalRate = %d, Throttles = %d, want 50 and 0", report.FinalRate, report.Throttles)
	}

	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 distinct vacancies, got %d", len(rows))
	}
	for _, r := range rows {
		if r["firm"] == "" || r["description"] == "" {
			t.Errorf("incomplete vacancy row: %v", r)
		}
		if r["place"] == "" {
			t.Errorf("listing place annotation missing: %v", r)
		}
	}
}
