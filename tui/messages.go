package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/facetcrawl/crawler"
	"github.com/lukemcguire/facetcrawl/result"
)

// CrawlProgressMsg carries one crawler progress event.
type CrawlProgressMsg struct {
	Event crawler.CrawlEvent
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Report *result.Report
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. A closed channel yields no message; the report comes from startCrawl.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{Event: evt}
	}
}
