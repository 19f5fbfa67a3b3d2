// Package tui provides the Bubble Tea terminal UI for facetcrawl, displaying
// live partition progress and a styled summary of the crawl report.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/facetcrawl/crawler"
	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx             context.Context
	cancel          context.CancelFunc
	crawlerInstance *crawler.Crawler
	spinner         spinner.Model
	progressCh      <-chan crawler.CrawlEvent

	decisions   int
	walks       int
	splits      int
	aborts      int
	emitted     int64
	maxObserved int64
	pending     int
	throttles   int
	current     string

	stopping bool
	quitting bool
	done     bool
	report   *result.Report
	err      error
	width    int
}

// NewModel creates a TUI model wired to the given crawler and progress channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, crawlerInst *crawler.Crawler, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:             ctx,
		cancel:          cancel,
		crawlerInstance: crawlerInst,
		spinner:         spin,
		progressCh:      progressCh,
	}
}

// Init starts the spinner, crawl, and progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

// startCrawl returns a tea.Cmd that runs the crawler and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		report, err := m.crawlerInstance.Run(m.ctx)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Report: report, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime. The first "q" or
// ctrl+c cancels the crawl and waits for the partial report; a second one
// quits immediately.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.stopping {
				m.quitting = true
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.apply(msg.Event)
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(evt crawler.CrawlEvent) {
	m.emitted = evt.Emitted
	m.maxObserved = evt.MaxObserved
	m.pending = evt.Pending
	m.throttles = evt.Throttles
	m.current = evt.Query

	if evt.Kind == crawler.EventWalk {
		return
	}
	m.decisions++
	switch evt.Outcome {
	case partition.OutcomeWalk:
		m.walks++
	case partition.OutcomeExactSplit, partition.OutcomeApproximateSplit:
		m.splits++
	case partition.OutcomeAbort:
		m.aborts++
	}
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	status := "Crawling..."
	if m.stopping {
		status = "Stopping, waiting for in-flight pages..."
	}
	line := fmt.Sprintf("%s %s emitted %d of %d observed, %d pending",
		m.spinner.View(), status, m.emitted, m.maxObserved, m.pending)
	if m.aborts > 0 {
		line += errorStyle.Render(fmt.Sprintf(" (%d aborted)", m.aborts))
	}
	if m.throttles > 0 {
		line += dimStyle.Render(fmt.Sprintf(" [throttled %dx]", m.throttles))
	}
	counts := fmt.Sprintf("  %d queries evaluated: %d walked, %d split", m.decisions, m.walks, m.splits)
	return line + "\n" + dimStyle.Render(counts) + "\n" + dimStyle.Render("  "+m.current) + "\n"
}

// Incomplete reports whether the crawl finished with loss, aborts or a
// cancellation.
func (m Model) Incomplete() bool {
	return m.report != nil && !m.report.Complete()
}

// GetReport returns the crawl report for output formatting.
func (m Model) GetReport() *result.Report {
	return m.report
}

// Err returns the error the crawl ended with, if any.
func (m Model) Err() error {
	return m.err
}
