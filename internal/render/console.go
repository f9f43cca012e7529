package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/kataras/tablewriter"
	"github.com/lensesio/tableprinter"

	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

const excerptLen = 150

type recordRow struct {
	Title   string `header:"title"`
	Authors string `header:"authors"`
	Article string `header:"article url"`
	Pico    string `header:"pico"`
	PicoURL string `header:"pico url"`
	Excerpt string `header:"review excerpt"`
}

// Console prints stage progress and results as they arrive. Only transitions
// are printed; repeated snapshots with an unchanged stage status are skipped.
type Console struct {
	out io.Writer

	mu   sync.Mutex
	seq  uint64
	seen map[domain.Stage]domain.StageStatus
}

var _ ports.Subscriber = (*Console)(nil)

// NewConsole writes to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, seen: map[domain.Stage]domain.StageStatus{}}
}

// OnSnapshot renders the stages whose status changed since the last snapshot.
func (c *Console) OnSnapshot(run domain.PipelineRun) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run.Seq != c.seq {
		c.seq = run.Seq
		c.seen = map[domain.Stage]domain.StageStatus{}
		fmt.Fprintf(c.out, "\n== %s ==\n", run.Topic)
	}

	for _, stage := range domain.Stages {
		status := run.Status(stage)
		if prev, ok := c.seen[stage]; ok && prev == status {
			continue
		}
		c.seen[stage] = status
		c.renderStage(run, stage, status)
	}
}

func (c *Console) renderStage(run domain.PipelineRun, stage domain.Stage, status domain.StageStatus) {
	switch status {
	case domain.StatusLoading:
		fmt.Fprintln(c.out, loadingLine(stage))
	case domain.StatusSucceeded, domain.StatusFailed:
		switch stage {
		case domain.StageQuestionGeneration:
			c.renderList("Research Questions", run.Questions.Payload, "No research questions found.")
		case domain.StageQueryGeneration:
			c.renderList("Search Queries", run.Queries.Payload, "No search queries found.")
		case domain.StageRecordScraping:
			c.renderRecords(run.Records.Payload)
		}
	}
}

func (c *Console) renderList(title string, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(c.out, empty)
		return
	}
	fmt.Fprintf(c.out, "%s\n", title)
	for i, item := range items {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, item)
	}
}

func (c *Console) renderRecords(records domain.RecordSet) {
	if len(records) == 0 {
		fmt.Fprintln(c.out, "No scraped records found.")
		return
	}

	fmt.Fprintln(c.out, "Cochrane Scrape Results")
	rows := make([]recordRow, 0, len(records))
	for _, rec := range records {
		picoURL := domain.NotAvailable
		if rec.HasPicoURL() {
			picoURL = rec.PicoURL
		}
		rows = append(rows, recordRow{
			Title:   rec.Title,
			Authors: rec.Authors,
			Article: rec.ArticleURL,
			Pico:    rec.Pico.String(),
			PicoURL: picoURL,
			Excerpt: rec.Excerpt(excerptLen) + "...",
		})
	}

	printer := tableprinter.New(c.out)
	printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
	printer.CenterSeparator = "│"
	printer.ColumnSeparator = "│"
	printer.RowSeparator = "─"
	printer.HeaderBgColor = tablewriter.BgBlackColor
	printer.HeaderFgColor = tablewriter.FgGreenColor
	printer.Print(rows)
}

func loadingLine(stage domain.Stage) string {
	switch stage {
	case domain.StageQuestionGeneration:
		return "Loading research questions..."
	case domain.StageQueryGeneration:
		return "Loading search queries..."
	case domain.StageRecordScraping:
		return "Scraping Cochrane..."
	default:
		return "Loading..."
	}
}
