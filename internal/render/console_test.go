package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SLRAutomation/internal/domain"
)

func TestConsoleRendersTransitionsOnce(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	console := NewConsole(&out)

	run := domain.NewPipelineRun(1, "run-1", "diabetes", time.Now())
	run.Questions = domain.Loading[domain.QuestionSet]()
	console.OnSnapshot(run)
	console.OnSnapshot(run)

	run.Questions = domain.Succeeded(domain.QuestionSet{"Q1", "Q2"})
	console.OnSnapshot(run)
	run.Queries = domain.Loading[domain.QuerySet]()
	console.OnSnapshot(run)
	run.Queries = domain.Failed[domain.QuerySet]()
	console.OnSnapshot(run)
	run.Records = domain.Loading[domain.RecordSet]()
	console.OnSnapshot(run)
	run.Records = domain.Succeeded(domain.RecordSet{})
	console.OnSnapshot(run)

	text := out.String()
	require.Equal(t, 1, strings.Count(text, "== diabetes =="))
	require.Equal(t, 1, strings.Count(text, "Loading research questions..."))
	require.Contains(t, text, "Research Questions\n  1. Q1\n  2. Q2\n")
	require.Contains(t, text, "Loading search queries...")
	require.Contains(t, text, "No search queries found.")
	require.Contains(t, text, "Scraping Cochrane...")
	require.Contains(t, text, "No scraped records found.")
}

func TestConsoleRendersRecordTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	console := NewConsole(&out)

	run := domain.NewPipelineRun(2, "run-2", "asthma", time.Now())
	run.Questions = domain.Succeeded(domain.QuestionSet{"Q1"})
	run.Queries = domain.Succeeded(domain.QuerySet{"asthma AND children"})
	run.Records = domain.Succeeded(domain.RecordSet{{
		Title:          "Inhaled steroids",
		Authors:        "C. Author",
		ArticleURL:     "https://example.org/cd1/full",
		Pico:           domain.PicoText(domain.NotAvailable),
		PicoURL:        domain.NotAvailable,
		CompleteReview: "Background",
	}})
	console.OnSnapshot(run)

	text := out.String()
	require.Contains(t, text, "Cochrane Scrape Results")
	require.Contains(t, text, "Inhaled steroids")
	require.Contains(t, text, "https://example.org/cd1/full")
}

func TestConsoleStartsNewSectionPerRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	console := NewConsole(&out)

	first := domain.NewPipelineRun(1, "a", "x", time.Now())
	first.Questions = domain.Loading[domain.QuestionSet]()
	second := domain.NewPipelineRun(2, "b", "y", time.Now())
	second.Questions = domain.Loading[domain.QuestionSet]()

	console.OnSnapshot(first)
	console.OnSnapshot(second)

	text := out.String()
	require.Contains(t, text, "== x ==")
	require.Contains(t, text, "== y ==")
	require.Equal(t, 2, strings.Count(text, "Loading research questions..."))
}
