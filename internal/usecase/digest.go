package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

const excerptLen = 150

// markdownEscaper backslash-escapes the entity markers of Telegram's Markdown parse mode.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// DigestSubscriber sends a summary of every completed run to a Notifier.
type DigestSubscriber struct {
	notifier ports.Notifier
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

var _ ports.Subscriber = (*DigestSubscriber)(nil)

// NewDigestSubscriber wraps notifier; each delivery is bounded by timeout.
func NewDigestSubscriber(notifier ports.Notifier, timeout time.Duration, logger *slog.Logger) *DigestSubscriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DigestSubscriber{notifier: notifier, timeout: timeout, logger: logger}
}

// OnSnapshot ignores in-progress snapshots and delivers complete ones in the background.
func (d *DigestSubscriber) OnSnapshot(run domain.PipelineRun) {
	if d.notifier == nil || !run.Complete() {
		return
	}

	message := BuildDigestMessage(run)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.PublishDigest(ctx, message); err != nil {
			d.logger.Warn("publish digest", "run_id", run.RunID, "error", err)
			return
		}
		d.logger.Debug("digest published", "run_id", run.RunID)
	}()
}

// Wait blocks until pending deliveries finish.
func (d *DigestSubscriber) Wait() {
	d.wg.Wait()
}

// BuildDigestMessage renders a completed run as Markdown.
func BuildDigestMessage(run domain.PipelineRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*SLR digest:* %s\n\n", escapeMarkdown(run.Topic))

	b.WriteString("*Research questions*\n")
	writeList(&b, run.Questions.Status, run.Questions.Payload, "No research questions found.")

	b.WriteString("\n*Search queries*\n")
	writeList(&b, run.Queries.Status, run.Queries.Payload, "No search queries found.")

	b.WriteString("\n*Cochrane reviews*\n")
	if run.Records.Status != domain.StatusSucceeded || len(run.Records.Payload) == 0 {
		b.WriteString("No scraped records found.\n")
		return b.String()
	}
	for _, rec := range run.Records.Payload {
		fmt.Fprintf(&b, "- %s\n%s\n", escapeMarkdown(rec.Title), escapeMarkdown(rec.Authors))
		if pico := rec.Pico.String(); pico != "" && pico != domain.NotAvailable {
			fmt.Fprintf(&b, "PICO: %s\n", escapeMarkdown(pico))
		}
		if rec.CompleteReview != domain.NotAvailable {
			fmt.Fprintf(&b, "%s...\n", escapeMarkdown(rec.Excerpt(excerptLen)))
		}
		fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(rec.ArticleURL))
	}
	return b.String()
}

func writeList(b *strings.Builder, status domain.StageStatus, items []string, empty string) {
	if status != domain.StatusSucceeded || len(items) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, escapeMarkdown(item))
	}
}

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
