package ports

import (
	"context"

	"SLRAutomation/internal/domain"
)

// StageInvoker performs the three remote stage calls. Implementations never
// return raw errors; every failure is folded into the StageResult.
type StageInvoker interface {
	GenerateQuestions(ctx context.Context, topic string) domain.StageResult[domain.QuestionSet]
	GenerateQueries(ctx context.Context, topic string, questions domain.QuestionSet) domain.StageResult[domain.QuerySet]
	ScrapeRecords(ctx context.Context, topic string) domain.StageResult[domain.RecordSet]
}

// Subscriber observes pipeline snapshots. Snapshots are owned by the receiver.
type Subscriber interface {
	OnSnapshot(run domain.PipelineRun)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(run domain.PipelineRun)

// OnSnapshot calls f(run).
func (f SubscriberFunc) OnSnapshot(run domain.PipelineRun) {
	f(run)
}

// QuestionGenerator drafts research questions for a topic (LLM-backed).
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topic string) (domain.QuestionSet, error)
}

// QueryGenerator turns research questions into boolean search queries.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, topic string, questions domain.QuestionSet) (domain.QuerySet, error)
}

// RecordSource scrapes review records for a query from the configured database.
type RecordSource interface {
	FetchRecords(ctx context.Context, query string) (domain.RecordSet, error)
}

// Notifier streams completed run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}
