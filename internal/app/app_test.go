package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/server"
)

type stubGenerator struct {
	questionsErr error
}

func (s stubGenerator) GenerateQuestions(_ context.Context, topic string) (domain.QuestionSet, error) {
	if s.questionsErr != nil {
		return nil, s.questionsErr
	}
	return domain.QuestionSet{"How does " + topic + " progress?"}, nil
}

func (s stubGenerator) GenerateQueries(_ context.Context, topic string, _ domain.QuestionSet) (domain.QuerySet, error) {
	return domain.QuerySet{topic + " AND treatment"}, nil
}

type stubSource struct{}

func (stubSource) FetchRecords(_ context.Context, query string) (domain.RecordSet, error) {
	return domain.RecordSet{{
		Title:          "Review of " + query,
		Authors:        "A. Author",
		ArticleURL:     "https://example.org/cd1/full",
		Pico:           domain.PicoText(domain.NotAvailable),
		PicoURL:        domain.NotAvailable,
		CompleteReview: "Background",
	}}, nil
}

func newTestApp(t *testing.T, gen stubGenerator) (*Application, *bytes.Buffer) {
	t.Helper()

	backend := httptest.NewServer(server.New(server.Deps{
		Questions: gen,
		Queries:   gen,
		Records:   stubSource{},
	}).Handler())
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Pipeline.BaseURL = backend.URL
	cfg.Pipeline.Timeout = 5 * time.Second

	var out bytes.Buffer
	return New(cfg, slog.New(slog.DiscardHandler), &out), &out
}

func TestApplicationRunEndToEnd(t *testing.T) {
	t.Parallel()

	application, out := newTestApp(t, stubGenerator{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	final, err := application.Run(ctx, "diabetes")
	require.NoError(t, err)
	require.Equal(t, domain.QuestionSet{"How does diabetes progress?"}, final.Questions.Payload)
	require.Equal(t, domain.QuerySet{"diabetes AND treatment"}, final.Queries.Payload)
	require.Equal(t, domain.StatusSucceeded, final.Records.Status)
	require.Len(t, final.Records.Payload, 1)
	require.Equal(t, "Review of diabetes", final.Records.Payload[0].Title)

	text := out.String()
	require.Contains(t, text, "== diabetes ==")
	require.Contains(t, text, "Research Questions")
	require.Contains(t, text, "Cochrane Scrape Results")
}

func TestApplicationRunFallsBackWhenQuestionsFail(t *testing.T) {
	t.Parallel()

	application, _ := newTestApp(t, stubGenerator{questionsErr: errors.New("llm down")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	final, err := application.Run(ctx, "asthma")
	require.NoError(t, err)
	require.Equal(t, domain.QuestionSet{"Fallback: What is the impact of asthma?"}, final.Questions.Payload)
	require.Equal(t, domain.StatusSucceeded, final.Queries.Status)
}

func TestApplicationRunRejectsEmptyTopic(t *testing.T) {
	t.Parallel()

	application, _ := newTestApp(t, stubGenerator{})

	_, err := application.Run(context.Background(), " ")
	require.ErrorIs(t, err, domain.ErrEmptyTopic)
}
