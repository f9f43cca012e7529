package stageclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Pipeline
	cfg.BaseURL = srv.URL
	return NewClient(cfg, srv.Client(), nil)
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestGenerateQuestionsSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		respondJSON(`{"questions":["Q1","Q2"]}`)(w, r)
	})

	res := client.GenerateQuestions(context.Background(), "diabetes")
	require.NoError(t, res.Err)
	require.Equal(t, domain.QuestionSet{"Q1", "Q2"}, res.Payload)
	require.Equal(t, "/api/generate-questions", gotPath)
	require.Equal(t, map[string]any{"topic": "diabetes"}, gotBody)
}

func TestGenerateQuestionsEmptyIsSuccess(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, respondJSON(`{"questions":[]}`))

	res := client.GenerateQuestions(context.Background(), "asthma")
	require.True(t, res.OK())
	require.True(t, domain.IsEmpty(res))
	require.ErrorIs(t, domain.Cause(res), domain.ErrEmptyResult)
}

func TestGenerateQuestionsClassifiesFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: domain.ErrTransport,
		},
		{
			name:    "invalid json",
			handler: respondJSON(`{"questions":`),
			want:    domain.ErrMalformed,
		},
		{
			name:    "missing field",
			handler: respondJSON(`{"items":["Q1"]}`),
			want:    domain.ErrMalformed,
		},
		{
			name:    "wrong type",
			handler: respondJSON(`{"questions":"Q1"}`),
			want:    domain.ErrMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, tc.handler)
			res := client.GenerateQuestions(context.Background(), "asthma")
			require.False(t, res.OK())
			require.ErrorIs(t, res.Err, tc.want)
		})
	}
}

func TestGenerateQuestionsUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := config.Default().Pipeline
	cfg.BaseURL = base
	client := NewClient(cfg, &http.Client{Timeout: time.Second}, nil)

	res := client.GenerateQuestions(context.Background(), "asthma")
	require.ErrorIs(t, res.Err, domain.ErrTransport)
}

func TestGenerateQueriesSendsQuestions(t *testing.T) {
	t.Parallel()

	var got queriesRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate-queries", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respondJSON(`{"queries":["diabetes AND treatment"]}`)(w, r)
	})

	res := client.GenerateQueries(context.Background(), "diabetes", domain.QuestionSet{"Q1", "Q2"})
	require.NoError(t, res.Err)
	require.Equal(t, domain.QuerySet{"diabetes AND treatment"}, res.Payload)
	require.Equal(t, "diabetes", got.Topic)
	require.Equal(t, []string{"Q1", "Q2"}, got.Questions)
}

func TestScrapeRecordsDecodesPicoVariants(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, respondJSON(`{"records":[
		{"title":"Insulin review","authors":"A. Author","article_url":"https://example.org/a/full",
		 "pico":{"population":"Adults","intervention":"Insulin","comparison":"Placebo","outcome":"HbA1c"},
		 "pico_url":"https://example.org/pico","complete_review":"Background text"},
		{"title":"Diet review","authors":"B. Author","article_url":"https://example.org/b/full",
		 "pico":"N/A","pico_url":"N/A","complete_review":"N/A"}
	]}`))

	res := client.ScrapeRecords(context.Background(), "diabetes")
	require.NoError(t, res.Err)
	require.Len(t, res.Payload, 2)

	first := res.Payload[0]
	require.True(t, first.Pico.IsStructured())
	require.Equal(t, "Adults, Insulin, Placebo, HbA1c", first.Pico.String())
	outcome, ok := first.Pico.Get(domain.PicoOutcome)
	require.True(t, ok)
	require.Equal(t, "HbA1c", outcome)

	second := res.Payload[1]
	require.False(t, second.Pico.IsStructured())
	require.Equal(t, domain.NotAvailable, second.Pico.String())
	require.False(t, second.HasPicoURL())
}

func TestScrapeRecordsDropsIncompleteRecords(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, respondJSON(`{"records":[
		{"title":"Insulin review","authors":"A","article_url":"https://example.org/a/full","pico":"N/A","pico_url":"N/A","complete_review":"N/A"},
		{"title":"","authors":"B","article_url":"https://example.org/b/full","pico":"N/A","pico_url":"N/A","complete_review":"N/A"},
		{"title":"No link","authors":"C","article_url":"  ","pico":"N/A","pico_url":"N/A","complete_review":"N/A"},
		{"title":"Diet review","authors":"D","article_url":"https://example.org/d/full","pico":"N/A","pico_url":"N/A","complete_review":"N/A"}
	]}`))

	res := client.ScrapeRecords(context.Background(), "diabetes")
	require.NoError(t, res.Err)
	require.Len(t, res.Payload, 2)
	require.Equal(t, "Insulin review", res.Payload[0].Title)
	require.Equal(t, "Diet review", res.Payload[1].Title)
}

func TestScrapeRecordsAllIncompleteIsEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, respondJSON(`{"records":[{"authors":"A","article_url":"https://example.org"}]}`))

	res := client.ScrapeRecords(context.Background(), "diabetes")
	require.NoError(t, res.Err)
	require.True(t, domain.IsEmpty(res))
}

func TestScrapeRecordsEmpty(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, respondJSON(`{"records":[]}`))

	res := client.ScrapeRecords(context.Background(), "diabetes")
	require.NoError(t, res.Err)
	require.Empty(t, res.Payload)
}

func TestInvokeHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.ScrapeRecords(ctx, "diabetes")
	require.ErrorIs(t, res.Err, domain.ErrTransport)
	require.ErrorIs(t, res.Err, context.Canceled)
}
