package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"SLRAutomation/internal/domain"
)

type fakeQuestions struct {
	questions domain.QuestionSet
	err       error
}

func (f fakeQuestions) GenerateQuestions(context.Context, string) (domain.QuestionSet, error) {
	return f.questions, f.err
}

type fakeQueries struct {
	got []string
}

func (f *fakeQueries) GenerateQueries(_ context.Context, topic string, questions domain.QuestionSet) (domain.QuerySet, error) {
	f.got = questions
	return domain.QuerySet{topic + " AND treatment"}, nil
}

type fakeRecords struct {
	records domain.RecordSet
	err     error
}

func (f fakeRecords) FetchRecords(context.Context, string) (domain.RecordSet, error) {
	return f.records, f.err
}

func post(t *testing.T, h http.Handler, route, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, route, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestQuestionsRoute(t *testing.T) {
	t.Parallel()

	h := New(Deps{Questions: fakeQuestions{questions: domain.QuestionSet{"Q1", "Q2"}}}).Handler()

	rec := post(t, h, RouteQuestions, `{"topic":" diabetes "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"questions":["Q1","Q2"]}`, rec.Body.String())
}

func TestQuestionsRouteNilResultIsEmptyArray(t *testing.T) {
	t.Parallel()

	h := New(Deps{Questions: fakeQuestions{}}).Handler()

	rec := post(t, h, RouteQuestions, `{"topic":"diabetes"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"questions":[]}`, rec.Body.String())
}

func TestQuestionsRouteErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		deps Deps
		body string
		code int
	}{
		{name: "empty topic", deps: Deps{Questions: fakeQuestions{}}, body: `{"topic":"  "}`, code: http.StatusBadRequest},
		{name: "bad json", deps: Deps{Questions: fakeQuestions{}}, body: `{"topic":`, code: http.StatusBadRequest},
		{name: "not configured", deps: Deps{}, body: `{"topic":"asthma"}`, code: http.StatusServiceUnavailable},
		{name: "upstream failure", deps: Deps{Questions: fakeQuestions{err: errors.New("llm down")}}, body: `{"topic":"asthma"}`, code: http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := post(t, New(tc.deps).Handler(), RouteQuestions, tc.body)
			require.Equal(t, tc.code, rec.Code)
			require.Contains(t, decodeBody(t, rec), "error")
		})
	}
}

func TestQueriesRoute(t *testing.T) {
	t.Parallel()

	queries := &fakeQueries{}
	h := New(Deps{Queries: queries}).Handler()

	rec := post(t, h, RouteQueries, `{"topic":"diabetes","questions":["Q1","Q2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queries":["diabetes AND treatment"]}`, rec.Body.String())
	require.Equal(t, []string{"Q1", "Q2"}, queries.got)

	rec = post(t, h, RouteQueries, `{"topic":"diabetes","questions":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordsRoute(t *testing.T) {
	t.Parallel()

	records := domain.RecordSet{{
		Title:      "Insulin review",
		Authors:    "A. Author",
		ArticleURL: "https://example.org/a/full",
		Pico: domain.PicoMap(
			domain.PicoField{Name: domain.PicoPopulation, Value: "Adults"},
			domain.PicoField{Name: domain.PicoOutcome, Value: "HbA1c"},
		),
		PicoURL:        "https://example.org/pico",
		CompleteReview: "Background",
	}}
	h := New(Deps{Records: fakeRecords{records: records}}).Handler()

	rec := post(t, h, RouteRecords, `{"topic":"diabetes"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"records":[{
		"title":"Insulin review","authors":"A. Author","article_url":"https://example.org/a/full",
		"pico":{"population":"Adults","outcome":"HbA1c"},
		"pico_url":"https://example.org/pico","complete_review":"Background"}]}`, rec.Body.String())

	failing := New(Deps{Records: fakeRecords{err: errors.New("cochrane returned 403 Forbidden")}}).Handler()
	rec = post(t, failing, RouteRecords, `{"topic":"diabetes"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := New(Deps{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteQuestions, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := New(Deps{
		Questions:      fakeQuestions{questions: domain.QuestionSet{"Q1"}},
		AllowedOrigins: []string{"http://localhost:3000"},
	}).Handler()

	preflight := httptest.NewRequest(http.MethodOptions, RouteQuestions, nil)
	preflight.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodPost, RouteQuestions, strings.NewReader(`{"topic":"x"}`))
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := New(Deps{Questions: fakeQuestions{questions: domain.QuestionSet{"Q1"}}}).Handler()
	post(t, h, RouteQuestions, `{"topic":"diabetes"}`)
	post(t, h, RouteQuestions, `{"topic":""}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteMetrics, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	require.Contains(t, text, `slr_stage_requests_total{code="200",stage="question_generation"} 1`)
	require.Contains(t, text, `slr_stage_requests_total{code="400",stage="question_generation"} 1`)
	require.Contains(t, text, "slr_stage_request_duration_seconds_bucket")
}
