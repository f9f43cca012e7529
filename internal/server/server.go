package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

// Routes served by the backend.
const (
	RouteQuestions = "/api/generate-questions"
	RouteQueries   = "/api/generate-queries"
	RouteRecords   = "/api/scrape-cochrane"
	RouteMetrics   = "/metrics"
)

const maxBodyBytes = 1 << 20

// Deps wires the stage backends into the HTTP layer.
type Deps struct {
	Questions      ports.QuestionGenerator
	Queries        ports.QueryGenerator
	Records        ports.RecordSource
	Registry       *prometheus.Registry
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server exposes question generation, query generation and record scraping over JSON HTTP.
type Server struct {
	questions      ports.QuestionGenerator
	queries        ports.QueryGenerator
	records        ports.RecordSource
	registry       *prometheus.Registry
	metrics        *metrics
	allowedOrigins []string
	logger         *slog.Logger
}

// New builds the HTTP server; a nil registry gets a private one.
func New(deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		questions:      deps.Questions,
		queries:        deps.Queries,
		records:        deps.Records,
		registry:       reg,
		metrics:        newMetrics(reg),
		allowedOrigins: deps.AllowedOrigins,
		logger:         logger,
	}
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type queriesRequest struct {
	Topic     string   `json:"topic"`
	Questions []string `json:"questions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+RouteQuestions, s.metrics.instrument(domain.StageQuestionGeneration, s.handleQuestions))
	mux.HandleFunc("POST "+RouteQueries, s.metrics.instrument(domain.StageQueryGeneration, s.handleQueries))
	mux.HandleFunc("POST "+RouteRecords, s.metrics.instrument(domain.StageRecordScraping, s.handleRecords))
	mux.Handle("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s.cors(mux)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !s.decode(w, r, &req) {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		s.fail(w, http.StatusBadRequest, domain.ErrEmptyTopic)
		return
	}
	if s.questions == nil {
		s.fail(w, http.StatusServiceUnavailable, errors.New("question generation is not configured"))
		return
	}

	questions, err := s.questions.GenerateQuestions(r.Context(), topic)
	if err != nil {
		s.logger.Error("generate questions", "topic", topic, "error", err)
		s.fail(w, http.StatusBadGateway, err)
		return
	}
	s.respond(w, map[string]domain.QuestionSet{"questions": nonNil(questions)})
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	var req queriesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Questions) == 0 {
		s.fail(w, http.StatusBadRequest, errors.New("at least one question is required"))
		return
	}
	if s.queries == nil {
		s.fail(w, http.StatusServiceUnavailable, errors.New("query generation is not configured"))
		return
	}

	topic := strings.TrimSpace(req.Topic)
	queries, err := s.queries.GenerateQueries(r.Context(), topic, req.Questions)
	if err != nil {
		s.logger.Error("generate queries", "topic", topic, "error", err)
		s.fail(w, http.StatusBadGateway, err)
		return
	}
	s.respond(w, map[string]domain.QuerySet{"queries": nonNil(queries)})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !s.decode(w, r, &req) {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		s.fail(w, http.StatusBadRequest, domain.ErrEmptyTopic)
		return
	}
	if s.records == nil {
		s.fail(w, http.StatusServiceUnavailable, errors.New("record scraping is not configured"))
		return
	}

	records, err := s.records.FetchRecords(r.Context(), topic)
	if err != nil {
		s.logger.Error("scrape records", "topic", topic, "error", err)
		s.fail(w, http.StatusBadGateway, err)
		return
	}
	s.respond(w, map[string]domain.RecordSet{"records": nonNil(records)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(s.allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return S{}
	}
	return s
}
