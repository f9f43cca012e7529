package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/infrastructure/llm"
	"SLRAutomation/internal/infrastructure/parser"
	"SLRAutomation/internal/logging"
	"SLRAutomation/internal/scanner"
	"SLRAutomation/internal/server"
)

const shutdownTimeout = 10 * time.Second

// Backend serves the three stage endpoints.
type Backend struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

// NewBackend wires the LLM assistant and the scanner registry into the HTTP server.
func NewBackend(cfg config.Config, baseLogger *slog.Logger) (*Backend, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	cochrane, err := parser.NewCochraneScanner(nil, cfg.Scraper, baseLogger.With("component", "scanner.cochrane"))
	if err != nil {
		return nil, fmt.Errorf("cochrane scanner: %w", err)
	}
	registry.Register(cochrane)

	if _, err := registry.Resolve(cfg.Scraper.Database); err != nil {
		return nil, fmt.Errorf("scraper database: %w", err)
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := server.Deps{
		Records:        parser.NewStrategySource(registry, cfg.Scraper, baseLogger.With("component", "source")),
		Registry:       metricsRegistry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         baseLogger.With("component", "server"),
	}

	assistant, err := llm.NewAssistant(cfg.LLM)
	if err != nil {
		baseLogger.Warn("llm disabled, question and query generation will answer 503", "error", err)
	} else {
		deps.Questions = assistant
		deps.Queries = assistant
	}

	return &Backend{
		addr:    cfg.Server.Addr,
		handler: server.New(deps).Handler(),
		logger:  baseLogger,
	}, nil
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (b *Backend) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              b.addr,
		Handler:           b.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.logger.Info("backend listening", "addr", b.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.logger.Info("backend shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
