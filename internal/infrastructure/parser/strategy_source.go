package parser

import (
	"context"
	"fmt"
	"log/slog"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
	"SLRAutomation/internal/scanner"
)

// StrategySource implements RecordSource via the scanner registered for the
// configured review database.
type StrategySource struct {
	registry   *scanner.Registry
	database   string
	maxRecords int
	logger     *slog.Logger
}

var _ ports.RecordSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with the configured database.
func NewStrategySource(reg *scanner.Registry, cfg config.ScraperConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:   reg,
		database:   cfg.Database,
		maxRecords: cfg.MaxReviews,
		logger:     log,
	}
}

// FetchRecords executes the configured scanner for query.
func (s *StrategySource) FetchRecords(ctx context.Context, query string) (domain.RecordSet, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.database)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", s.database, err)
	}

	s.debug("fetch records", "database", s.database, "query", query, "max", s.maxRecords)
	records, err := strategy.Scan(ctx, scanner.Request{
		Query:      query,
		MaxRecords: s.maxRecords,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.database, err)
	}

	s.debug("records scraped", "database", s.database, "count", len(records))
	return records, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
