package stageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

// Client calls the question, query and scraping services over JSON HTTP.
type Client struct {
	endpoints map[domain.Stage]string
	http      *http.Client
	logger    *slog.Logger
}

var _ ports.StageInvoker = (*Client)(nil)

// NewClient resolves endpoint URLs from configuration. A nil httpClient gets
// the configured per-call timeout.
func NewClient(cfg config.PipelineConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoints: map[domain.Stage]string{
			domain.StageQuestionGeneration: cfg.EndpointURL(cfg.Endpoints.Questions),
			domain.StageQueryGeneration:    cfg.EndpointURL(cfg.Endpoints.Queries),
			domain.StageRecordScraping:     cfg.EndpointURL(cfg.Endpoints.Records),
		},
		http:   httpClient,
		logger: logger,
	}
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type queriesRequest struct {
	Topic     string   `json:"topic"`
	Questions []string `json:"questions"`
}

type questionsResponse struct {
	Questions *[]string `json:"questions"`
}

type queriesResponse struct {
	Queries *[]string `json:"queries"`
}

type recordsResponse struct {
	Records *[]domain.Record `json:"records"`
}

// GenerateQuestions asks the question service for research questions.
func (c *Client) GenerateQuestions(ctx context.Context, topic string) domain.StageResult[domain.QuestionSet] {
	var resp questionsResponse
	if err := c.invoke(ctx, domain.StageQuestionGeneration, topicRequest{Topic: topic}, &resp); err != nil {
		return domain.Failure[domain.QuestionSet](err)
	}
	if resp.Questions == nil {
		return domain.Failure[domain.QuestionSet](fmt.Errorf("%w: missing questions field", domain.ErrMalformed))
	}
	return domain.Success(domain.QuestionSet(*resp.Questions))
}

// GenerateQueries asks the query service to turn questions into search queries.
func (c *Client) GenerateQueries(ctx context.Context, topic string, questions domain.QuestionSet) domain.StageResult[domain.QuerySet] {
	req := queriesRequest{Topic: topic, Questions: questions}
	if req.Questions == nil {
		req.Questions = []string{}
	}

	var resp queriesResponse
	if err := c.invoke(ctx, domain.StageQueryGeneration, req, &resp); err != nil {
		return domain.Failure[domain.QuerySet](err)
	}
	if resp.Queries == nil {
		return domain.Failure[domain.QuerySet](fmt.Errorf("%w: missing queries field", domain.ErrMalformed))
	}
	return domain.Success(domain.QuerySet(*resp.Queries))
}

// ScrapeRecords asks the scraping service for review records on topic.
func (c *Client) ScrapeRecords(ctx context.Context, topic string) domain.StageResult[domain.RecordSet] {
	var resp recordsResponse
	if err := c.invoke(ctx, domain.StageRecordScraping, topicRequest{Topic: topic}, &resp); err != nil {
		return domain.Failure[domain.RecordSet](err)
	}
	if resp.Records == nil {
		return domain.Failure[domain.RecordSet](fmt.Errorf("%w: missing records field", domain.ErrMalformed))
	}

	records := make(domain.RecordSet, 0, len(*resp.Records))
	for i, rec := range *resp.Records {
		if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.ArticleURL) == "" {
			c.logger.Debug("drop record",
				"index", i,
				"title", rec.Title,
				"article_url", rec.ArticleURL,
				"reason", domain.ErrMalformed)
			continue
		}
		records = append(records, rec)
	}
	return domain.Success(records)
}

func (c *Client) invoke(ctx context.Context, stage domain.Stage, payload any, v any) (err error) {
	endpoint := c.endpoints[stage]
	start := time.Now()
	status := 0
	defer func() {
		c.logger.Debug("stage call",
			"stage", stage.String(),
			"endpoint", endpoint,
			"status", status,
			"duration", time.Since(start),
			"error", err)
	}()

	if endpoint == "" {
		return fmt.Errorf("%w: no endpoint configured for %s", domain.ErrTransport, stage)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", domain.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: new request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status %s: %s", domain.ErrTransport, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrMalformed, err)
	}

	return nil
}
