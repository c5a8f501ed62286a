package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/model"
)

const defaultTimeout = 30 * time.Second

// HTTPClient talks to the hosted backend's REST and realtime endpoints.
type HTTPClient struct {
	baseURL    string
	credential string
	httpClient *http.Client
	log        logger.Logger
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHTTPClient creates a client for the given backend. The transport's
// default timeout applies to bulk fetches; realtime connections are
// long-lived and carry no deadline.
func NewHTTPClient(baseURL, credential string, log logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.GetDefault()
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log,
	}
}

// ListTokenRows fetches the most recent token-issuance rows, newest first.
func (c *HTTPClient) ListTokenRows(ctx context.Context, limit int) ([]model.RawTokenRow, error) {
	var rows []model.RawTokenRow
	if err := c.getJSON(ctx, "/v1/tokens", url.Values{"limit": {strconv.Itoa(limit)}}, &rows); err != nil {
		return nil, fmt.Errorf("list token rows: %w", err)
	}
	return rows, nil
}

// ListAuditRows fetches the most recent access-attempt rows, newest first.
func (c *HTTPClient) ListAuditRows(ctx context.Context, limit int) ([]model.RawAuditRow, error) {
	var rows []model.RawAuditRow
	if err := c.getJSON(ctx, "/v1/audit-logs", url.Values{"limit": {strconv.Itoa(limit)}}, &rows); err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}
	return rows, nil
}

// ListAgentRows fetches active registered principals, name-ascending.
func (c *HTTPClient) ListAgentRows(ctx context.Context) ([]model.RawAgentRow, error) {
	var rows []model.RawAgentRow
	if err := c.getJSON(ctx, "/v1/agents", url.Values{"active": {"true"}}, &rows); err != nil {
		return nil, fmt.Errorf("list agent rows: %w", err)
	}
	return rows, nil
}

// AggregateUsage asks the backend for per-scope issuance counts.
func (c *HTTPClient) AggregateUsage(ctx context.Context, sampleLimit int) ([]model.RawUsageRow, error) {
	var rows []model.RawUsageRow
	err := c.getJSON(ctx, "/v1/usage", url.Values{"sample_limit": {strconv.Itoa(sampleLimit)}}, &rows)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	return rows, nil
}

// AggregateTraffic asks the backend for bucketed traffic counts over span.
func (c *HTTPClient) AggregateTraffic(ctx context.Context, span time.Duration) ([]model.RawTrafficRow, error) {
	var rows []model.RawTrafficRow
	err := c.getJSON(ctx, "/v1/traffic", url.Values{"range": {span.String()}}, &rows)
	if err != nil {
		return nil, fmt.Errorf("aggregate traffic: %w", err)
	}
	return rows, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("apikey", c.credential)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("Backend request completed",
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Int64("duration_ms", time.Since(start).Milliseconds()))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// Aggregate endpoints are optional server-side.
		if path == "/v1/usage" || path == "/v1/traffic" {
			return ErrAggregateUnsupported
		}
		return fmt.Errorf("endpoint not found: %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
			return fmt.Errorf("backend error: %s - %s", envelope.Error, envelope.Message)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
